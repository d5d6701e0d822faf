package domain

import "time"

// Roles permitidos para un mensaje dentro de un hilo.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message es un nodo del árbol de conversación de un hilo.
// ParentID vacío significa raíz; un ParentID que no existe en el set
// cargado se trata como raíz al construir el árbol (nunca se descarta).
type Message struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"thread_id"`
	ParentID     string    `json:"parent_id,omitempty"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	IsCheckpoint bool      `json:"is_checkpoint,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
