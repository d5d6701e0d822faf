package domain

import "time"

// ForkType indica cómo se sembró un hilo al bifurcarlo de su padre.
type ForkType string

const (
	ForkSummary ForkType = "summary"
	ForkFull    ForkType = "full"
	ForkEmpty   ForkType = "empty"
)

// Valid reporta si el modo de fork es uno de los soportados.
func (f ForkType) Valid() bool {
	switch f {
	case ForkSummary, ForkFull, ForkEmpty:
		return true
	}
	return false
}

// Thread es un contexto de conversación. ParentContextID y los campos de
// fork se fijan al crearlo y nunca se reasignan: son procedencia, no
// organización. Un padre borrado degrada a "padre desconocido", no rompe
// ningún recorrido.
type Thread struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	ParentContextID     string    `json:"parent_context_id,omitempty"`
	ForkType            ForkType  `json:"fork_type,omitempty"`
	ForkedFromMessageID string    `json:"forked_from_message_id,omitempty"`
	Summary             string    `json:"summary,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// IsFork reporta si el hilo nació como bifurcación de otro.
func (t Thread) IsFork() bool {
	return t.ParentContextID != ""
}
