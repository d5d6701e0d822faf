package domain

import "time"

// Niveles de urgencia calculados por el clasificador externo.
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// Task es una tarea creada desde el chat. DueFuzzy guarda expresiones
// vagas ("soon", "this week") cuando no hay fecha concreta.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	DueFuzzy        string     `json:"due_fuzzy,omitempty"`
	Urgency         string     `json:"urgency,omitempty"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	SourceMessageID string     `json:"source_message_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
