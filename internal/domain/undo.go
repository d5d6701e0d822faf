package domain

import (
	"encoding/json"
	"time"
)

// UndoStatus es el estado de un token de undo. Una vez que sale de
// "issued" el estado es terminal: nunca vuelve atrás ni se reaplica.
type UndoStatus string

const (
	UndoIssued  UndoStatus = "issued"
	UndoSuccess UndoStatus = "consumed-success"
	UndoFailure UndoStatus = "consumed-failure"
	UndoExpired UndoStatus = "expired"
)

// Terminal reporta si el estado ya no admite transiciones.
func (s UndoStatus) Terminal() bool {
	return s == UndoSuccess || s == UndoFailure || s == UndoExpired
}

// UndoToken es el recibo de una acción reversible disparada desde el chat.
// El token es de un solo uso y caduca a los ExpiresIn segundos.
type UndoToken struct {
	Token     string     `json:"token"`
	Message   string     `json:"message"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresIn int        `json:"expires_in_seconds"`
	Status    UndoStatus `json:"status"`
}

// Resolved reporta si el token ya fue consumido o expiró.
func (t UndoToken) Resolved() bool {
	return t.Status.Terminal()
}

// ActionRef describe cómo revertir una acción ya aplicada. Type selecciona
// el handler de reversa registrado y Payload lleva los datos que ese
// handler necesita para restaurar el estado previo.
type ActionRef struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
