package service

import (
	"sync"

	"treechat/internal/domain"
)

// PendingOverlay es la capa de escrituras optimistas del composer: cada
// mensaje enviado se muestra de inmediato bajo un id de correlación
// generado por el cliente y se reconcilia (o descarta) cuando el servidor
// responde. La identidad de un mensaje ya renderizado nunca se muta en el
// lugar: el registro staged se reemplaza entero por el autoritativo.
type PendingOverlay struct {
	mu        sync.Mutex
	staged    map[string]domain.Message
	order     []string
	confirmed map[string]domain.Message
}

func NewPendingOverlay() *PendingOverlay {
	return &PendingOverlay{
		staged:    make(map[string]domain.Message),
		confirmed: make(map[string]domain.Message),
	}
}

// Stage registra un mensaje todavía no confirmado. El id de correlación
// hace de id temporal del mensaje hasta que llegue el definitivo.
func (o *PendingOverlay) Stage(correlationID string, msg domain.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.staged[correlationID]; !ok {
		o.order = append(o.order, correlationID)
	}
	msg.ID = correlationID
	o.staged[correlationID] = msg
}

// Commit reconcilia la escritura: descarta la versión staged y retiene el
// registro del servidor hasta que la lista base lo incluya.
func (o *PendingOverlay) Commit(correlationID string, server domain.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drop(correlationID)
	o.confirmed[server.ID] = server
}

// Rollback descarta la escritura staged: la autoritativa falló.
func (o *PendingOverlay) Rollback(correlationID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.drop(correlationID)
}

func (o *PendingOverlay) drop(correlationID string) {
	delete(o.staged, correlationID)
	for i, id := range o.order {
		if id == correlationID {
			o.order = append(o.order[:i:i], o.order[i+1:]...)
			break
		}
	}
}

// Pending reporta si la correlación sigue sin reconciliar.
func (o *PendingOverlay) Pending(correlationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.staged[correlationID]
	return ok
}

// Merge superpone el overlay sobre la lista autoritativa: primero la base,
// después los confirmados que la base todavía no trae y al final los
// staged en orden de envío. La base no se muta.
func (o *PendingOverlay) Merge(base []domain.Message) []domain.Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	inBase := make(map[string]bool, len(base))
	for _, m := range base {
		inBase[m.ID] = true
	}

	out := make([]domain.Message, 0, len(base)+len(o.confirmed)+len(o.order))
	out = append(out, base...)

	for id, m := range o.confirmed {
		if inBase[id] {
			// La lista autoritativa ya lo trae: el retén puede soltarse.
			delete(o.confirmed, id)
			continue
		}
		out = append(out, m)
	}

	for _, id := range o.order {
		out = append(out, o.staged[id])
	}

	return out
}
