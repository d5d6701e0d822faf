package service

import (
	"sort"

	"treechat/internal/domain"
)

// MessageTree es una vista de solo lectura sobre la lista plana de mensajes
// de un hilo. Se reconstruye completa cada vez que la lista autoritativa
// cambia; no hay mutación ni estado cacheado que pueda quedar viejo.
//
// Contrato de recorrido: DFS pre-orden, cada grupo de hermanos ascendente
// por timestamp. Ese orden es el que reproduce el render del chat.
type MessageTree struct {
	byID     map[string]domain.Message
	children map[string][]domain.Message
	roots    []domain.Message
}

// NewMessageTree indexa la lista plana. Un mensaje cuyo ParentID no existe
// en el set cargado (o se apunta a sí mismo) se trata como raíz: degrada,
// nunca descarta ni revienta.
func NewMessageTree(messages []domain.Message) *MessageTree {
	t := &MessageTree{
		byID:     make(map[string]domain.Message, len(messages)),
		children: make(map[string][]domain.Message),
	}

	for _, m := range messages {
		if m.ID != "" {
			t.byID[m.ID] = m
		}
	}

	for _, m := range messages {
		parent := m.ParentID
		if parent == m.ID {
			parent = ""
		}
		if parent != "" {
			if _, ok := t.byID[parent]; !ok {
				parent = ""
			}
		}
		if parent == "" {
			t.roots = append(t.roots, m)
		} else {
			t.children[parent] = append(t.children[parent], m)
		}
	}

	sortByTimestamp(t.roots)
	for id := range t.children {
		sortByTimestamp(t.children[id])
	}

	return t
}

func sortByTimestamp(messages []domain.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

// Children devuelve los hijos directos ordenados por timestamp. ParentID
// vacío selecciona las raíces.
func (t *MessageTree) Children(parentID string) []domain.Message {
	if parentID == "" {
		return t.roots
	}
	return t.children[parentID]
}

// Roots devuelve los mensajes sin padre (o con padre desconocido).
func (t *MessageTree) Roots() []domain.Message {
	return t.roots
}

// Get devuelve el mensaje con el id dado, si está en el set cargado.
func (t *MessageTree) Get(id string) (domain.Message, bool) {
	m, ok := t.byID[id]
	return m, ok
}

// Len es la cantidad total de mensajes cargados.
func (t *MessageTree) Len() int {
	return len(t.byID)
}

// Path devuelve el camino raíz→id resolviendo la cadena de ParentID. Las
// ramas hermanas quedan fuera: esto es ascendencia, no truncado de lista.
// Un padre ausente corta la cadena ahí (ese mensaje actúa de raíz).
func (t *MessageTree) Path(id string) ([]domain.Message, bool) {
	m, ok := t.byID[id]
	if !ok {
		return nil, false
	}

	seen := make(map[string]bool)
	var reversed []domain.Message
	for {
		if seen[m.ID] {
			break
		}
		seen[m.ID] = true
		reversed = append(reversed, m)

		if m.ParentID == "" || m.ParentID == m.ID {
			break
		}
		parent, ok := t.byID[m.ParentID]
		if !ok {
			break
		}
		m = parent
	}

	path := make([]domain.Message, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path, true
}

// Walk recorre todo el árbol en DFS pre-orden invocando fn con cada
// mensaje y su profundidad.
func (t *MessageTree) Walk(fn func(m domain.Message, depth int)) {
	var visit func(messages []domain.Message, depth int)
	visit = func(messages []domain.Message, depth int) {
		for _, m := range messages {
			fn(m, depth)
			visit(t.children[m.ID], depth+1)
		}
	}
	visit(t.roots, 0)
}

// Flatten devuelve todos los mensajes en el orden del contrato de render.
func (t *MessageTree) Flatten() []domain.Message {
	out := make([]domain.Message, 0, len(t.byID))
	t.Walk(func(m domain.Message, _ int) {
		out = append(out, m)
	})
	return out
}
