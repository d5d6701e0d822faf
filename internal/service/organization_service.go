package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"treechat/internal/domain"
)

var (
	ErrOrgTreeNotConfigured = errors.New("organization tree not configured")
	ErrNodeNotFound         = errors.New("organization node not found")
	ErrInvalidMoveTarget    = errors.New("invalid move target")
)

// NodeType distingue folders de referencias a hilos en la barra lateral.
type NodeType string

const (
	NodeFolder NodeType = "folder"
	NodeThread NodeType = "thread"
)

// OrganizationNode es un nodo del snapshot de navegación. Persisted viene
// explícito desde la hidratación: jamás se infiere de la forma del id.
type OrganizationNode struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Type      NodeType           `json:"type"`
	Persisted bool               `json:"persisted"`
	Children  []OrganizationNode `json:"children,omitempty"`
}

// OrganizationBackend es el colaborador de persistencia para mover hilos
// entre folders. repository.FolderRepository lo satisface.
type OrganizationBackend interface {
	MoveThread(ctx context.Context, folderID, threadID string) error
}

type orgNode struct {
	id        string
	name      string
	nodeType  NodeType
	persisted bool
	children  []*orgNode
}

// OrganizationTree es la jerarquía de navegación: folders que contienen
// hilos, independiente del grafo de procedencia de forks. Un hilo aparece
// a lo sumo en un lugar. Todos los accesos se serializan con el mutex de
// la instancia: un move en vuelo y un refresh de fondo nunca se pisan a
// mitad de camino (política last-write-wins sobre el snapshot).
type OrganizationTree struct {
	mu      sync.Mutex
	top     []*orgNode
	backend OrganizationBackend
	logger  *zap.Logger
}

func NewOrganizationTree(backend OrganizationBackend, logger *zap.Logger) *OrganizationTree {
	return &OrganizationTree{backend: backend, logger: logger}
}

// Hydrate reemplaza el snapshot completo desde los listados autoritativos.
// Los folders van ordenados por Order con sus hilos como hojas; los hilos
// que ningún folder reclama quedan al tope, sin archivar. Ids de hilos
// colgantes en un folder se descartan; un hilo reclamado por dos folders
// se queda en el primero.
func (o *OrganizationTree) Hydrate(folders []domain.Folder, threads []domain.Thread) {
	threadsByID := make(map[string]domain.Thread, len(threads))
	for _, t := range threads {
		threadsByID[t.ID] = t
	}

	claimed := make(map[string]bool)
	top := make([]*orgNode, 0, len(folders))
	for _, f := range folders {
		node := &orgNode{id: f.ID, name: f.Name, nodeType: NodeFolder, persisted: true}
		for _, tid := range f.ThreadIDs {
			t, ok := threadsByID[tid]
			if !ok || claimed[tid] {
				continue
			}
			claimed[tid] = true
			node.children = append(node.children, &orgNode{
				id: t.ID, name: t.Title, nodeType: NodeThread, persisted: true,
			})
		}
		top = append(top, node)
	}

	for _, t := range threads {
		if claimed[t.ID] {
			continue
		}
		top = append(top, &orgNode{id: t.ID, name: t.Title, nodeType: NodeThread, persisted: true})
	}

	o.mu.Lock()
	o.top = top
	o.mu.Unlock()
}

// StageThread agrega un hilo todavía no confirmado por el servidor al tope
// del snapshot, marcado como no persistido.
func (o *OrganizationTree) StageThread(id, name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.top = append(o.top, &orgNode{id: id, name: name, nodeType: NodeThread, persisted: false})
}

// ValidateDrop aplica el contrato de drag-and-drop: solo hilo→folder.
func (o *OrganizationTree) ValidateDrop(draggedID, targetID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	dragged := o.find(draggedID)
	if dragged == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, draggedID)
	}
	if dragged.nodeType != NodeThread {
		return fmt.Errorf("%w: only threads can be dragged", ErrInvalidMoveTarget)
	}
	target := o.find(targetID)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, targetID)
	}
	if target.nodeType != NodeFolder {
		return fmt.Errorf("%w: drop target must be a folder", ErrInvalidMoveTarget)
	}
	return nil
}

// MoveThread mueve el hilo al folder destino (vacío = sin archivar) como
// una sola unidad: bajo el lock se confirma el backend y recién entonces
// se muta el snapshot, así ningún lector ve el hilo en cero o dos lugares.
func (o *OrganizationTree) MoveThread(ctx context.Context, threadID, targetFolderID string) error {
	if o == nil || o.backend == nil {
		return ErrOrgTreeNotConfigured
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	node := o.find(threadID)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, threadID)
	}
	if node.nodeType != NodeThread {
		return fmt.Errorf("%w: only threads can be moved", ErrInvalidMoveTarget)
	}

	var target *orgNode
	if targetFolderID != "" {
		target = o.find(targetFolderID)
		if target == nil {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, targetFolderID)
		}
		if target.nodeType != NodeFolder {
			return fmt.Errorf("%w: drop target must be a folder", ErrInvalidMoveTarget)
		}
	}

	if err := o.backend.MoveThread(ctx, targetFolderID, threadID); err != nil {
		return fmt.Errorf("move thread backend: %w", err)
	}

	o.detach(threadID)
	if target != nil {
		target.children = append(target.children, node)
	} else {
		o.top = append(o.top, node)
	}

	o.logger.Info("thread moved",
		zap.String("thread_id", threadID),
		zap.String("folder_id", targetFolderID),
	)
	return nil
}

// Render devuelve una copia filtrada del snapshot. Cuando una hoja (hilo)
// matchea el filtro se conserva toda su cadena de folders; un folder sin
// ningún descendiente que matchee se poda entero. Filtro vacío devuelve
// todo.
func (o *OrganizationTree) Render(filter string) []OrganizationNode {
	o.mu.Lock()
	defer o.mu.Unlock()

	filter = strings.ToLower(strings.TrimSpace(filter))
	return renderNodes(o.top, filter)
}

func renderNodes(nodes []*orgNode, filter string) []OrganizationNode {
	var out []OrganizationNode
	for _, n := range nodes {
		matches := filter == "" || strings.Contains(strings.ToLower(n.name), filter)
		children := renderNodes(n.children, filter)

		if n.nodeType == NodeFolder {
			if matches {
				// El folder matchea por nombre: se conserva con todo su contenido.
				children = renderNodes(n.children, "")
			} else if len(children) == 0 {
				continue
			}
		} else if !matches {
			continue
		}

		out = append(out, OrganizationNode{
			ID:        n.id,
			Name:      n.name,
			Type:      n.nodeType,
			Persisted: n.persisted,
			Children:  children,
		})
	}
	return out
}

// find busca en todo el snapshot; el llamador debe tener el lock.
func (o *OrganizationTree) find(id string) *orgNode {
	var search func(nodes []*orgNode) *orgNode
	search = func(nodes []*orgNode) *orgNode {
		for _, n := range nodes {
			if n.id == id {
				return n
			}
			if found := search(n.children); found != nil {
				return found
			}
		}
		return nil
	}
	return search(o.top)
}

// detach saca el nodo de donde esté; el llamador debe tener el lock.
func (o *OrganizationTree) detach(id string) {
	var remove func(nodes []*orgNode) []*orgNode
	remove = func(nodes []*orgNode) []*orgNode {
		for i, n := range nodes {
			if n.id == id {
				return append(nodes[:i:i], nodes[i+1:]...)
			}
			n.children = remove(n.children)
		}
		return nodes
	}
	o.top = remove(o.top)
}
