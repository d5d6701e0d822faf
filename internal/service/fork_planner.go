package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"treechat/internal/domain"
)

var (
	ErrPlannerNotConfigured = errors.New("fork planner not configured")
	ErrOriginNotFound       = errors.New("origin message not found")
	ErrUnknownForkMode      = errors.New("unknown fork mode")
)

// Summarizer es el colaborador externo que condensa un prefijo de
// conversación. llm.Client lo implementa.
type Summarizer interface {
	Summarize(ctx context.Context, messages []domain.Message) (string, error)
}

// ForkPlan es la semilla calculada para un hilo nuevo. IDMap traduce ids
// originales a ids de copia; sirve para trazar procedencia línea a línea
// y es descartable, no se persiste.
type ForkPlan struct {
	Seed  []domain.Message
	IDMap map[string]string
}

// ForkPlanner decide exactamente qué contenido siembra un hilo nuevo al
// bifurcar: nada (empty), copia literal del prefijo (full) o un único
// checkpoint con el resumen del prefijo (summary).
type ForkPlanner struct {
	summarizer Summarizer
	now        func() time.Time
}

func NewForkPlanner(summarizer Summarizer) *ForkPlanner {
	return &ForkPlanner{
		summarizer: summarizer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Plan calcula la semilla para destThreadID a partir del snapshot plano del
// hilo origen. Si originMessageID viene, el prefijo es el camino raíz→origen
// inclusive (las ramas hermanas quedan fuera); si no, el hilo completo en
// orden de render. Un origen que no pertenece al snapshot falla con
// ErrOriginNotFound y no produce semilla.
func (p *ForkPlanner) Plan(
	ctx context.Context,
	destThreadID string,
	source []domain.Message,
	originMessageID string,
	mode domain.ForkType,
) (ForkPlan, error) {
	if p == nil {
		return ForkPlan{}, ErrPlannerNotConfigured
	}

	tree := NewMessageTree(source)

	var prefix []domain.Message
	if originMessageID != "" {
		path, ok := tree.Path(originMessageID)
		if !ok {
			return ForkPlan{}, ErrOriginNotFound
		}
		prefix = path
	} else {
		prefix = tree.Flatten()
	}

	switch mode {
	case domain.ForkEmpty:
		return ForkPlan{IDMap: map[string]string{}}, nil

	case domain.ForkFull:
		return p.planFull(destThreadID, prefix), nil

	case domain.ForkSummary:
		return p.planSummary(ctx, destThreadID, prefix)

	default:
		return ForkPlan{}, fmt.Errorf("%w: %q", ErrUnknownForkMode, mode)
	}
}

// planFull copia el prefijo literal bajo ids nuevos. Las copias no comparten
// identidad con el origen: editar el fork jamás muta el hilo original. Los
// timestamps originales se conservan para preservar el orden relativo.
func (p *ForkPlanner) planFull(destThreadID string, prefix []domain.Message) ForkPlan {
	idMap := make(map[string]string, len(prefix))
	for _, m := range prefix {
		idMap[m.ID] = uuid.NewString()
	}

	seed := make([]domain.Message, 0, len(prefix))
	for _, m := range prefix {
		cp := m
		cp.ID = idMap[m.ID]
		cp.ThreadID = destThreadID
		if m.ParentID != "" {
			if newParent, ok := idMap[m.ParentID]; ok {
				cp.ParentID = newParent
			} else {
				// El padre quedó fuera del prefijo: la copia pasa a ser raíz.
				cp.ParentID = ""
			}
		}
		seed = append(seed, cp)
	}

	return ForkPlan{Seed: seed, IDMap: idMap}
}

// planSummary pide al colaborador un resumen del prefijo y lo empaqueta
// como un único mensaje checkpoint.
func (p *ForkPlanner) planSummary(ctx context.Context, destThreadID string, prefix []domain.Message) (ForkPlan, error) {
	if p.summarizer == nil {
		return ForkPlan{}, ErrPlannerNotConfigured
	}

	summary, err := p.summarizer.Summarize(ctx, prefix)
	if err != nil {
		return ForkPlan{}, fmt.Errorf("summarize fork prefix: %w", err)
	}

	checkpoint := domain.Message{
		ID:           uuid.NewString(),
		ThreadID:     destThreadID,
		Role:         domain.RoleSystem,
		IsCheckpoint: true,
		Summary:      summary,
		CreatedAt:    p.now(),
	}

	return ForkPlan{Seed: []domain.Message{checkpoint}, IDMap: map[string]string{}}, nil
}
