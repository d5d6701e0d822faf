package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"treechat/internal/domain"
	"treechat/internal/repository"
)

var (
	ErrForkServiceNotConfigured = errors.New("fork service not configured")
	ErrThreadNotFound           = errors.New("thread not found")
	ErrWouldCreateCycle         = errors.New("fork would create cycle")
)

// ForkService mantiene el grafo de procedencia entre hilos: crea forks de
// forma atómica y recorre ancestros/descendientes. La relación con el padre
// es inmutable una vez creada.
type ForkService struct {
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	planner  *ForkPlanner
	logger   *zap.Logger

	// Una lectura de snapshot por hilo origen a la vez: forks concurrentes
	// del mismo origen comparten la misma lectura consistente.
	snapshots singleflight.Group

	now   func() time.Time
	newID func() string
}

func NewForkService(
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	planner *ForkPlanner,
	logger *zap.Logger,
) *ForkService {
	return &ForkService{
		threads:  threads,
		messages: messages,
		planner:  planner,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// CreateFork bifurca sourceThreadID en un hilo nuevo. Es una transacción
// lógica: planifica la semilla sobre un snapshot consistente, crea el
// registro del hilo y recién entonces inserta la semilla; si la inserción
// falla, borra el hilo recién creado. Nadie observa un hilo a medio forkear.
func (s *ForkService) CreateFork(
	ctx context.Context,
	sourceThreadID string,
	title string,
	mode domain.ForkType,
	originMessageID string,
) (domain.Thread, error) {
	if s == nil || s.threads == nil || s.messages == nil || s.planner == nil {
		return domain.Thread{}, ErrForkServiceNotConfigured
	}
	if !mode.Valid() {
		return domain.Thread{}, fmt.Errorf("%w: %q", ErrUnknownForkMode, mode)
	}

	source, err := s.threads.GetByID(ctx, sourceThreadID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Thread{}, ErrThreadNotFound
	}
	if err != nil {
		return domain.Thread{}, fmt.Errorf("load source thread: %w", err)
	}

	snapshot, err := s.readSnapshot(ctx, sourceThreadID)
	if err != nil {
		return domain.Thread{}, fmt.Errorf("read source messages: %w", err)
	}

	newID := s.newID()
	if err := s.checkAcyclic(ctx, sourceThreadID, newID); err != nil {
		return domain.Thread{}, err
	}

	plan, err := s.planner.Plan(ctx, newID, snapshot, originMessageID, mode)
	if err != nil {
		return domain.Thread{}, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = source.Title + " (fork)"
	}

	now := s.now()
	thread := domain.Thread{
		ID:                  newID,
		Title:               title,
		ParentContextID:     sourceThreadID,
		ForkType:            mode,
		ForkedFromMessageID: originMessageID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.threads.Create(ctx, thread); err != nil {
		return domain.Thread{}, fmt.Errorf("create fork thread: %w", err)
	}

	if len(plan.Seed) > 0 {
		if err := s.messages.InsertBatch(ctx, plan.Seed); err != nil {
			// Compensación: el hilo sin semilla no debe quedar visible.
			if derr := s.threads.Delete(ctx, newID); derr != nil {
				s.logger.Error("fork rollback failed, orphan thread left behind",
					zap.String("thread_id", newID), zap.Error(derr))
			}
			return domain.Thread{}, fmt.Errorf("seed fork thread: %w", err)
		}
	}

	s.logger.Info("thread forked",
		zap.String("source_thread_id", sourceThreadID),
		zap.String("thread_id", newID),
		zap.String("mode", string(mode)),
		zap.Int("seed_messages", len(plan.Seed)),
	)

	return thread, nil
}

func (s *ForkService) readSnapshot(ctx context.Context, threadID string) ([]domain.Message, error) {
	v, err, _ := s.snapshots.Do(threadID, func() (interface{}, error) {
		return s.messages.ListByThreadID(ctx, threadID)
	})
	if err != nil {
		return nil, err
	}
	messages, _ := v.([]domain.Message)
	return messages, nil
}

// checkAcyclic rechaza el fork si el id candidato aparece en la cadena de
// ancestros del origen. Con ids uuid frescos no puede pasar, pero si los
// ids se reciclan alguna vez este chequeo es obligatorio.
func (s *ForkService) checkAcyclic(ctx context.Context, sourceThreadID, candidateID string) error {
	if candidateID == sourceThreadID {
		return ErrWouldCreateCycle
	}
	ancestors, err := s.Ancestors(ctx, sourceThreadID)
	if err != nil {
		return err
	}
	for _, id := range ancestors {
		if id == candidateID {
			return ErrWouldCreateCycle
		}
	}
	return nil
}

// Ancestors devuelve la cadena de procedencia, el más cercano primero.
// Un padre borrado corta el recorrido sin error: degrada a "padre
// desconocido". Un set de visitados protege contra ciclos en datos viejos.
func (s *ForkService) Ancestors(ctx context.Context, threadID string) ([]string, error) {
	if s == nil || s.threads == nil {
		return nil, ErrForkServiceNotConfigured
	}

	thread, err := s.threads.GetByID(ctx, threadID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{thread.ID: true}
	var chain []string
	for thread.IsFork() && !seen[thread.ParentContextID] {
		chain = append(chain, thread.ParentContextID)
		seen[thread.ParentContextID] = true

		parent, err := s.threads.GetByID(ctx, thread.ParentContextID)
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		thread = parent
	}

	return chain, nil
}

// Children devuelve los hilos forkeados directamente de threadID; alimenta
// los badges de "forked from here" en la navegación.
func (s *ForkService) Children(ctx context.Context, threadID string) ([]domain.Thread, error) {
	if s == nil || s.threads == nil {
		return nil, ErrForkServiceNotConfigured
	}
	return s.threads.ListByParentID(ctx, threadID)
}
