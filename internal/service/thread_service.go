package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"treechat/internal/domain"
	"treechat/internal/repository"
)

var ErrThreadServiceNotConfigured = errors.New("thread service not configured")

// ThreadService maneja el ciclo de vida de los hilos de conversación.
type ThreadService struct {
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewThreadService(
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	logger *zap.Logger,
) *ThreadService {
	return &ThreadService{threads: threads, messages: messages, logger: logger}
}

func (s *ThreadService) Create(ctx context.Context, title string) (domain.Thread, error) {
	if s == nil || s.threads == nil {
		return domain.Thread{}, ErrThreadServiceNotConfigured
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "New Conversation"
	}

	now := time.Now().UTC()
	thread := domain.Thread{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.threads.Create(ctx, thread); err != nil {
		return domain.Thread{}, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}

func (s *ThreadService) Get(ctx context.Context, id string) (domain.Thread, error) {
	if s == nil || s.threads == nil {
		return domain.Thread{}, ErrThreadServiceNotConfigured
	}
	thread, err := s.threads.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Thread{}, ErrThreadNotFound
	}
	return thread, err
}

func (s *ThreadService) List(ctx context.Context) ([]domain.Thread, error) {
	if s == nil || s.threads == nil {
		return nil, ErrThreadServiceNotConfigured
	}
	return s.threads.List(ctx)
}

func (s *ThreadService) Rename(ctx context.Context, id, title string) error {
	if s == nil || s.threads == nil {
		return ErrThreadServiceNotConfigured
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("rename thread: empty title")
	}
	err := s.threads.Rename(ctx, id, title)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrThreadNotFound
	}
	return err
}

// Delete borra el hilo junto con sus mensajes. Los forks hijos no se
// tocan: conservan su puntero de procedencia hacia un padre que ya no
// existe y todo recorrido degrada a "padre desconocido".
func (s *ThreadService) Delete(ctx context.Context, id string) error {
	if s == nil || s.threads == nil || s.messages == nil {
		return ErrThreadServiceNotConfigured
	}

	if _, err := s.threads.GetByID(ctx, id); errors.Is(err, repository.ErrNotFound) {
		return ErrThreadNotFound
	} else if err != nil {
		return err
	}

	if err := s.messages.DeleteByThreadID(ctx, id); err != nil {
		return fmt.Errorf("delete thread messages: %w", err)
	}
	if err := s.threads.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}

	s.logger.Info("thread deleted", zap.String("thread_id", id))
	return nil
}

// Messages devuelve la lista plana de mensajes del hilo en orden de
// creación. Los consumidores la convierten en árbol con NewMessageTree.
func (s *ThreadService) Messages(ctx context.Context, id string) ([]domain.Message, error) {
	if s == nil || s.threads == nil || s.messages == nil {
		return nil, ErrThreadServiceNotConfigured
	}
	if _, err := s.threads.GetByID(ctx, id); errors.Is(err, repository.ErrNotFound) {
		return nil, ErrThreadNotFound
	} else if err != nil {
		return nil, err
	}
	return s.messages.ListByThreadID(ctx, id)
}
