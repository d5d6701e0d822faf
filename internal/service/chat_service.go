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
	"treechat/internal/llm"
	"treechat/internal/repository"
)

var (
	ErrChatServiceNotConfigured = errors.New("chat service not configured")
	ErrMessageInvalidInput      = errors.New("message invalid input")
	ErrParentNotFound           = errors.New("parent message not found")
	ErrParentWrongThread        = errors.New("parent message belongs to another thread")
)

// maxContextMessages limita cuánto historial entra al prompt.
const maxContextMessages = 20

// ChatService agrega mensajes al árbol de un hilo y genera la respuesta
// del asistente sobre la rama activa.
type ChatService struct {
	threads  repository.ThreadRepository
	messages repository.MessageRepository
	llm      llm.Client
	logger   *zap.Logger
	now      func() time.Time
}

func NewChatService(
	threads repository.ThreadRepository,
	messages repository.MessageRepository,
	llmClient llm.Client,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		threads:  threads,
		messages: messages,
		llm:      llmClient,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Append inserta un mensaje en el hilo validando que el padre, si viene,
// exista y pertenezca al mismo hilo. Los padres cruzados entre hilos son
// topología inválida, nunca se persisten.
func (s *ChatService) Append(ctx context.Context, threadID, parentID, role, content string) (domain.Message, error) {
	if s == nil || s.threads == nil || s.messages == nil {
		return domain.Message{}, ErrChatServiceNotConfigured
	}

	content = strings.TrimSpace(content)
	role = strings.TrimSpace(role)
	if threadID == "" || content == "" || role == "" {
		return domain.Message{}, ErrMessageInvalidInput
	}

	if _, err := s.threads.GetByID(ctx, threadID); errors.Is(err, repository.ErrNotFound) {
		return domain.Message{}, ErrThreadNotFound
	} else if err != nil {
		return domain.Message{}, err
	}

	if parentID != "" {
		parent, err := s.messages.GetByID(ctx, parentID)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Message{}, ErrParentNotFound
		}
		if err != nil {
			return domain.Message{}, err
		}
		if parent.ThreadID != threadID {
			return domain.Message{}, ErrParentWrongThread
		}
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		ParentID:  parentID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := s.threads.Touch(ctx, threadID, msg.CreatedAt); err != nil {
		s.logger.Warn("touch thread failed", zap.String("thread_id", threadID), zap.Error(err))
	}

	return msg, nil
}

// Send agrega el mensaje del usuario, genera la respuesta del asistente
// con el contexto de la rama activa (el camino raíz→mensaje, no el hilo
// entero) y la agrega como hija del mensaje del usuario.
func (s *ChatService) Send(ctx context.Context, threadID, parentID, content string) (domain.Message, domain.Message, error) {
	if s == nil || s.llm == nil {
		return domain.Message{}, domain.Message{}, ErrChatServiceNotConfigured
	}

	userMsg, err := s.Append(ctx, threadID, parentID, domain.RoleUser, content)
	if err != nil {
		return domain.Message{}, domain.Message{}, err
	}

	prompt, err := s.branchContext(ctx, threadID, userMsg.ID)
	if err != nil {
		return userMsg, domain.Message{}, err
	}

	reply, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return userMsg, domain.Message{}, fmt.Errorf("generate reply: %w", err)
	}

	assistantMsg, err := s.Append(ctx, threadID, userMsg.ID, domain.RoleAssistant, reply)
	if err != nil {
		return userMsg, domain.Message{}, err
	}

	return userMsg, assistantMsg, nil
}

// branchContext arma el transcript de la rama que termina en messageID.
func (s *ChatService) branchContext(ctx context.Context, threadID, messageID string) (string, error) {
	all, err := s.messages.ListByThreadID(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("list thread messages: %w", err)
	}

	tree := NewMessageTree(all)
	path, ok := tree.Path(messageID)
	if !ok {
		return "", ErrParentNotFound
	}
	if len(path) > maxContextMessages {
		path = path[len(path)-maxContextMessages:]
	}

	return llm.Transcript(path), nil
}
