package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"treechat/internal/domain"
	"treechat/internal/repository"
)

var (
	ErrTaskServiceNotConfigured = errors.New("task service not configured")
	ErrTaskNotFound             = errors.New("task not found")
	ErrTaskInvalidInput         = errors.New("task invalid input")
)

// Tipos de acción registrados en el ledger de undo.
const (
	actionTaskComplete   = "task_complete"
	actionTaskReschedule = "task_reschedule"
	actionBulkReschedule = "bulk_reschedule"
)

type completePayload struct {
	TaskID          string     `json:"task_id"`
	WasCompleted    bool       `json:"was_completed"`
	PrevCompletedAt *time.Time `json:"prev_completed_at,omitempty"`
}

type reschedulePayload struct {
	TaskID      string     `json:"task_id"`
	OldDueDate  *time.Time `json:"old_due_date,omitempty"`
	OldDueFuzzy string     `json:"old_due_fuzzy,omitempty"`
}

type bulkReschedulePayload struct {
	Items []reschedulePayload `json:"items"`
}

// TaskService aplica las acciones sobre tareas disparadas desde el chat.
// Cada mutación exitosa emite un token de undo; la reversa restaura el
// estado previo guardado en el payload de la acción.
type TaskService struct {
	tasks  repository.TaskRepository
	ledger UndoLedger
	logger *zap.Logger
	now    func() time.Time
}

func NewTaskService(tasks repository.TaskRepository, ledger UndoLedger, logger *zap.Logger) *TaskService {
	s := &TaskService{
		tasks:  tasks,
		ledger: ledger,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	if ledger != nil {
		ledger.RegisterReverser(actionTaskComplete, s.reverseComplete)
		ledger.RegisterReverser(actionTaskReschedule, s.reverseReschedule)
		ledger.RegisterReverser(actionBulkReschedule, s.reverseBulkReschedule)
	}
	return s
}

func (s *TaskService) Create(ctx context.Context, title, description, sourceMessageID string) (domain.Task, error) {
	if s == nil || s.tasks == nil {
		return domain.Task{}, ErrTaskServiceNotConfigured
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, ErrTaskInvalidInput
	}

	now := s.now()
	task := domain.Task{
		ID:              uuid.NewString(),
		Title:           title,
		Description:     strings.TrimSpace(description),
		Urgency:         domain.UrgencyMedium,
		SourceMessageID: sourceMessageID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (s *TaskService) ListOpen(ctx context.Context) ([]domain.Task, error) {
	if s == nil || s.tasks == nil {
		return nil, ErrTaskServiceNotConfigured
	}
	return s.tasks.ListOpen(ctx)
}

// Complete marca la tarea como hecha y emite el token para deshacerla.
func (s *TaskService) Complete(ctx context.Context, taskID string) (domain.Task, domain.UndoToken, error) {
	if s == nil || s.tasks == nil || s.ledger == nil {
		return domain.Task{}, domain.UndoToken{}, ErrTaskServiceNotConfigured
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Task{}, domain.UndoToken{}, ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, domain.UndoToken{}, err
	}

	payload := completePayload{
		TaskID:          task.ID,
		WasCompleted:    task.Completed,
		PrevCompletedAt: task.CompletedAt,
	}

	now := s.now()
	task.Completed = true
	task.CompletedAt = &now
	task.UpdatedAt = now
	if err := s.tasks.Update(ctx, task); err != nil {
		return domain.Task{}, domain.UndoToken{}, fmt.Errorf("complete task: %w", err)
	}

	token, err := s.issue(ctx, fmt.Sprintf("Completed '%s'", task.Title), actionTaskComplete, payload)
	return task, token, err
}

// Reschedule mueve la fecha de la tarea. due puede ser nil cuando el
// pedido fue vago ("later", "eventually"); fuzzy conserva esa expresión.
func (s *TaskService) Reschedule(ctx context.Context, taskID string, due *time.Time, fuzzy string) (domain.Task, domain.UndoToken, error) {
	if s == nil || s.tasks == nil || s.ledger == nil {
		return domain.Task{}, domain.UndoToken{}, ErrTaskServiceNotConfigured
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Task{}, domain.UndoToken{}, ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, domain.UndoToken{}, err
	}

	payload := reschedulePayload{
		TaskID:      task.ID,
		OldDueDate:  task.DueDate,
		OldDueFuzzy: task.DueFuzzy,
	}

	task.DueDate = due
	task.DueFuzzy = fuzzy
	task.UpdatedAt = s.now()
	if err := s.tasks.Update(ctx, task); err != nil {
		return domain.Task{}, domain.UndoToken{}, fmt.Errorf("reschedule task: %w", err)
	}

	token, err := s.issue(ctx, fmt.Sprintf("Rescheduled '%s'", task.Title), actionTaskReschedule, payload)
	return task, token, err
}

// RescheduleDueToday corre todas las tareas abiertas que vencen hoy a la
// fecha dada, con un único token que deshace el lote completo.
func (s *TaskService) RescheduleDueToday(ctx context.Context, to time.Time) (int, domain.UndoToken, error) {
	if s == nil || s.tasks == nil || s.ledger == nil {
		return 0, domain.UndoToken{}, ErrTaskServiceNotConfigured
	}

	open, err := s.tasks.ListOpen(ctx)
	if err != nil {
		return 0, domain.UndoToken{}, err
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	var bulk bulkReschedulePayload
	for _, task := range open {
		if task.DueDate == nil || task.DueDate.Before(startOfDay) || !task.DueDate.Before(endOfDay) {
			continue
		}
		bulk.Items = append(bulk.Items, reschedulePayload{
			TaskID:      task.ID,
			OldDueDate:  task.DueDate,
			OldDueFuzzy: task.DueFuzzy,
		})

		due := to
		task.DueDate = &due
		task.DueFuzzy = ""
		task.UpdatedAt = now
		if err := s.tasks.Update(ctx, task); err != nil {
			return 0, domain.UndoToken{}, fmt.Errorf("bulk reschedule task %s: %w", task.ID, err)
		}
	}

	if len(bulk.Items) == 0 {
		return 0, domain.UndoToken{}, nil
	}

	msg := fmt.Sprintf("Rescheduled %d tasks", len(bulk.Items))
	token, err := s.issue(ctx, msg, actionBulkReschedule, bulk)
	return len(bulk.Items), token, err
}

func (s *TaskService) issue(ctx context.Context, message, actionType string, payload any) (domain.UndoToken, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.UndoToken{}, fmt.Errorf("marshal undo payload: %w", err)
	}
	token, err := s.ledger.Issue(ctx, message, domain.ActionRef{Type: actionType, Payload: raw})
	if err != nil {
		// La acción ya se aplicó; sin token solo se pierde la reversa.
		s.logger.Warn("issue undo token failed", zap.Error(err))
		return domain.UndoToken{}, err
	}
	return token, nil
}

func (s *TaskService) reverseComplete(ctx context.Context, payload json.RawMessage) error {
	var p completePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("unmarshal complete payload: %w", err)
	}

	task, err := s.tasks.GetByID(ctx, p.TaskID)
	if err != nil {
		return err
	}
	task.Completed = p.WasCompleted
	task.CompletedAt = p.PrevCompletedAt
	task.UpdatedAt = s.now()
	return s.tasks.Update(ctx, task)
}

func (s *TaskService) reverseReschedule(ctx context.Context, payload json.RawMessage) error {
	var p reschedulePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("unmarshal reschedule payload: %w", err)
	}
	return s.restoreDue(ctx, p)
}

func (s *TaskService) reverseBulkReschedule(ctx context.Context, payload json.RawMessage) error {
	var p bulkReschedulePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("unmarshal bulk payload: %w", err)
	}
	for _, item := range p.Items {
		if err := s.restoreDue(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *TaskService) restoreDue(ctx context.Context, p reschedulePayload) error {
	task, err := s.tasks.GetByID(ctx, p.TaskID)
	if err != nil {
		return err
	}
	task.DueDate = p.OldDueDate
	task.DueFuzzy = p.OldDueFuzzy
	task.UpdatedAt = s.now()
	return s.tasks.Update(ctx, task)
}
