package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"treechat/internal/domain"
)

func taskFixture() (*TaskService, *memTaskRepo, *MemoryUndoLedger) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemTaskRepo()
	ledger := NewMemoryUndoLedger(30*time.Second, zap.NewNop())
	ledger.now = func() time.Time { return base }
	svc := NewTaskService(repo, ledger, zap.NewNop())
	svc.now = func() time.Time { return base }
	return svc, repo, ledger
}

func TestTaskService_Create(t *testing.T) {
	svc, _, _ := taskFixture()

	task, err := svc.Create(context.Background(), "  Estudiar álgebra  ", "parcial del lunes", "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Title != "Estudiar álgebra" {
		t.Fatalf("expected trimmed title, got %q", task.Title)
	}
	if task.SourceMessageID != "m1" {
		t.Fatalf("expected provenance back to the chat message")
	}

	if _, err := svc.Create(context.Background(), "   ", "", ""); !errors.Is(err, ErrTaskInvalidInput) {
		t.Fatalf("expected ErrTaskInvalidInput, got %v", err)
	}
}

func TestTaskService_CompleteAndUndo(t *testing.T) {
	svc, repo, ledger := taskFixture()
	task, err := svc.Create(context.Background(), "Estudiar", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done, token, err := svc.Complete(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done.Completed || done.CompletedAt == nil {
		t.Fatalf("task should be completed")
	}
	if token.Message != "Completed 'Estudiar'" {
		t.Fatalf("unexpected undo message %q", token.Message)
	}

	if _, err := ledger.Resolve(context.Background(), token.Token); err != nil {
		t.Fatalf("unexpected error resolving undo: %v", err)
	}

	restored, err := repo.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.Completed || restored.CompletedAt != nil {
		t.Fatalf("undo should restore the open state")
	}
}

func TestTaskService_CompleteUnknownTask(t *testing.T) {
	svc, _, _ := taskFixture()
	if _, _, err := svc.Complete(context.Background(), "nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskService_RescheduleAndUndo(t *testing.T) {
	svc, repo, ledger := taskFixture()
	task, err := svc.Create(context.Background(), "Llamar al banco", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oldDue := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	task.DueDate = &oldDue
	task.DueFuzzy = "mañana a la mañana"
	if err := repo.Update(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newDue := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	moved, token, err := svc.Reschedule(context.Background(), task.ID, &newDue, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if moved.DueDate == nil || !moved.DueDate.Equal(newDue) {
		t.Fatalf("expected new due date, got %v", moved.DueDate)
	}

	if _, err := ledger.Resolve(context.Background(), token.Token); err != nil {
		t.Fatalf("unexpected error resolving undo: %v", err)
	}

	restored, err := repo.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.DueDate == nil || !restored.DueDate.Equal(oldDue) {
		t.Fatalf("undo should restore the old due date, got %v", restored.DueDate)
	}
	if restored.DueFuzzy != "mañana a la mañana" {
		t.Fatalf("undo should restore the fuzzy expression, got %q", restored.DueFuzzy)
	}
}

func TestTaskService_RescheduleDueToday(t *testing.T) {
	svc, repo, ledger := taskFixture()

	mk := func(title string, due *time.Time, completed bool) domain.Task {
		task, err := svc.Create(context.Background(), title, "", "")
		if err != nil {
			panic(err)
		}
		task.DueDate = due
		task.Completed = completed
		if err := repo.Update(context.Background(), task); err != nil {
			panic(err)
		}
		return task
	}

	today := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	yesterday := time.Date(2025, 2, 28, 15, 0, 0, 0, time.UTC)
	dueToday := mk("Hoy", &today, false)
	overdue := mk("Atrasada", &yesterday, false)
	someday := mk("Sin fecha", nil, false)
	doneToday := mk("Ya hecha", &today, true)

	to := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	count, token, err := svc.RescheduleDueToday(context.Background(), to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the open task due today, moved %d", count)
	}

	moved, _ := repo.GetByID(context.Background(), dueToday.ID)
	if moved.DueDate == nil || !moved.DueDate.Equal(to) {
		t.Fatalf("due-today task not rescheduled")
	}
	for _, untouched := range []domain.Task{overdue, someday, doneToday} {
		got, _ := repo.GetByID(context.Background(), untouched.ID)
		if (got.DueDate == nil) != (untouched.DueDate == nil) {
			t.Fatalf("task %q should be untouched", untouched.Title)
		}
		if got.DueDate != nil && !got.DueDate.Equal(*untouched.DueDate) {
			t.Fatalf("task %q should be untouched", untouched.Title)
		}
	}

	// Un solo token deshace el lote entero.
	if _, err := ledger.Resolve(context.Background(), token.Token); err != nil {
		t.Fatalf("unexpected error resolving undo: %v", err)
	}
	restored, _ := repo.GetByID(context.Background(), dueToday.ID)
	if restored.DueDate == nil || !restored.DueDate.Equal(today) {
		t.Fatalf("bulk undo should restore the original date, got %v", restored.DueDate)
	}
}

func TestTaskService_RescheduleDueTodayEmpty(t *testing.T) {
	svc, _, _ := taskFixture()

	count, token, err := svc.RescheduleDueToday(context.Background(), time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no tasks moved, got %d", count)
	}
	if token.Token != "" {
		t.Fatalf("no token should be issued for an empty batch")
	}
}
