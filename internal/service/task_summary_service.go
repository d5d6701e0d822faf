package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"treechat/internal/domain"
)

var ErrSummaryServiceNotConfigured = errors.New("task summary service not configured")

// Ventanas de tiempo para los resúmenes conversacionales de tareas.
const (
	SummaryToday   = "today"
	SummaryWeek    = "week"
	SummaryOverdue = "overdue"
)

// TaskSummary es la respuesta de un resumen: las tareas de la ventana ya
// ordenadas para el render del chat, más sugerencias suaves.
type TaskSummary struct {
	Window      string        `json:"window"`
	Count       int           `json:"count"`
	Tasks       []domain.Task `json:"tasks"`
	Suggestions []string      `json:"suggestions"`
}

// TaskSummaryService contesta las consultas chat-first sobre tareas:
// "¿qué tengo hoy?", "¿qué queda esta semana?", "¿qué se me pasó?".
// Opera sobre las tareas abiertas; las completadas nunca aparecen.
type TaskSummaryService struct {
	tasks taskLister
	now   func() time.Time
}

// taskLister es lo único que el resumen necesita del repositorio.
type taskLister interface {
	ListOpen(ctx context.Context) ([]domain.Task, error)
}

func NewTaskSummaryService(tasks taskLister) *TaskSummaryService {
	return &TaskSummaryService{
		tasks: tasks,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Today responde "¿qué tengo hoy?": tareas abiertas que vencen hasta el fin
// del día (las atrasadas cuentan, siguen pendientes) más las fechas difusas
// "today", ordenadas por prioridad suave descendente.
func (s *TaskSummaryService) Today(ctx context.Context) (TaskSummary, error) {
	if s == nil || s.tasks == nil {
		return TaskSummary{}, ErrSummaryServiceNotConfigured
	}

	open, err := s.tasks.ListOpen(ctx)
	if err != nil {
		return TaskSummary{}, err
	}

	now := s.now()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)

	var window []domain.Task
	for _, task := range open {
		if (task.DueDate != nil && !task.DueDate.After(endOfDay)) || task.DueFuzzy == "today" {
			window = append(window, task)
		}
	}

	sort.SliceStable(window, func(i, j int) bool {
		return s.softPriority(window[i], now) > s.softPriority(window[j], now)
	})

	return TaskSummary{
		Window:      SummaryToday,
		Count:       len(window),
		Tasks:       window,
		Suggestions: s.suggestions(window),
	}, nil
}

// Week responde "¿qué queda esta semana?": tareas abiertas entre ahora y el
// próximo domingo inclusive, más las difusas "this week", por fecha de
// vencimiento ascendente y prioridad como desempate.
func (s *TaskSummaryService) Week(ctx context.Context) (TaskSummary, error) {
	if s == nil || s.tasks == nil {
		return TaskSummary{}, ErrSummaryServiceNotConfigured
	}

	open, err := s.tasks.ListOpen(ctx)
	if err != nil {
		return TaskSummary{}, err
	}

	now := s.now()
	daysUntilSunday := (7 - int(now.Weekday())) % 7
	if daysUntilSunday == 0 {
		daysUntilSunday = 7
	}
	endOfWeek := now.AddDate(0, 0, daysUntilSunday)
	endOfWeek = time.Date(endOfWeek.Year(), endOfWeek.Month(), endOfWeek.Day(), 23, 59, 59, 0, time.UTC)

	var window []domain.Task
	for _, task := range open {
		inRange := task.DueDate != nil && !task.DueDate.Before(now) && !task.DueDate.After(endOfWeek)
		if inRange || task.DueFuzzy == "this week" {
			window = append(window, task)
		}
	}

	sort.SliceStable(window, func(i, j int) bool {
		di, dj := window[i].DueDate, window[j].DueDate
		switch {
		case di == nil && dj == nil:
			return s.softPriority(window[i], now) > s.softPriority(window[j], now)
		case di == nil:
			return false
		case dj == nil:
			return true
		case !di.Equal(*dj):
			return di.Before(*dj)
		}
		return s.softPriority(window[i], now) > s.softPriority(window[j], now)
	})

	return TaskSummary{
		Window:      SummaryWeek,
		Count:       len(window),
		Tasks:       window,
		Suggestions: s.suggestions(window),
	}, nil
}

// Overdue lista las tareas abiertas ya vencidas, la más vieja primero.
func (s *TaskSummaryService) Overdue(ctx context.Context) (TaskSummary, error) {
	if s == nil || s.tasks == nil {
		return TaskSummary{}, ErrSummaryServiceNotConfigured
	}

	open, err := s.tasks.ListOpen(ctx)
	if err != nil {
		return TaskSummary{}, err
	}

	now := s.now()
	var window []domain.Task
	for _, task := range open {
		if task.DueDate != nil && task.DueDate.Before(now) {
			window = append(window, task)
		}
	}

	sort.SliceStable(window, func(i, j int) bool {
		return window[i].DueDate.Before(*window[j].DueDate)
	})

	summary := TaskSummary{
		Window:      SummaryOverdue,
		Count:       len(window),
		Tasks:       window,
		Suggestions: []string{},
	}
	if len(window) > 0 {
		summary.Suggestions = []string{"Consider rescheduling or removing overdue tasks"}
	}
	return summary, nil
}

// softPriority puntúa una tarea sin números de prioridad explícitos:
// urgencia base más proximidad del vencimiento.
func (s *TaskSummaryService) softPriority(task domain.Task, now time.Time) float64 {
	score := 0.5
	switch task.Urgency {
	case domain.UrgencyCritical:
		score = 1.0
	case domain.UrgencyHigh:
		score = 0.8
	case domain.UrgencyMedium:
		score = 0.5
	case domain.UrgencyLow:
		score = 0.2
	}
	score *= 0.4

	if task.DueDate != nil {
		if task.DueDate.Before(now) {
			score += 0.3
		} else if task.DueDate.Sub(now) <= 24*time.Hour {
			score += 0.2
		}
	}
	return score
}

// suggestions arma los empujones suaves del chat: señala la primera tarea
// urgente de la ventana, si hay alguna.
func (s *TaskSummaryService) suggestions(window []domain.Task) []string {
	for _, task := range window {
		if task.Urgency == domain.UrgencyHigh || task.Urgency == domain.UrgencyCritical {
			return []string{fmt.Sprintf("This seems important: '%s'. Want to focus on it today?", task.Title)}
		}
	}
	return []string{}
}
