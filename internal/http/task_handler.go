package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"treechat/internal/domain"
	"treechat/internal/service"
)

// TaskHandler expone las acciones reversibles sobre tareas. Cada mutación
// devuelve el token de undo junto con el resultado.
type TaskHandler struct {
	logger *zap.Logger
	tasks  *service.TaskService
}

func NewTaskHandler(logger *zap.Logger, tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{logger: logger, tasks: tasks}
}

// ListOpenTasks maneja GET /tasks.
func (h *TaskHandler) ListOpenTasks(c *gin.Context) {
	tasks, err := h.tasks.ListOpen(c.Request.Context())
	if err != nil {
		h.logger.Error("list tasks failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list tasks"})
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// CreateTask maneja POST /tasks.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req struct {
		Title           string `json:"title" binding:"required"`
		Description     string `json:"description"`
		SourceMessageID string `json:"source_message_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), req.Title, req.Description, req.SourceMessageID)
	if errors.Is(err, service.ErrTaskInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err != nil {
		h.logger.Error("create task failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create task"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

// CompleteTask maneja POST /tasks/:id/complete.
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	task, token, err := h.tasks.Complete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		h.logger.Error("complete task failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete task"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task, "undo": token})
}

// RescheduleTask maneja POST /tasks/:id/reschedule.
func (h *TaskHandler) RescheduleTask(c *gin.Context) {
	var req struct {
		DueDate  *time.Time `json:"due_date"`
		DueFuzzy string     `json:"due_fuzzy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	task, token, err := h.tasks.Reschedule(c.Request.Context(), c.Param("id"), req.DueDate, req.DueFuzzy)
	if errors.Is(err, service.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		h.logger.Error("reschedule task failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reschedule task"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task, "undo": token})
}

// RescheduleDueToday maneja POST /tasks/reschedule-today: "push everything
// to tomorrow" y variantes. to manda; si falta, mañana a la misma hora.
func (h *TaskHandler) RescheduleDueToday(c *gin.Context) {
	var req struct {
		To *time.Time `json:"to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	to := time.Now().UTC().Add(24 * time.Hour)
	if req.To != nil {
		to = *req.To
	}

	count, token, err := h.tasks.RescheduleDueToday(c.Request.Context(), to)
	if err != nil {
		h.logger.Error("bulk reschedule failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reschedule tasks"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusOK, gin.H{"rescheduled": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rescheduled": count, "undo": token})
}
