package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"treechat/internal/service"
)

// SummaryHandler expone los resúmenes conversacionales de tareas:
// "¿qué tengo hoy?", "¿qué queda esta semana?", "¿qué se me pasó?".
type SummaryHandler struct {
	logger    *zap.Logger
	summaries *service.TaskSummaryService
}

func NewSummaryHandler(logger *zap.Logger, summaries *service.TaskSummaryService) *SummaryHandler {
	return &SummaryHandler{logger: logger, summaries: summaries}
}

// TodaySummary maneja GET /summary/today.
func (h *SummaryHandler) TodaySummary(c *gin.Context) {
	h.respond(c, h.summaries.Today)
}

// WeekSummary maneja GET /summary/week.
func (h *SummaryHandler) WeekSummary(c *gin.Context) {
	h.respond(c, h.summaries.Week)
}

// OverdueSummary maneja GET /summary/overdue.
func (h *SummaryHandler) OverdueSummary(c *gin.Context) {
	h.respond(c, h.summaries.Overdue)
}

func (h *SummaryHandler) respond(c *gin.Context, fn func(context.Context) (service.TaskSummary, error)) {
	summary, err := fn(c.Request.Context())
	if err != nil {
		h.logger.Error("task summary failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build summary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
