package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"treechat/internal/service"
)

// ChatHandler mantiene dependencias para los endpoints de mensajes.
type ChatHandler struct {
	logger *zap.Logger
	chat   *service.ChatService
}

func NewChatHandler(logger *zap.Logger, chat *service.ChatService) *ChatHandler {
	return &ChatHandler{logger: logger, chat: chat}
}

// PostChat maneja POST /chat: agrega el mensaje del usuario y devuelve la
// respuesta del asistente colgada de él.
func (h *ChatHandler) PostChat(c *gin.Context) {
	var req struct {
		ContextID       string `json:"context_id" binding:"required"`
		ParentMessageID string `json:"parent_message_id"`
		Message         string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userMsg, assistantMsg, err := h.chat.Send(c.Request.Context(), req.ContextID, req.ParentMessageID, req.Message)
	switch {
	case errors.Is(err, service.ErrThreadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
	case errors.Is(err, service.ErrParentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "parent message not found"})
	case errors.Is(err, service.ErrParentWrongThread):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "parent message belongs to another context"})
	case errors.Is(err, service.ErrMessageInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case err != nil:
		h.logger.Error("chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process message"})
	default:
		c.JSON(http.StatusCreated, gin.H{
			"user_message":      userMsg,
			"assistant_message": assistantMsg,
		})
	}
}

// PostMessage maneja POST /messages: inserta un mensaje sin pedir
// respuesta del asistente.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		ContextID string `json:"context_id" binding:"required"`
		ParentID  string `json:"parent_id"`
		Role      string `json:"role" binding:"required"`
		Content   string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid post message request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	msg, err := h.chat.Append(c.Request.Context(), req.ContextID, req.ParentID, req.Role, req.Content)
	switch {
	case errors.Is(err, service.ErrThreadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
	case errors.Is(err, service.ErrParentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "parent message not found"})
	case errors.Is(err, service.ErrParentWrongThread):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "parent message belongs to another context"})
	case errors.Is(err, service.ErrMessageInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case err != nil:
		h.logger.Error("post message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save message"})
	default:
		c.JSON(http.StatusCreated, gin.H{"message": msg})
	}
}
