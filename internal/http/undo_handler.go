package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"treechat/internal/service"
)

// UndoHandler resuelve los pedidos de deshacer.
type UndoHandler struct {
	logger *zap.Logger
	ledger service.UndoLedger
}

func NewUndoHandler(logger *zap.Logger, ledger service.UndoLedger) *UndoHandler {
	return &UndoHandler{logger: logger, ledger: ledger}
}

// ResolveUndo maneja POST /undo/:token. Reenviar un token ya consumido es
// un no-op que responde already-resolved, nunca un undo duplicado.
func (h *UndoHandler) ResolveUndo(c *gin.Context) {
	token, err := h.ledger.Resolve(c.Request.Context(), c.Param("token"))
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "undo token not found"})
	case errors.Is(err, service.ErrTokenAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "already resolved", "undo": token})
	case errors.Is(err, service.ErrTokenExpired):
		c.JSON(http.StatusGone, gin.H{"error": "undo window expired", "undo": token})
	case err != nil:
		h.logger.Error("undo failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not undo", "undo": token})
	default:
		c.JSON(http.StatusOK, gin.H{"undo": token})
	}
}

// PeekUndo maneja GET /undo/:token: estado actual sin consumir, para la
// confirmación suave ("Completed 'x'. Undo?").
func (h *UndoHandler) PeekUndo(c *gin.Context) {
	token, err := h.ledger.Peek(c.Request.Context(), c.Param("token"))
	if errors.Is(err, service.ErrTokenNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "undo token not found"})
		return
	}
	if err != nil {
		h.logger.Error("peek undo failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read undo token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"undo": token})
}
