package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"treechat/internal/domain"
	"treechat/internal/service"
)

// ContextHandler mantiene dependencias para endpoints de hilos y forks.
type ContextHandler struct {
	logger  *zap.Logger
	threads *service.ThreadService
	forks   *service.ForkService
}

func NewContextHandler(logger *zap.Logger, threads *service.ThreadService, forks *service.ForkService) *ContextHandler {
	return &ContextHandler{logger: logger, threads: threads, forks: forks}
}

// CreateContext maneja POST /contexts.
func (h *ContextHandler) CreateContext(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	thread, err := h.threads.Create(c.Request.Context(), req.Title)
	if err != nil {
		h.logger.Error("create context failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create context"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"context": thread})
}

// ListContexts maneja GET /contexts.
func (h *ContextHandler) ListContexts(c *gin.Context) {
	threads, err := h.threads.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list contexts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list contexts"})
		return
	}
	if threads == nil {
		threads = []domain.Thread{}
	}
	c.JSON(http.StatusOK, gin.H{"contexts": threads})
}

// GetContext maneja GET /contexts/:id.
func (h *ContextHandler) GetContext(c *gin.Context) {
	thread, err := h.threads.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrThreadNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		return
	}
	if err != nil {
		h.logger.Error("get context failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get context"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": thread})
}

// RenameContext maneja PATCH /contexts/:id.
func (h *ContextHandler) RenameContext(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.threads.Rename(c.Request.Context(), c.Param("id"), req.Title)
	if errors.Is(err, service.ErrThreadNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		return
	}
	if err != nil {
		h.logger.Error("rename context failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not rename context"})
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteContext maneja DELETE /contexts/:id.
func (h *ContextHandler) DeleteContext(c *gin.Context) {
	err := h.threads.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrThreadNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		return
	}
	if err != nil {
		h.logger.Error("delete context failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete context"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListContextMessages maneja GET /contexts/:id/messages.
func (h *ContextHandler) ListContextMessages(c *gin.Context) {
	messages, err := h.threads.Messages(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrThreadNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		return
	}
	if err != nil {
		h.logger.Error("list context messages failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// messageNode es la forma anidada que consume el render del árbol.
type messageNode struct {
	Message  domain.Message `json:"message"`
	Children []messageNode  `json:"children,omitempty"`
}

// GetContextTree maneja GET /contexts/:id/tree: devuelve los mensajes ya
// anidados en el orden del contrato de render.
func (h *ContextHandler) GetContextTree(c *gin.Context) {
	messages, err := h.threads.Messages(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrThreadNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		return
	}
	if err != nil {
		h.logger.Error("get context tree failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build tree"})
		return
	}

	tree := service.NewMessageTree(messages)
	var build func(parentID string) []messageNode
	build = func(parentID string) []messageNode {
		children := tree.Children(parentID)
		nodes := make([]messageNode, 0, len(children))
		for _, m := range children {
			nodes = append(nodes, messageNode{Message: m, Children: build(m.ID)})
		}
		return nodes
	}

	c.JSON(http.StatusOK, gin.H{"tree": build("")})
}

// ForkContext maneja POST /contexts/:id/fork.
func (h *ContextHandler) ForkContext(c *gin.Context) {
	var req struct {
		Title           string `json:"title"`
		Mode            string `json:"mode" binding:"required"`
		OriginMessageID string `json:"origin_message_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	thread, err := h.forks.CreateFork(
		c.Request.Context(),
		c.Param("id"),
		req.Title,
		domain.ForkType(req.Mode),
		req.OriginMessageID,
	)
	switch {
	case errors.Is(err, service.ErrThreadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
	case errors.Is(err, service.ErrOriginNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "origin message not found"})
	case errors.Is(err, service.ErrUnknownForkMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown fork mode"})
	case errors.Is(err, service.ErrWouldCreateCycle):
		c.JSON(http.StatusConflict, gin.H{"error": "fork would create cycle"})
	case err != nil:
		h.logger.Error("fork context failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fork context, please retry"})
	default:
		c.JSON(http.StatusCreated, gin.H{"context": thread})
	}
}

// ListForks maneja GET /contexts/:id/forks.
func (h *ContextHandler) ListForks(c *gin.Context) {
	forks, err := h.forks.Children(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("list forks failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list forks"})
		return
	}
	if forks == nil {
		forks = []domain.Thread{}
	}
	c.JSON(http.StatusOK, gin.H{"forks": forks})
}

// ListAncestors maneja GET /contexts/:id/ancestors.
func (h *ContextHandler) ListAncestors(c *gin.Context) {
	chain, err := h.forks.Ancestors(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrThreadNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
		return
	}
	if err != nil {
		h.logger.Error("list ancestors failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list ancestors"})
		return
	}
	if chain == nil {
		chain = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"ancestors": chain})
}
