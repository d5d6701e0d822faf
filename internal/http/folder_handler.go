package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"treechat/internal/domain"
	"treechat/internal/repository"
	"treechat/internal/service"
)

// FolderHandler mantiene dependencias para la organización de la barra
// lateral. Después de cada mutación rehidrata el snapshot del árbol.
type FolderHandler struct {
	logger  *zap.Logger
	folders repository.FolderRepository
	threads repository.ThreadRepository
	tree    *service.OrganizationTree
}

func NewFolderHandler(
	logger *zap.Logger,
	folders repository.FolderRepository,
	threads repository.ThreadRepository,
	tree *service.OrganizationTree,
) *FolderHandler {
	return &FolderHandler{logger: logger, folders: folders, threads: threads, tree: tree}
}

// CreateFolder maneja POST /folders.
func (h *FolderHandler) CreateFolder(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Order int    `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	now := time.Now().UTC()
	folder := domain.Folder{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Order:     req.Order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.folders.Create(c.Request.Context(), folder); err != nil {
		h.logger.Error("create folder failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create folder"})
		return
	}

	h.rehydrate(c)
	c.JSON(http.StatusCreated, gin.H{"folder": folder})
}

// ListFolders maneja GET /folders.
func (h *FolderHandler) ListFolders(c *gin.Context) {
	folders, err := h.folders.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list folders failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list folders"})
		return
	}
	if folders == nil {
		folders = []domain.Folder{}
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

// RenameFolder maneja PATCH /folders/:id.
func (h *FolderHandler) RenameFolder(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.folders.Rename(c.Request.Context(), c.Param("id"), req.Name)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
		return
	}
	if err != nil {
		h.logger.Error("rename folder failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not rename folder"})
		return
	}

	h.rehydrate(c)
	c.Status(http.StatusNoContent)
}

// DeleteFolder maneja DELETE /folders/:id. Los hilos del folder no se
// borran: quedan sin archivar.
func (h *FolderHandler) DeleteFolder(c *gin.Context) {
	if err := h.folders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Error("delete folder failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete folder"})
		return
	}

	h.rehydrate(c)
	c.Status(http.StatusNoContent)
}

// MoveThread maneja POST /folders/move: el drop de un hilo sobre un
// folder (o sobre el tope, folder_id vacío).
func (h *FolderHandler) MoveThread(c *gin.Context) {
	var req struct {
		ThreadID string `json:"thread_id" binding:"required"`
		FolderID string `json:"folder_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.tree.MoveThread(c.Request.Context(), req.ThreadID, req.FolderID)
	switch {
	case errors.Is(err, service.ErrNodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "thread or folder not found"})
	case errors.Is(err, service.ErrInvalidMoveTarget):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "only thread to folder moves are allowed"})
	case err != nil:
		h.logger.Error("move thread failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not move thread"})
	default:
		c.Status(http.StatusNoContent)
	}
}

// RenderTree maneja GET /folders/tree?filter=... y devuelve el snapshot
// filtrado de la barra lateral.
func (h *FolderHandler) RenderTree(c *gin.Context) {
	nodes := h.tree.Render(c.Query("filter"))
	if nodes == nil {
		nodes = []service.OrganizationNode{}
	}
	c.JSON(http.StatusOK, gin.H{"tree": nodes})
}

// rehydrate recarga el snapshot desde los listados autoritativos. El árbol
// serializa esto contra cualquier move en vuelo; la política es
// last-write-wins.
func (h *FolderHandler) rehydrate(c *gin.Context) {
	folders, err := h.folders.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("rehydrate folders failed", zap.Error(err))
		return
	}
	threads, err := h.threads.List(c.Request.Context())
	if err != nil {
		h.logger.Warn("rehydrate threads failed", zap.Error(err))
		return
	}
	h.tree.Hydrate(folders, threads)
}
