package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	contextH *ContextHandler,
	chatH *ChatHandler,
	folderH *FolderHandler,
	taskH *TaskHandler,
	summaryH *SummaryHandler,
	undoH *UndoHandler,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	contexts := r.Group("/contexts")
	contexts.POST("", contextH.CreateContext)
	contexts.GET("", contextH.ListContexts)
	contexts.GET("/:id", contextH.GetContext)
	contexts.PATCH("/:id", contextH.RenameContext)
	contexts.DELETE("/:id", contextH.DeleteContext)
	contexts.GET("/:id/messages", contextH.ListContextMessages)
	contexts.GET("/:id/tree", contextH.GetContextTree)
	contexts.GET("/:id/forks", contextH.ListForks)
	contexts.GET("/:id/ancestors", contextH.ListAncestors)
	contexts.POST("/:id/fork", contextH.ForkContext)

	r.POST("/chat", chatH.PostChat)
	r.POST("/messages", chatH.PostMessage)

	folders := r.Group("/folders")
	folders.POST("", folderH.CreateFolder)
	folders.GET("", folderH.ListFolders)
	folders.PATCH("/:id", folderH.RenameFolder)
	folders.DELETE("/:id", folderH.DeleteFolder)
	folders.POST("/move", folderH.MoveThread)
	folders.GET("/tree", folderH.RenderTree)

	tasks := r.Group("/tasks")
	tasks.GET("", taskH.ListOpenTasks)
	tasks.POST("", taskH.CreateTask)
	tasks.POST("/:id/complete", taskH.CompleteTask)
	tasks.POST("/:id/reschedule", taskH.RescheduleTask)
	tasks.POST("/reschedule-today", taskH.RescheduleDueToday)

	summary := r.Group("/summary")
	summary.GET("/today", summaryH.TodaySummary)
	summary.GET("/week", summaryH.WeekSummary)
	summary.GET("/overdue", summaryH.OverdueSummary)

	r.POST("/undo/:token", undoH.ResolveUndo)
	r.GET("/undo/:token", undoH.PeekUndo)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
