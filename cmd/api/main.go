package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"treechat/internal/config"
	"treechat/internal/db"
	apihttp "treechat/internal/http"
	"treechat/internal/llm"
	"treechat/internal/repository"
	"treechat/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	threadRepo := repository.NewPgThreadRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	folderRepo := repository.NewPgFolderRepository(pool)
	taskRepo := repository.NewPgTaskRepository(pool)

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)

	undoWindow := time.Duration(cfg.UndoWindowSeconds) * time.Second
	ledger := newUndoLedger(ctx, cfg, undoWindow, logger)

	planner := service.NewForkPlanner(llmClient)
	forkSvc := service.NewForkService(threadRepo, messageRepo, planner, logger)
	threadSvc := service.NewThreadService(threadRepo, messageRepo, logger)
	chatSvc := service.NewChatService(threadRepo, messageRepo, llmClient, logger)
	taskSvc := service.NewTaskService(taskRepo, ledger, logger)
	summarySvc := service.NewTaskSummaryService(taskRepo)

	orgTree := service.NewOrganizationTree(folderRepo, logger)
	if folders, err := folderRepo.List(ctx); err != nil {
		logger.Warn("hydrate folders failed", zap.Error(err))
	} else if threads, err := threadRepo.List(ctx); err != nil {
		logger.Warn("hydrate threads failed", zap.Error(err))
	} else {
		orgTree.Hydrate(folders, threads)
	}

	contextHandler := apihttp.NewContextHandler(logger, threadSvc, forkSvc)
	chatHandler := apihttp.NewChatHandler(logger, chatSvc)
	folderHandler := apihttp.NewFolderHandler(logger, folderRepo, threadRepo, orgTree)
	taskHandler := apihttp.NewTaskHandler(logger, taskSvc)
	summaryHandler := apihttp.NewSummaryHandler(logger, summarySvc)
	undoHandler := apihttp.NewUndoHandler(logger, ledger)
	router := apihttp.NewRouter(logger, contextHandler, chatHandler, folderHandler, taskHandler, summaryHandler, undoHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

// newUndoLedger elige el ledger de undo: redis si está configurado y responde,
// memoria del proceso si no.
func newUndoLedger(ctx context.Context, cfg *config.Config, window time.Duration, logger *zap.Logger) service.UndoLedger {
	if cfg.RedisAddr == "" {
		return service.NewMemoryUndoLedger(window, logger)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed, using in-memory undo ledger", zap.Error(err))
		return service.NewMemoryUndoLedger(window, logger)
	}

	return service.NewRedisUndoLedger(client, window, logger)
}
