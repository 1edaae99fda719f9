package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/attempt-service/internal/cache"
	"github.com/quizdesk/attempt-service/internal/config"
	"github.com/quizdesk/attempt-service/internal/handlers"
	"github.com/quizdesk/attempt-service/internal/llm"
	"github.com/quizdesk/attempt-service/internal/lock"
	"github.com/quizdesk/attempt-service/internal/repositories/postgres"
	"github.com/quizdesk/attempt-service/internal/scheduler"
	"github.com/quizdesk/attempt-service/internal/services"
	"github.com/quizdesk/attempt-service/internal/token"
	"github.com/quizdesk/attempt-service/internal/utils"
	"github.com/quizdesk/attempt-service/internal/validator"
	"github.com/quizdesk/attempt-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	repo := postgres.NewRepository(db)

	// Redis is optional: without it spec reads go straight to Postgres.
	examRepo := repo.Exam()
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, exam spec cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		specCache := cache.NewRedisCache(redisClient, logger)
		examRepo = cache.NewCachedExamRepository(examRepo, specCache, cfg.SpecCacheTTL, logger)
	}

	eventCfg := config.LoadEventConfig()
	publisher, err := eventCfg.CreateEventPublisher(slog.Default())
	if err != nil {
		logger.Error("failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	llmClient := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
		TimeoutJSON: cfg.LLM.TimeoutJSON,
		TimeoutText: cfg.LLM.TimeoutText,
		RetryMax:    cfg.LLM.RetryMax,
		Backoff:     cfg.LLM.RetryBackoff,
	}, logger)

	locks := lock.NewManager()
	v := validator.New()
	grading := services.NewGradingService(llmClient, logger)
	finalizer := services.NewFinalizer(repo, examRepo, grading, publisher, logger)
	attemptService := services.NewAttemptService(repo, examRepo, locks, finalizer, logger)
	verifyService := services.NewVerifyService(repo, locks, logger, v)
	assignmentService := services.NewAssignmentService(repo, examRepo,
		token.NewGenerator(cfg.TokenSecret),
		services.AssignmentPolicy{
			TimeLimitSeconds:  cfg.TimeLimitSeconds,
			MinSubmitSeconds:  cfg.MinSubmitSeconds,
			MinSubmitFloor:    cfg.MinSubmitFloor,
			VerifyMaxAttempts: cfg.VerifyMaxAttempts,
			PassThreshold:     cfg.PassThreshold,
		}, logger, v)
	exportService := services.NewExportService(repo, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := scheduler.NewAutoCollector(repo, locks, finalizer, cfg.SweepInterval, logger)
	go collector.Run(ctx)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(utils.ContextLogger(logger))

	hm := handlers.NewHandlerManager(attemptService, verifyService, assignmentService, exportService, logger)
	hm.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
