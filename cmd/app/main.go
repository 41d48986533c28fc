package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lms-ai-backend/internal/config"
	"lms-ai-backend/internal/domain/model"
	pg "lms-ai-backend/internal/infra/db/postgres"
	"lms-ai-backend/internal/infra/logging"
	"lms-ai-backend/internal/infra/metrics"
	"lms-ai-backend/internal/infra/pyris"
	red "lms-ai-backend/internal/infra/redis"
	"lms-ai-backend/internal/infra/sched"
	"lms-ai-backend/internal/infra/web"
	"lms-ai-backend/internal/infra/worker"
	"lms-ai-backend/internal/infra/ws"
	"lms-ai-backend/internal/jobs"
	"lms-ai-backend/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("development mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	sessionRepo := pg.NewChatSessionRepo(pool)
	costRepo := pg.NewTokenUsageRepo(pool)
	stateRepo := pg.NewIngestionStateRepo(pool)
	submissionRepo := pg.NewSubmissionRepo(pool)

	// ---- Job registry and pipeline runtime ----
	defaultTTL, kindTTL := cfg.JobTTLs()
	registry := jobs.New(jobs.Config{DefaultTTL: defaultTTL, KindTTL: kindTTL}, logger)
	runner := pyris.NewClient(&cfg.Pyris, logger)
	hub := ws.NewHub(logger)

	// ---- Use cases ----
	limits := cfg.RateLimits.Policies()
	chatUC := usecase.NewChatUseCase(sessionRepo, registry, runner, rateLimiter, hub, limits, logger)
	artifactUC := usecase.NewArtifactUseCase(registry, runner, rateLimiter, limits, logger)
	ingestUC := usecase.NewIngestionUseCase(stateRepo, registry, runner, logger)

	dispatcher := usecase.NewStatusDispatcher(registry, hub, logger)
	dispatcher.Register(model.FamilyChat, usecase.NewChatStatusHandler(sessionRepo, costRepo, pg.NewTxManager(pool), registry, logger))
	dispatcher.Register(model.FamilyArtifact, usecase.NewArtifactStatusHandler(costRepo, logger))
	dispatcher.Register(model.FamilyIngestion, usecase.NewIngestionStatusHandler(stateRepo, logger))

	// ---- Proactive events ----
	var proactiveUC *usecase.ProactiveUseCase
	if cfg.Proactive.Enabled {
		taskPool := worker.NewPool(cfg.Proactive.Workers, logger)
		taskPool.Start(ctx)
		defer taskPool.Stop()
		proactiveUC = usecase.NewProactiveUseCase(submissionRepo, registry, runner, hub, taskPool, cfg.Proactive.DisabledCourses, logger)
	}

	// ---- TTL sweeper ----
	sweeper := sched.NewSweepWorker(cfg.Jobs.SweepInterval, registry, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret)
	srv := web.NewServer(chatUC, artifactUC, ingestUC, proactiveUC, dispatcher, hub, auth, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}
