package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/database"
	"github.com/stemsi/exprep-backend/internal/handler"
	"github.com/stemsi/exprep-backend/internal/i18n"
	"github.com/stemsi/exprep-backend/internal/logger"
	"github.com/stemsi/exprep-backend/internal/repository"
	"github.com/stemsi/exprep-backend/internal/router"
	"github.com/stemsi/exprep-backend/internal/service"
	"github.com/stemsi/exprep-backend/internal/validator"
	"github.com/stemsi/exprep-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting exam prep backend")

	// ─── Initialize Validator & Messages ───────────────────────────────
	validator.Setup()
	if err := i18n.Init(cfg.DefaultLocale, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to load message catalogs")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	purchaseRepo := repository.NewPurchaseRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	sessionStore := repository.NewSessionStore(rdb, cfg.SessionTTL, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, userRepo)
	examService := service.NewExamService(examRepo, questionRepo, purchaseRepo, rdb, cfg.PaperCacheTTL, log)
	attemptService := service.NewAttemptService(attemptRepo, statsRepo, examService, rdb, log)
	analysisService := service.NewAnalysisService(statsRepo, attemptRepo)

	var responder service.Responder
	if cfg.DoubtLLMKey != "" {
		responder = service.NewLLMResponder(cfg.DoubtLLMURL, cfg.DoubtLLMKey, cfg.DoubtLLMModel)
		log.Info().Str("model", cfg.DoubtLLMModel).Msg("Doubt responder uses LLM")
	}
	doubtService := service.NewDoubtService(responder, log)

	practiceService := service.NewPracticeService(sessionStore, examService, attemptService, service.PracticeOptions{
		ExamMinutes:     cfg.DefaultExamMinutes,
		AutoSubmitDelay: cfg.AutoSubmitDelay,
		IdleTimeout:     cfg.RunnerIdleTimeout,
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Catalog:  handler.NewCatalogHandler(examService),
		Purchase: handler.NewPurchaseHandler(examService),
		Attempt:  handler.NewAttemptHandler(attemptService, analysisService),
		Doubt:    handler.NewDoubtHandler(doubtService),
		Practice: handler.NewPracticeHandler(practiceService),
		WS:       handler.NewWSHandler(practiceService, log, cfg.AllowedOrigins),
		Admin:    handler.NewAdminHandler(examService),
		System:   handler.NewSystemHandler(pool, rdb, practiceService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	statsWorker := worker.NewStatsWorker(statsRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		statsWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests. Hijacked websocket connections
	// are not tracked by Shutdown; they close when their runners stop.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop session runners, letting in-flight submissions finish.
	if err := practiceService.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Practice shutdown incomplete")
	}

	// 3. Stop the stats worker and wait for its final flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}
