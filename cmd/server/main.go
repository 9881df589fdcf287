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

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/bootstrap"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/evaluator"
	"github.com/stemsi/exstem-assess/internal/events"
	"github.com/stemsi/exstem-assess/internal/grading"
	"github.com/stemsi/exstem-assess/internal/handler"
	"github.com/stemsi/exstem-assess/internal/logger"
	"github.com/stemsi/exstem-assess/internal/metrics"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/router"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stemsi/exstem-assess/internal/validator"
	"github.com/stemsi/exstem-assess/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Msg("Starting ExStem Assess")

	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Storage ──────────────────────────────────────────────────────
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer stores.Close()

	// ─── Outbound Collaborators ───────────────────────────────────────
	m := metrics.New()

	sender, err := bootstrap.NewSender(cfg.SMTP, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure notifications")
	}

	publisher, err := events.NewPublisher(cfg.Events, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create event publisher")
	}
	defer publisher.Close()

	grader := grading.NewGrader(
		evaluator.NewOpenAIEvaluator(cfg.Evaluator, log),
		grading.WithConcurrency(cfg.Evaluator.Concurrency),
	)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret)
	sessionService := service.NewSessionService(stores.Sessions, stores.Cache, log)
	scoringService := service.NewScoringService(stores.Tests, stores.Results, stores.Sessions, grader, m, log)
	declarationService := service.NewDeclarationService(
		stores.Tests,
		stores.Results,
		service.NewNameResolver(stores.Profiles, log),
		sender,
		publisher,
		m,
		cfg.Declaration,
		log,
	)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	var queue handler.JobQueue
	if stores.Redis != nil {
		declarationWorker := worker.NewDeclarationWorker(stores.Redis, declarationService, log)
		queue = declarationWorker
		workers.Add(1)
		go func() {
			defer workers.Done()
			declarationWorker.Start(workerCtx)
		}()
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	// SESSION_RATE_LIMIT <= 0 yields a nil limiter, which the router skips.
	limiter := middleware.NewRateLimiter(cfg.SessionRateLimit, time.Minute, middleware.BySubjectOrIP)
	if limiter == nil {
		log.Warn().Msg("Candidate rate limiting disabled")
	}
	defer limiter.Stop()

	handlers := &router.Handlers{
		Session:     handler.NewSessionHandler(sessionService),
		Scoring:     handler.NewScoringHandler(scoringService),
		Declaration: handler.NewDeclarationHandler(declarationService, queue, log),
		WS:          handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}
	r := router.SetupRouter(handlers, router.Deps{
		Auth:        middleware.NewAuthenticator(authService, cfg.AuthCookieName),
		Owner:       declarationService,
		Metrics:     m,
		RateLimiter: limiter,
		Log:         log,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

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

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers; a run already picked up is finished.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
