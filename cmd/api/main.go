package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coin-ledger/config"
	httpHandler "coin-ledger/internal/adapter/http/handler"
	"coin-ledger/internal/app"
	"coin-ledger/internal/service"
	"coin-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Coin Ledger")

	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer a.Close(10 * time.Second)
	log.Info().Msg("PostgreSQL and Redis connected")

	var scheduler *service.Scheduler
	if cfg.Jobs.Enabled {
		scheduler, err = service.NewScheduler(a.Jobs, cfg.Jobs, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid job schedule")
		}
		scheduler.Start()
		log.Info().
			Str("sweep_at", cfg.Jobs.SweepAt).
			Str("warnings_at", cfg.Jobs.WarningsAt).
			Str("allowance_at", cfg.Jobs.AllowanceAt).
			Msg("Job scheduler started")
	}

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:         a.Ledger,
		Jobs:           a.Jobs,
		SigSvc:         a.Signature,
		NonceStore:     a.NonceStore,
		TokenSvc:       a.Tokens,
		Internal:       cfg.Internal,
		RateLimitStore: a.RateLimitStore,
		HealthCheckers: a.HealthCheckers,
		AuditSvc:       a.Audit,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
