package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ledger-ai/internal/api/handlers"
	"github.com/dvloznov/ledger-ai/internal/api/middleware"
	"github.com/dvloznov/ledger-ai/internal/app"
	"github.com/dvloznov/ledger-ai/internal/config"
	"github.com/dvloznov/ledger-ai/internal/jobs"
	"github.com/dvloznov/ledger-ai/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-ai/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	port := flag.String("port", cfg.Server.Port, "HTTP server port (or set PORT env)")
	flag.Parse()

	log := logger.NewWithFormat(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close application")
		}
	}()

	groups := []handlers.Registrar{
		handlers.NewLedgerHandler(a.Ledger, a.Rates, log),
		handlers.NewViewsHandler(a.Ledger, a.Rates, log),
		handlers.NewRatesHandler(a.Rates, log),
		handlers.NewExportHandler(a.Ledger, log),
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore(inmemory.WithRetention(cfg.Jobs.Retention))
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, cfg.Jobs.Workers, jobStore, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if a.Extractor != nil {
		if err := jobQueue.Start(workerCtx, jobs.NewSlipHandler(a.Extractor, a.Ledger, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job workers")
		}
		groups = append(groups,
			handlers.NewSlipsHandler(a.Extractor, a.Ledger, jobQueue, log),
			handlers.NewJobsHandler(jobStore, log),
		)
	} else {
		log.Warn().Msg("No model client configured - slip endpoints are disabled")
	}

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      middleware.Chain(log, cfg.Server.AllowedOrigin, handlers.NewRouter(groups...)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Slip.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("backend", cfg.Store.Backend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
