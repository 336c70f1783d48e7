package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/emiledger/pkg/config"
	"github.com/mcclellann/emiledger/pkg/ledger"
	"github.com/mcclellann/emiledger/pkg/logging"
	"github.com/mcclellann/emiledger/pkg/store"
	"github.com/rs/zerolog/log"
)

// runReconciler re-derives active loans every interval until ctx is done.
func runReconciler(ctx context.Context, l *ledger.Ledger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Debug().Msg("running loan reconciliation")
			report, err := l.ReconcileAll(ctx)
			if err != nil {
				log.Error().Err(err).Msg("loan reconciliation aborted")
				continue
			}
			log.Info().
				Int("checked", report.Checked).
				Int("repaired", report.Repaired).
				Int("failed", report.Failed).
				Msg("loan reconciliation complete")
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LogLevel, cfg.IsProduction())

	sqliteStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize SQLite store")
	}
	defer sqliteStore.Close()

	limiter := NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	defer limiter.Stop()

	server := NewServer(sqliteStore, limiter)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ReconcileInterval > 0 {
		go runReconciler(ctx, server.ledger, cfg.ReconcileInterval)
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("database", cfg.DatabasePath).Msg("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}
