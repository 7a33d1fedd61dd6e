// Package main is the entry point for the ShellCast API server.
//
// It loads configuration, opens the local store, wires the tide and biotoxin
// services onto the core chassis, optionally warms both caches at startup,
// starts the embedded refresh scheduler, and serves HTTP until a shutdown
// signal arrives.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"shellcast/internal/api/handlers"
	"shellcast/internal/biotoxin"
	"shellcast/internal/config"
	"shellcast/internal/core"
	"shellcast/internal/external"
	"shellcast/internal/harvest"
	"shellcast/internal/observability"
	"shellcast/internal/registry"
	"shellcast/internal/scheduler"
	"shellcast/internal/store"
	"shellcast/internal/tides"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main can exit cleanly on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("shellcast API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	reg, err := registry.New()
	if err != nil {
		return fmt.Errorf("loading beach registry: %w", err)
	}

	clock := clockwork.NewRealClock()

	db, err := store.Open(cfg.Store.Path, clock, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	// Upstream clients.
	noaa := external.NewNOAAClient(cfg.Tides.BaseURL, cfg.Tides.Timeout, metrics, logger)
	doh := external.NewDOHClient(cfg.Biotoxin.BaseURL, cfg.Biotoxin.ClassificationLayer,
		cfg.Biotoxin.ClosureLayer, cfg.Biotoxin.Timeout, metrics, logger)

	// Domain services.
	tideSvc := tides.NewService(db, noaa, clock, logger)

	matcher, err := biotoxin.NewZoneMatcher(reg.ListBeaches())
	if err != nil {
		return fmt.Errorf("loading zone table: %w", err)
	}
	snapshot := biotoxin.NewSnapshotCache(cfg.Biotoxin.SnapshotPath, cfg.Biotoxin.SnapshotTTL, clock, logger)
	reconciler := biotoxin.NewReconciler(reg, doh, doh, db, matcher, snapshot,
		cfg.Biotoxin.ClassificationBatchSize, metrics, clock, logger)

	harvestSvc := harvest.NewService(reg, tideSvc, db, reconciler,
		cfg.Tides.OpportunityLookaheadDays, cfg.Tides.DefaultDays, clock, logger)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{storeProbe{db}}

	beachHandler := handlers.NewBeachHandler(harvestSvc, tideSvc, reg, logger)
	tideHandler := handlers.NewTideHandler(tideSvc, harvestSvc,
		cfg.Tides.DefaultDays, cfg.Tides.MaxLookaheadDays, logger)
	harvestHandler := handlers.NewHarvestHandler(harvestSvc,
		cfg.Tides.DefaultDays, cfg.Tides.MaxLookaheadDays, logger)

	srv.MountRoutes([]core.RouteRegistrar{
		func(r chi.Router) { beachHandler.RegisterRoutes(r) },
		func(r chi.Router) { tideHandler.RegisterRoutes(r) },
		func(r chi.Router) { harvestHandler.RegisterRoutes(r) },
	}, prometheus.DefaultGatherer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.RefreshOnStartup {
		go func() {
			logger.Info("startup refresh beginning")
			result := harvestSvc.RefreshAll(ctx)
			logger.Info("startup refresh complete",
				"biotoxin_ok", result.BiotoxinError == "",
				"stations_updated", result.Tides.StationsUpdated,
				"stations_failed", result.Tides.StationsFailed,
			)
		}()
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(harvestSvc, scheduler.Config{
			BiotoxinInterval:  cfg.Scheduler.BiotoxinInterval,
			TideInterval:      cfg.Scheduler.TideInterval,
			LongRangeInterval: cfg.Scheduler.LongRangeInterval,
			LongRangeDays:     cfg.Scheduler.LongRangeDays,
		}, metrics, clock, logger)
		go sched.Run(ctx)
	}

	return runHTTPServer(ctx, srv, cfg, logger)
}

// runHTTPServer serves until ctx is cancelled, then shuts down gracefully.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// storeProbe reports store health for the health endpoint.
type storeProbe struct {
	db *store.Store
}

func (p storeProbe) Name() string                    { return "store" }
func (p storeProbe) Check(ctx context.Context) error { return p.db.Ping(ctx) }

// newLogger builds the JSON structured logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
