// Package main is the one-shot refresh tool: it runs a single biotoxin
// reconciliation plus a tide cache sweep and exits. Intended for cron or
// manual use against the same store the API serves from. Exit code 1 means
// one of the two halves failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"shellcast/internal/biotoxin"
	"shellcast/internal/config"
	"shellcast/internal/external"
	"shellcast/internal/harvest"
	"shellcast/internal/observability"
	"shellcast/internal/registry"
	"shellcast/internal/store"
	"shellcast/internal/tides"
)

func main() {
	days := flag.Int("days", 0, "tide lookahead window in days (0 uses the configured default)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall refresh deadline")
	flag.Parse()

	if err := run(*days, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
		os.Exit(1)
	}
}

func run(days int, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

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

	metrics := observability.NopMetrics()

	noaa := external.NewNOAAClient(cfg.Tides.BaseURL, cfg.Tides.Timeout, metrics, logger)
	doh := external.NewDOHClient(cfg.Biotoxin.BaseURL, cfg.Biotoxin.ClassificationLayer,
		cfg.Biotoxin.ClosureLayer, cfg.Biotoxin.Timeout, metrics, logger)

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

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	summary, bioErr := harvestSvc.RefreshBiotoxin(ctx)
	if bioErr != nil {
		logger.Error("biotoxin refresh failed", "error", bioErr)
	} else {
		fmt.Printf("biotoxin: %d beaches (%d open, %d closed, %d conditional, %d unclassified)\n",
			summary.Updated, summary.Open, summary.Closed, summary.Conditional, summary.Unclassified)
	}

	tideSummary := harvestSvc.RefreshTides(ctx, days)
	fmt.Printf("tides: %d stations updated, %d failed\n",
		tideSummary.StationsUpdated, tideSummary.StationsFailed)

	if bioErr != nil {
		return fmt.Errorf("biotoxin refresh: %w", bioErr)
	}
	if tideSummary.StationsFailed > 0 && tideSummary.StationsUpdated == 0 {
		return fmt.Errorf("all %d tide stations failed", tideSummary.StationsFailed)
	}
	return nil
}
