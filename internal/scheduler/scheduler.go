// Package scheduler runs the periodic refresh jobs: the daily biotoxin
// reconciliation, the daily tide cache warm-up, and the monthly long-range
// tide prefetch. Each job fails independently; a bad cycle logs and waits for
// the next tick rather than stopping the schedule.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"shellcast/internal/observability"
	"shellcast/internal/types"
)

// Refresher is the harvest-facade contract the scheduler drives.
type Refresher interface {
	RefreshBiotoxin(ctx context.Context) (types.RefreshSummary, error)
	RefreshTides(ctx context.Context, days int) types.TideRefreshSummary
}

// Config holds the schedule intervals. Zero intervals disable the job.
type Config struct {
	BiotoxinInterval  time.Duration
	TideInterval      time.Duration
	LongRangeInterval time.Duration
	LongRangeDays     int
}

// Scheduler ticks the refresh jobs on their configured intervals.
type Scheduler struct {
	refresher Refresher
	cfg       Config
	metrics   *observability.Metrics
	clock     clockwork.Clock
	logger    *slog.Logger
}

// New creates a Scheduler.
func New(refresher Refresher, cfg Config, metrics *observability.Metrics, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{refresher: refresher, cfg: cfg, metrics: metrics, clock: clock, logger: logger}
}

// Run blocks until ctx is cancelled, firing each enabled job on its interval.
// Each job runs in the Run goroutine; intervals are long enough (hours) that
// serialized execution cannot cause tick pile-up.
func (s *Scheduler) Run(ctx context.Context) {
	type job struct {
		name     string
		interval time.Duration
		fire     func(context.Context)
	}

	jobs := []job{
		{"biotoxin", s.cfg.BiotoxinInterval, s.runBiotoxin},
		{"tides", s.cfg.TideInterval, s.runTides},
		{"long_range", s.cfg.LongRangeInterval, s.runLongRange},
	}

	var (
		tickers []clockwork.Ticker
		cases   []job
	)
	for _, j := range jobs {
		if j.interval <= 0 {
			s.logger.Info("scheduled job disabled", "job", j.name)
			continue
		}
		tickers = append(tickers, s.clock.NewTicker(j.interval))
		cases = append(cases, j)
		s.logger.Info("scheduled job enabled", "job", j.name, "interval", j.interval)
	}
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if len(cases) == 0 {
		<-ctx.Done()
		return
	}

	// A small fixed job set keeps an explicit select manageable; reflection
	// based select is not worth it for three channels.
	chanFor := func(i int) <-chan time.Time {
		if i < len(tickers) {
			return tickers[i].Chan()
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-chanFor(0):
			cases[0].fire(ctx)
		case <-chanFor(1):
			cases[1].fire(ctx)
		case <-chanFor(2):
			cases[2].fire(ctx)
		}
	}
}

func (s *Scheduler) runBiotoxin(ctx context.Context) {
	summary, err := s.refresher.RefreshBiotoxin(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled biotoxin refresh failed", "error", err)
		return
	}
	s.logger.InfoContext(ctx, "scheduled biotoxin refresh complete",
		"updated", summary.Updated, "closed", summary.Closed)
}

func (s *Scheduler) runTides(ctx context.Context) {
	summary := s.refresher.RefreshTides(ctx, 0)
	outcome := "success"
	if summary.StationsFailed > 0 {
		outcome = "partial"
	}
	s.metrics.RefreshCycles.WithLabelValues("tides", outcome).Inc()
	s.logger.InfoContext(ctx, "scheduled tide refresh complete",
		"updated", summary.StationsUpdated, "failed", summary.StationsFailed)
}

func (s *Scheduler) runLongRange(ctx context.Context) {
	days := s.cfg.LongRangeDays
	if days <= 0 {
		days = 90
	}
	summary := s.refresher.RefreshTides(ctx, days)
	outcome := "success"
	if summary.StationsFailed > 0 {
		outcome = "partial"
	}
	s.metrics.RefreshCycles.WithLabelValues("long_range", outcome).Inc()
	s.logger.InfoContext(ctx, "long-range tide prefetch complete",
		"days", days, "updated", summary.StationsUpdated, "failed", summary.StationsFailed)
}
