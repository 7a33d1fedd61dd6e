package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellcast/internal/types"
)

type recordingRefresher struct {
	biotoxinCalls chan struct{}
	tideDays      chan int
	biotoxinErr   error
}

func newRecordingRefresher() *recordingRefresher {
	return &recordingRefresher{
		biotoxinCalls: make(chan struct{}, 16),
		tideDays:      make(chan int, 16),
	}
}

func (r *recordingRefresher) RefreshBiotoxin(context.Context) (types.RefreshSummary, error) {
	r.biotoxinCalls <- struct{}{}
	return types.RefreshSummary{Updated: 14}, r.biotoxinErr
}

func (r *recordingRefresher) RefreshTides(_ context.Context, days int) types.TideRefreshSummary {
	r.tideDays <- days
	return types.TideRefreshSummary{StationsUpdated: 6}
}

func schedulerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startScheduler runs the scheduler in the background and blocks until its
// tickers are registered with the fake clock so Advance cannot race setup.
func startScheduler(t *testing.T, s *Scheduler, clock *clockwork.FakeClock, tickers int) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	if tickers > 0 {
		clock.BlockUntil(tickers)
	}
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop after cancel")
		}
	}
}

func waitForCall[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("expected scheduled job to fire")
		panic("unreachable")
	}
}

func TestRun_FiresBiotoxinOnInterval(t *testing.T) {
	refresher := newRecordingRefresher()
	clock := clockwork.NewFakeClock()
	s := New(refresher, Config{BiotoxinInterval: time.Hour}, nil, clock, schedulerLogger())

	cancel := startScheduler(t, s, clock, 1)
	defer cancel()

	clock.Advance(time.Hour)
	waitForCall(t, refresher.biotoxinCalls)
}

func TestRun_TideSweepUsesServiceDefaultDays(t *testing.T) {
	refresher := newRecordingRefresher()
	clock := clockwork.NewFakeClock()
	s := New(refresher, Config{TideInterval: time.Hour}, nil, clock, schedulerLogger())

	cancel := startScheduler(t, s, clock, 1)
	defer cancel()

	clock.Advance(time.Hour)
	days := waitForCall(t, refresher.tideDays)
	assert.Equal(t, 0, days, "daily sweep delegates the window to the service default")
}

func TestRun_LongRangeUsesConfiguredDays(t *testing.T) {
	refresher := newRecordingRefresher()
	clock := clockwork.NewFakeClock()
	s := New(refresher, Config{LongRangeInterval: time.Hour, LongRangeDays: 60}, nil, clock, schedulerLogger())

	cancel := startScheduler(t, s, clock, 1)
	defer cancel()

	clock.Advance(time.Hour)
	days := waitForCall(t, refresher.tideDays)
	assert.Equal(t, 60, days)
}

func TestRun_FailedCycleDoesNotStopSchedule(t *testing.T) {
	refresher := newRecordingRefresher()
	refresher.biotoxinErr = errors.New("doh unreachable")
	clock := clockwork.NewFakeClock()
	s := New(refresher, Config{BiotoxinInterval: time.Hour}, nil, clock, schedulerLogger())

	cancel := startScheduler(t, s, clock, 1)
	defer cancel()

	clock.Advance(time.Hour)
	waitForCall(t, refresher.biotoxinCalls)
	clock.Advance(time.Hour)
	waitForCall(t, refresher.biotoxinCalls)
}

func TestRun_AllJobsDisabledWaitsForCancel(t *testing.T) {
	refresher := newRecordingRefresher()
	clock := clockwork.NewFakeClock()
	s := New(refresher, Config{}, nil, clock, schedulerLogger())

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not exit with no jobs enabled")
	}
	require.Empty(t, refresher.biotoxinCalls)
}
