// Package tides implements the tide prediction service: a cache-or-fetch
// layer over the NOAA CO-OPS client, low-tide quality classification, and
// the extended next-good-tide search.
package tides

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"shellcast/internal/registry"
	"shellcast/internal/types"
)

// Quality thresholds in feet MLLW. These are fixed design constants, not
// configuration: the tiers are calibrated to how much beach a Puget Sound
// low tide exposes, and tests pin the boundaries.
//
//	< 0            excellent
//	[0, 1)         good
//	[1, 2)         fair
//	>= 2           poor
const (
	excellentBelowFt = 0.0
	goodBelowFt      = 1.0
	fairBelowFt      = 2.0
)

// refreshConcurrency bounds parallel per-station refreshes.
const refreshConcurrency = 4

// ClassifyQuality tiers a low-tide height.
func ClassifyQuality(heightFt float64) types.TideQuality {
	switch {
	case heightFt < excellentBelowFt:
		return types.QualityExcellent
	case heightFt < goodBelowFt:
		return types.QualityGood
	case heightFt < fairBelowFt:
		return types.QualityFair
	default:
		return types.QualityPoor
	}
}

// PredictionCache is the tide cache store contract the service consumes.
type PredictionCache interface {
	GetPredictions(ctx context.Context, stationID, start, end string) ([]types.TidePrediction, error)
	UpsertPredictions(ctx context.Context, preds []types.TidePrediction) error
}

// PredictionFetcher is the upstream provider contract.
type PredictionFetcher interface {
	FetchPredictions(ctx context.Context, stationID string, start, end time.Time) ([]types.TidePrediction, error)
}

// StationTides is the full hi-lo series for a station over a window.
type StationTides struct {
	StationID   string                 `json:"station_id"`
	StationName string                 `json:"station_name"`
	Location    string                 `json:"location"`
	Predictions []types.TidePrediction `json:"predictions"`
}

// LowTideResult pairs the in-window low tides with the next good tide, which
// may lie beyond the requested window (IsExtended=true) when the window
// itself holds nothing harvestable.
type LowTideResult struct {
	Tides        []types.LowTide `json:"tides"`
	NextGoodTide *types.LowTide  `json:"next_good_tide,omitempty"`
}

// Service answers tide queries from the cache, fetching from upstream only
// when the cached series does not cover the requested window.
type Service struct {
	cache   PredictionCache
	fetcher PredictionFetcher
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewService creates a tide Service.
func NewService(cache PredictionCache, fetcher PredictionFetcher, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cache: cache, fetcher: fetcher, clock: clock, logger: logger}
}

// GetStationTides returns hi-lo predictions for a station over [anchor,
// anchor+days]. A zero anchor means today. Coverage is judged by the last
// cached date: if it precedes the requested end, the missing range is
// fetched and upserted before re-reading. Upstream failures degrade to
// whatever is cached; an unknown station yields an empty well-formed result.
func (s *Service) GetStationTides(ctx context.Context, stationID string, days int, anchor time.Time) (StationTides, error) {
	result := StationTides{StationID: stationID, StationName: "Unknown", Location: "Unknown"}

	station, known := registry.GetStation(stationID)
	if !known {
		// NoStationData: the UI renders "unknown station" from an empty
		// series; this is not an error.
		return result, nil
	}
	result.StationName = station.Name
	result.Location = station.Location

	if anchor.IsZero() {
		anchor = s.clock.Now()
	}
	start := anchor
	end := anchor.AddDate(0, 0, days)
	startStr := start.Format("2006-01-02")
	endStr := end.Format("2006-01-02")

	preds, err := s.cache.GetPredictions(ctx, stationID, startStr, endStr+" 23:59")
	if err != nil {
		return result, err
	}

	needsFetch := len(preds) == 0
	if !needsFetch {
		lastDate := preds[len(preds)-1].Datetime
		if len(lastDate) >= 10 {
			lastDate = lastDate[:10]
		}
		needsFetch = lastDate < endStr
	}

	if needsFetch {
		s.logger.InfoContext(ctx, "fetching tide predictions",
			"station", stationID, "days", days)
		fetched, fetchErr := s.fetcher.FetchPredictions(ctx, stationID, start, end)
		if fetchErr != nil {
			// Degrade to cached data. An empty prediction list means
			// "no data", never an error, so callers stay render-safe.
			s.logger.WarnContext(ctx, "tide fetch failed, serving cached data",
				"station", stationID, "error", fetchErr)
		} else if len(fetched) > 0 {
			if err := s.cache.UpsertPredictions(ctx, fetched); err != nil {
				return result, err
			}
			preds, err = s.cache.GetPredictions(ctx, stationID, startStr, endStr+" 23:59")
			if err != nil {
				return result, err
			}
		}
	}

	result.Predictions = preds
	return result, nil
}

// GetLowTides returns only the low-tide events in the window, each with its
// quality tier attached.
func (s *Service) GetLowTides(ctx context.Context, stationID string, days int, anchor time.Time) ([]types.LowTide, error) {
	station, err := s.GetStationTides(ctx, stationID, days, anchor)
	if err != nil {
		return nil, err
	}
	return lowsOf(station.Predictions), nil
}

// GetLowTidesWithNextGood returns the low tides within initialDays plus a
// guarantee: if none of them is good or excellent, the search extends up to
// maxDays and reports the first qualifying tide beyond the window, flagged
// IsExtended, with the initial list unchanged. A beach closed by biotoxin
// may have nothing worth a trip for weeks; the next viable window is still
// actionable planning information.
func (s *Service) GetLowTidesWithNextGood(ctx context.Context, stationID string, initialDays, maxDays int) (LowTideResult, error) {
	tides, err := s.GetLowTides(ctx, stationID, initialDays, time.Time{})
	if err != nil {
		return LowTideResult{}, err
	}
	result := LowTideResult{Tides: tides}

	for i := range tides {
		if tides[i].Quality.Harvestable() {
			result.NextGoodTide = &tides[i]
			return result, nil
		}
	}

	if initialDays >= maxDays {
		return result, nil
	}

	s.logger.InfoContext(ctx, "no good tides in window, extending search",
		"station", stationID, "initial_days", initialDays, "max_days", maxDays)

	extended, err := s.GetLowTides(ctx, stationID, maxDays, time.Time{})
	if err != nil {
		// The initial window is already answered; the extension is
		// best-effort.
		s.logger.WarnContext(ctx, "extended tide search failed",
			"station", stationID, "error", err)
		return result, nil
	}

	boundary := s.clock.Now().AddDate(0, 0, initialDays).Format("2006-01-02")
	for i := range extended {
		if !extended[i].Quality.Harvestable() {
			continue
		}
		good := extended[i]
		if good.Datetime > boundary {
			good.IsExtended = true
		}
		result.NextGoodTide = &good
		return result, nil
	}

	return result, nil
}

// RefreshAll warms the cache for every station concurrently. Per-station
// failures are tolerated independently; the summary reports both counts.
func (s *Service) RefreshAll(ctx context.Context, stationIDs []string, days int) types.TideRefreshSummary {
	var (
		updated = make([]bool, len(stationIDs))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for i, id := range stationIDs {
		g.Go(func() error {
			tides, err := s.GetStationTides(gCtx, id, days, time.Time{})
			if err != nil {
				s.logger.WarnContext(gCtx, "station refresh failed", "station", id, "error", err)
				return nil
			}
			updated[i] = len(tides.Predictions) > 0
			return nil
		})
	}
	_ = g.Wait()

	summary := types.TideRefreshSummary{Timestamp: s.clock.Now()}
	for _, ok := range updated {
		if ok {
			summary.StationsUpdated++
		} else {
			summary.StationsFailed++
		}
	}
	return summary
}

// lowsOf filters a hi-lo series down to classified low tides.
func lowsOf(preds []types.TidePrediction) []types.LowTide {
	lows := make([]types.LowTide, 0, len(preds)/2+1)
	for _, p := range preds {
		if p.Type != types.TideLow {
			continue
		}
		lows = append(lows, types.LowTide{
			Datetime: p.Datetime,
			HeightFt: p.HeightFt,
			Quality:  ClassifyQuality(p.HeightFt),
		})
	}
	return lows
}
