package harvest

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shellcast/internal/types"
)

// calendarTopN is the compact per-day entry cap. Lower tides expose more
// beach, so the cut keeps the day's lowest tides.
const calendarTopN = 2

// dateLayout is the calendar bucket key format.
const dateLayout = "2006-01-02"

// CalendarOptions controls calendar assembly. A zero Start means today.
// Full disables the compact per-day truncation and returns every qualifying
// entry.
type CalendarOptions struct {
	Days          int
	Start         time.Time
	IncludeClosed bool
	Full          bool
}

// BuildCalendar assembles the harvest calendar: one bucket per day in the
// window, each holding the beach/low-tide pairings where the tide quality is
// good or excellent. Closed beaches are excluded unless IncludeClosed is set.
// Station series are fetched once per distinct station, concurrently, and a
// failed station simply contributes no entries.
func (s *Service) BuildCalendar(ctx context.Context, opts CalendarOptions) ([]types.HarvestDay, error) {
	withStatus, err := s.statuses.GetAllWithStatus(ctx, s.beaches.ListBeaches())
	if err != nil {
		return nil, err
	}

	start := opts.Start
	if start.IsZero() {
		start = s.clock.Now()
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	lowsByStation := s.fetchStationLows(ctx, withStatus, opts.Days, start)

	// Buckets exist for every date in the window even when empty, so the
	// client renders a contiguous calendar without gap handling.
	buckets := make(map[string]*types.HarvestDay, opts.Days)
	days := make([]types.HarvestDay, 0, opts.Days)
	for i := 0; i < opts.Days; i++ {
		date := start.AddDate(0, 0, i)
		key := date.Format(dateLayout)
		days = append(days, types.HarvestDay{
			Date:      key,
			DayOfWeek: date.Weekday().String()[:3],
			Entries:   []types.CalendarEntry{},
		})
		buckets[key] = &days[len(days)-1]
	}

	for _, bws := range withStatus {
		closed := bws.Status.Biotoxin == types.StatusClosed
		if closed && !opts.IncludeClosed {
			continue
		}
		for _, low := range lowsByStation[bws.TideStationID] {
			if !low.Quality.Harvestable() {
				continue
			}
			if len(low.Datetime) < len(dateLayout) {
				continue
			}
			day, ok := buckets[low.Datetime[:len(dateLayout)]]
			if !ok {
				continue
			}
			day.Entries = append(day.Entries, types.CalendarEntry{
				BeachID:        bws.ID,
				Name:           bws.Name,
				Region:         bws.Region,
				TideStationID:  bws.TideStationID,
				TideTime:       low.Datetime,
				TideHeightFt:   low.HeightFt,
				TideQuality:    low.Quality,
				BiotoxinStatus: bws.Status.Biotoxin,
				IsClosed:       closed,
			})
		}
	}

	for i := range days {
		entries := days[i].Entries
		sort.SliceStable(entries, func(a, b int) bool {
			if entries[a].TideHeightFt != entries[b].TideHeightFt {
				return entries[a].TideHeightFt < entries[b].TideHeightFt
			}
			return entries[a].Name < entries[b].Name
		})
		if !opts.Full && len(entries) > calendarTopN {
			days[i].Entries = entries[:calendarTopN]
		}
	}

	return days, nil
}

// fetchStationLows fetches the low-tide series for each distinct station
// referenced by the given beaches. Station failures are logged and yield an
// absent entry rather than failing the calendar.
func (s *Service) fetchStationLows(ctx context.Context, beaches []types.BeachWithStatus, days int, start time.Time) map[string][]types.LowTide {
	seen := make(map[string]struct{}, len(beaches))
	var stations []string
	for _, b := range beaches {
		if _, dup := seen[b.TideStationID]; !dup {
			seen[b.TideStationID] = struct{}{}
			stations = append(stations, b.TideStationID)
		}
	}

	var mu sync.Mutex
	lows := make(map[string][]types.LowTide, len(stations))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opportunityConcurrency)
	for _, station := range stations {
		g.Go(func() error {
			series, err := s.tides.GetLowTides(gCtx, station, days, start)
			if err != nil {
				s.logger.WarnContext(gCtx, "station series unavailable for calendar",
					"station", station, "error", err)
				return nil
			}
			mu.Lock()
			lows[station] = series
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return lows
}
