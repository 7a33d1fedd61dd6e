package harvest

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"shellcast/internal/tides"
	"shellcast/internal/types"
)

// opportunityConcurrency bounds parallel per-beach tide lookups.
const opportunityConcurrency = 4

// previewTideCount is how many upcoming low tides each opportunity carries.
const previewTideCount = 5

// TideProvider is the tide-layer contract the harvest service consumes.
type TideProvider interface {
	GetLowTides(ctx context.Context, stationID string, days int, anchor time.Time) ([]types.LowTide, error)
	GetLowTidesWithNextGood(ctx context.Context, stationID string, initialDays, maxDays int) (tides.LowTideResult, error)
	RefreshAll(ctx context.Context, stationIDs []string, days int) types.TideRefreshSummary
}

// StatusReader reads persisted beach statuses.
type StatusReader interface {
	GetAllWithStatus(ctx context.Context, beaches []types.Beach) ([]types.BeachWithStatus, error)
}

// BiotoxinRefresher triggers a biotoxin reconciliation cycle.
type BiotoxinRefresher interface {
	Refresh(ctx context.Context) (types.RefreshSummary, error)
}

// BeachLister lists registry beaches and their distinct tide stations.
type BeachLister interface {
	ListBeaches() []types.Beach
	StationIDs() []string
}

// BeachOpportunity is one beach ranked by current harvest opportunity.
type BeachOpportunity struct {
	types.Beach
	Status       types.BeachStatus `json:"status"`
	StatusColor  types.StatusColor `json:"status_color"`
	Score        int               `json:"score"`
	Harvestable  bool              `json:"harvestable"`
	NextLowTides []types.LowTide   `json:"next_low_tides"`
	NextGoodTide *types.LowTide    `json:"next_good_tide,omitempty"`
}

// RefreshResult reports a combined refresh of both data layers. The two
// halves fail independently; a biotoxin failure is carried in-band so a
// partially successful refresh still returns the tide summary.
type RefreshResult struct {
	Biotoxin      *types.RefreshSummary    `json:"biotoxin,omitempty"`
	BiotoxinError string                   `json:"biotoxin_error,omitempty"`
	Tides         types.TideRefreshSummary `json:"tides"`
}

// Service is the harvest facade: opportunity ranking, the calendar, and the
// combined refresh entry point used by the API and the scheduler.
type Service struct {
	beaches       BeachLister
	tides         TideProvider
	statuses      StatusReader
	reconciler    BiotoxinRefresher
	lookaheadDays int
	refreshDays   int
	clock         clockwork.Clock
	logger        *slog.Logger
}

// NewService wires the harvest facade. lookaheadDays caps the next-good-tide
// extension search; refreshDays is the window warmed by a tide refresh.
func NewService(
	beaches BeachLister,
	tideProvider TideProvider,
	statuses StatusReader,
	reconciler BiotoxinRefresher,
	lookaheadDays, refreshDays int,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Service {
	if lookaheadDays <= 0 {
		lookaheadDays = 30
	}
	if refreshDays <= 0 {
		refreshDays = 7
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		beaches:       beaches,
		tides:         tideProvider,
		statuses:      statuses,
		reconciler:    reconciler,
		lookaheadDays: lookaheadDays,
		refreshDays:   refreshDays,
		clock:         clock,
		logger:        logger,
	}
}

// GetOpportunities ranks every registry beach by harvest opportunity over the
// next days, highest score first. Tide lookups run concurrently per beach;
// a beach whose station lookup fails still appears, scored on status alone.
func (s *Service) GetOpportunities(ctx context.Context, days int) ([]BeachOpportunity, error) {
	withStatus, err := s.statuses.GetAllWithStatus(ctx, s.beaches.ListBeaches())
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	opportunities := make([]BeachOpportunity, len(withStatus))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opportunityConcurrency)
	for i, bws := range withStatus {
		g.Go(func() error {
			opp := BeachOpportunity{
				Beach:        bws.Beach,
				Status:       bws.Status,
				NextLowTides: []types.LowTide{},
			}

			var nextLow *types.LowTide
			result, tideErr := s.tides.GetLowTidesWithNextGood(gCtx, bws.TideStationID, days, s.lookaheadDays)
			if tideErr != nil {
				s.logger.WarnContext(gCtx, "tide lookup failed for opportunity ranking",
					"beach", bws.Name, "station", bws.TideStationID, "error", tideErr)
			} else {
				opp.NextLowTides = result.Tides
				if len(opp.NextLowTides) > previewTideCount {
					opp.NextLowTides = opp.NextLowTides[:previewTideCount]
				}
				opp.NextGoodTide = result.NextGoodTide
				if len(result.Tides) > 0 {
					nextLow = &result.Tides[0]
				}
			}

			opp.Score = Score(opp.Status, nextLow, now)
			opp.StatusColor = StatusColor(opp.Status, nextLow)
			opp.Harvestable = harvestable(opp.Status)
			opportunities[i] = opp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		if opportunities[i].Score != opportunities[j].Score {
			return opportunities[i].Score > opportunities[j].Score
		}
		return opportunities[i].Name < opportunities[j].Name
	})
	return opportunities, nil
}

// harvestable reports whether harvesting is legal right now: an open
// classification and an open season. Tide favorability is the score's
// concern, not a legality gate.
func harvestable(status types.BeachStatus) bool {
	return status.Biotoxin == types.StatusOpen && status.SeasonOpen
}

// RefreshBiotoxin runs one biotoxin reconciliation cycle.
func (s *Service) RefreshBiotoxin(ctx context.Context) (types.RefreshSummary, error) {
	return s.reconciler.Refresh(ctx)
}

// RefreshTides warms the tide cache for every registry station over the given
// window; zero days uses the configured default.
func (s *Service) RefreshTides(ctx context.Context, days int) types.TideRefreshSummary {
	if days <= 0 {
		days = s.refreshDays
	}
	return s.tides.RefreshAll(ctx, s.beaches.StationIDs(), days)
}

// RefreshAll runs both refreshes. The tide half always runs; a biotoxin
// failure is reported in-band rather than aborting, since stale status data
// plus fresh tides is strictly better than neither.
func (s *Service) RefreshAll(ctx context.Context) RefreshResult {
	result := RefreshResult{}

	summary, err := s.reconciler.Refresh(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "biotoxin refresh failed", "error", err)
		result.BiotoxinError = err.Error()
	} else {
		result.Biotoxin = &summary
	}

	result.Tides = s.RefreshTides(ctx, 0)
	return result
}
