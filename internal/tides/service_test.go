package tides

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellcast/internal/types"
)

// stubCache is an in-memory PredictionCache keyed by station.
type stubCache struct {
	preds       map[string][]types.TidePrediction
	upsertCalls int
	getErr      error
	upsertErr   error
}

func (c *stubCache) GetPredictions(_ context.Context, stationID, start, end string) ([]types.TidePrediction, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	var out []types.TidePrediction
	for _, p := range c.preds[stationID] {
		if p.Datetime >= start && p.Datetime <= end {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *stubCache) UpsertPredictions(_ context.Context, preds []types.TidePrediction) error {
	if c.upsertErr != nil {
		return c.upsertErr
	}
	c.upsertCalls++
	for _, p := range preds {
		c.preds[p.StationID] = append(c.preds[p.StationID], p)
	}
	return nil
}

// stubFetcher is a canned PredictionFetcher.
type stubFetcher struct {
	preds []types.TidePrediction
	err   error
	calls int
}

func (f *stubFetcher) FetchPredictions(_ context.Context, stationID string, _, _ time.Time) ([]types.TidePrediction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []types.TidePrediction
	for _, p := range f.preds {
		if p.StationID == stationID {
			out = append(out, p)
		}
	}
	return out, nil
}

const seattleStation = "9447130"

func testAnchor() time.Time {
	return time.Date(2026, 3, 1, 8, 0, 0, 0, time.Local)
}

func newTestService(cache *stubCache, fetcher *stubFetcher) *Service {
	return NewService(cache, fetcher, clockwork.NewFakeClockAt(testAnchor()), nil)
}

func pred(datetime string, height float64, typ types.TideEventType) types.TidePrediction {
	return types.TidePrediction{StationID: seattleStation, Datetime: datetime, HeightFt: height, Type: typ}
}

func TestClassifyQuality(t *testing.T) {
	cases := []struct {
		height float64
		want   types.TideQuality
	}{
		{-2.5, types.QualityExcellent},
		{-0.01, types.QualityExcellent},
		{0.0, types.QualityGood},
		{0.99, types.QualityGood},
		{1.0, types.QualityFair},
		{1.99, types.QualityFair},
		{2.0, types.QualityPoor},
		{8.4, types.QualityPoor},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyQuality(tc.height), "height %.2f", tc.height)
	}
}

func TestGetStationTides_UnknownStation(t *testing.T) {
	cache := &stubCache{preds: map[string][]types.TidePrediction{}}
	fetcher := &stubFetcher{}
	svc := newTestService(cache, fetcher)

	result, err := svc.GetStationTides(context.Background(), "0000000", 7, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", result.StationName)
	assert.Empty(t, result.Predictions)
	assert.Zero(t, fetcher.calls, "unknown station must not hit upstream")
}

func TestGetStationTides_ServedFromCache(t *testing.T) {
	cache := &stubCache{preds: map[string][]types.TidePrediction{
		seattleStation: {
			pred("2026-03-02 06:10", -1.2, types.TideLow),
			pred("2026-03-02 12:45", 11.3, types.TideHigh),
			pred("2026-03-08 07:00", 0.4, types.TideLow),
		},
	}}
	fetcher := &stubFetcher{}
	svc := newTestService(cache, fetcher)

	result, err := svc.GetStationTides(context.Background(), seattleStation, 7, time.Time{})
	require.NoError(t, err)
	assert.Len(t, result.Predictions, 3)
	assert.Equal(t, "Seattle", result.StationName)
	assert.Zero(t, fetcher.calls, "covered window must not refetch")
}

func TestGetStationTides_FetchesWhenCacheStale(t *testing.T) {
	cache := &stubCache{preds: map[string][]types.TidePrediction{
		seattleStation: {pred("2026-03-02 06:10", -1.2, types.TideLow)},
	}}
	fetcher := &stubFetcher{preds: []types.TidePrediction{
		pred("2026-03-05 05:50", 0.2, types.TideLow),
		pred("2026-03-08 07:15", 1.1, types.TideLow),
	}}
	svc := newTestService(cache, fetcher)

	result, err := svc.GetStationTides(context.Background(), seattleStation, 7, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, cache.upsertCalls)
	assert.Len(t, result.Predictions, 3, "re-read must merge cached and fetched")
}

func TestGetStationTides_DegradesToCacheOnFetchFailure(t *testing.T) {
	cache := &stubCache{preds: map[string][]types.TidePrediction{
		seattleStation: {pred("2026-03-02 06:10", -1.2, types.TideLow)},
	}}
	fetcher := &stubFetcher{err: errors.New("noaa down")}
	svc := newTestService(cache, fetcher)

	result, err := svc.GetStationTides(context.Background(), seattleStation, 7, time.Time{})
	require.NoError(t, err, "upstream failure must not surface as an error")
	assert.Len(t, result.Predictions, 1)
}

func TestGetLowTides_FiltersAndClassifies(t *testing.T) {
	cache := &stubCache{preds: map[string][]types.TidePrediction{
		seattleStation: {
			pred("2026-03-02 06:10", -1.2, types.TideLow),
			pred("2026-03-02 12:45", 11.3, types.TideHigh),
			pred("2026-03-08 07:00", 1.4, types.TideLow),
		},
	}}
	svc := newTestService(cache, &stubFetcher{})

	lows, err := svc.GetLowTides(context.Background(), seattleStation, 7, time.Time{})
	require.NoError(t, err)
	require.Len(t, lows, 2)
	assert.Equal(t, types.QualityExcellent, lows[0].Quality)
	assert.Equal(t, types.QualityFair, lows[1].Quality)
}

func TestGetLowTidesWithNextGood_InWindow(t *testing.T) {
	cache := &stubCache{preds: map[string][]types.TidePrediction{
		seattleStation: {
			pred("2026-03-02 06:10", 3.1, types.TideLow),
			pred("2026-03-04 06:50", 0.3, types.TideLow),
			pred("2026-03-08 07:00", 2.4, types.TideLow),
		},
	}}
	svc := newTestService(cache, &stubFetcher{})

	result, err := svc.GetLowTidesWithNextGood(context.Background(), seattleStation, 7, 45)
	require.NoError(t, err)
	require.NotNil(t, result.NextGoodTide)
	assert.Equal(t, "2026-03-04 06:50", result.NextGoodTide.Datetime)
	assert.False(t, result.NextGoodTide.IsExtended)
}

func TestGetLowTidesWithNextGood_ExtendsBeyondWindow(t *testing.T) {
	cache := &stubCache{preds: map[string][]types.TidePrediction{
		seattleStation: {
			pred("2026-03-02 06:10", 3.1, types.TideLow),
			pred("2026-03-08 07:00", 2.4, types.TideLow),
		},
	}}
	// The extension fetch supplies a good tide on day 40 plus coverage to the
	// end of the extended window.
	fetcher := &stubFetcher{preds: []types.TidePrediction{
		pred("2026-04-10 07:05", -0.5, types.TideLow),
		pred("2026-04-15 07:40", 3.3, types.TideLow),
	}}
	svc := newTestService(cache, fetcher)

	result, err := svc.GetLowTidesWithNextGood(context.Background(), seattleStation, 7, 45)
	require.NoError(t, err)

	require.Len(t, result.Tides, 2, "initial window list must be unchanged")
	for _, lt := range result.Tides {
		assert.False(t, lt.IsExtended)
	}

	require.NotNil(t, result.NextGoodTide)
	assert.Equal(t, "2026-04-10 07:05", result.NextGoodTide.Datetime)
	assert.True(t, result.NextGoodTide.IsExtended)
	assert.Equal(t, types.QualityExcellent, result.NextGoodTide.Quality)
}

func TestGetLowTidesWithNextGood_NothingHarvestableAnywhere(t *testing.T) {
	cache := &stubCache{preds: map[string][]types.TidePrediction{
		seattleStation: {
			pred("2026-03-02 06:10", 3.1, types.TideLow),
			pred("2026-04-15 07:40", 3.3, types.TideLow),
		},
	}}
	svc := newTestService(cache, &stubFetcher{})

	result, err := svc.GetLowTidesWithNextGood(context.Background(), seattleStation, 7, 45)
	require.NoError(t, err)
	assert.Nil(t, result.NextGoodTide)
}

func TestRefreshAll_CountsPerStationOutcomes(t *testing.T) {
	cache := &stubCache{preds: map[string][]types.TidePrediction{
		seattleStation: {pred("2026-03-08 07:00", 0.4, types.TideLow)},
	}}
	// Fetcher only knows Seattle; every other station fails to produce data.
	fetcher := &stubFetcher{}
	svc := newTestService(cache, fetcher)

	summary := svc.RefreshAll(context.Background(), []string{seattleStation, "9446484", "9444090"}, 7)
	assert.Equal(t, 1, summary.StationsUpdated)
	assert.Equal(t, 2, summary.StationsFailed)
}
