package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"shellcast/internal/observability"
	"shellcast/internal/types"
)

// noaaDateLayout is the begin_date/end_date format the CO-OPS API expects.
const noaaDateLayout = "20060102"

// NOAAClient fetches hi-lo tide predictions from the NOAA CO-OPS API.
type NOAAClient struct {
	baseURL string
	base    *BaseClient
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewNOAAClient creates a NOAA CO-OPS client. timeout bounds each request;
// the CO-OPS API can be slow on long date ranges but must never hang a
// refresh indefinitely.
func NewNOAAClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...BaseClientOption) *NOAAClient {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &NOAAClient{
		baseURL: baseURL,
		base: NewBaseClient(&http.Client{Timeout: timeout}, "noaa",
			DefaultRetryPolicy(), types.ErrCodeUpstreamTides, opts...),
		metrics: metrics,
		logger:  logger,
	}
}

// noaaResponse mirrors the CO-OPS predictions payload. The API reports
// errors inside a 200 body, so both branches are modeled.
type noaaResponse struct {
	Predictions []noaaPrediction `json:"predictions"`
	Error       *noaaError       `json:"error"`
}

type noaaPrediction struct {
	T    string `json:"t"` // "2006-01-02 15:04" local station time
	V    string `json:"v"` // height in feet, stringly typed
	Type string `json:"type"`
}

type noaaError struct {
	Message string `json:"message"`
}

// FetchPredictions requests hi-lo predictions for a station over
// [start, end] in the station's local time zone, MLLW datum, feet.
// Malformed individual records are skipped, not fatal: the feed is
// schema-unstable and one bad row must not cost the whole range.
func (c *NOAAClient) FetchPredictions(ctx context.Context, stationID string, start, end time.Time) ([]types.TidePrediction, error) {
	q := url.Values{}
	q.Set("station", stationID)
	q.Set("begin_date", start.Format(noaaDateLayout))
	q.Set("end_date", end.Format(noaaDateLayout))
	q.Set("product", "predictions")
	q.Set("datum", "MLLW")
	q.Set("units", "english")
	q.Set("time_zone", "lst_ldt")
	q.Set("interval", "hilo")
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building NOAA request", err)
	}

	started := time.Now()
	resp, err := c.base.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues("noaa").Observe(time.Since(started).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("noaa", "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamRequests.WithLabelValues("noaa", "error").Inc()
		return nil, types.NewAppError(types.ErrCodeUpstreamTides,
			fmt.Sprintf("NOAA API returned %d for station %s", resp.StatusCode, stationID), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("noaa", "error").Inc()
		return nil, types.NewAppError(types.ErrCodeUpstreamTides, "reading NOAA response", err)
	}

	var parsed noaaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("noaa", "error").Inc()
		return nil, types.NewAppError(types.ErrCodeUpstreamTides, "parsing NOAA response", err)
	}
	if parsed.Error != nil {
		c.metrics.UpstreamRequests.WithLabelValues("noaa", "error").Inc()
		return nil, types.NewAppError(types.ErrCodeUpstreamTides,
			fmt.Sprintf("NOAA API error for station %s: %s", stationID, parsed.Error.Message), nil)
	}

	preds := make([]types.TidePrediction, 0, len(parsed.Predictions))
	for _, p := range parsed.Predictions {
		height, err := strconv.ParseFloat(p.V, 64)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping malformed tide prediction",
				"station", stationID, "datetime", p.T, "value", p.V)
			continue
		}
		var eventType types.TideEventType
		switch p.Type {
		case "L":
			eventType = types.TideLow
		case "H":
			eventType = types.TideHigh
		default:
			c.logger.WarnContext(ctx, "skipping unknown tide event type",
				"station", stationID, "type", p.Type)
			continue
		}
		preds = append(preds, types.TidePrediction{
			StationID: stationID,
			Datetime:  p.T,
			HeightFt:  height,
			Type:      eventType,
		})
	}

	c.metrics.UpstreamRequests.WithLabelValues("noaa", "success").Inc()
	return preds, nil
}
