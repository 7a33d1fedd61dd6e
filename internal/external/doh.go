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
	"strings"
	"time"

	"shellcast/internal/observability"
	"shellcast/internal/types"
)

// DOHClient queries the WA DOH ArcGIS biotoxin MapServer: a per-location
// classification layer and a free-text closure-zone layer. The feeds use
// inconsistent attribute key spellings across revisions, so every field is
// read through a fallback key list and defaults safely when absent.
type DOHClient struct {
	baseURL             string
	classificationLayer int
	closureLayer        int
	base                *BaseClient
	metrics             *observability.Metrics
	logger              *slog.Logger
}

// NewDOHClient creates a DOH ArcGIS client for the given MapServer base URL
// and layer ids.
func NewDOHClient(baseURL string, classificationLayer, closureLayer int, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...BaseClientOption) *DOHClient {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &DOHClient{
		baseURL:             strings.TrimRight(baseURL, "/"),
		classificationLayer: classificationLayer,
		closureLayer:        closureLayer,
		base: NewBaseClient(&http.Client{Timeout: timeout}, "doh",
			DefaultRetryPolicy(), types.ErrCodeUpstreamDOH, opts...),
		metrics: metrics,
		logger:  logger,
	}
}

// arcgisResponse is the generic ArcGIS feature query payload.
type arcgisResponse struct {
	Features []struct {
		Attributes map[string]any `json:"attributes"`
	} `json:"features"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// queryLayer runs an ArcGIS attribute query against a layer and returns the
// feature attribute maps.
func (c *DOHClient) queryLayer(ctx context.Context, layer int, where string) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("where", where)
	q.Set("outFields", "*")
	q.Set("f", "json")
	q.Set("returnGeometry", "false")

	endpoint := fmt.Sprintf("%s/%d/query?%s", c.baseURL, layer, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building DOH request", err)
	}

	started := time.Now()
	resp, err := c.base.Do(req)
	c.metrics.UpstreamDuration.WithLabelValues("doh").Observe(time.Since(started).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("doh", "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamRequests.WithLabelValues("doh", "error").Inc()
		return nil, types.NewAppError(types.ErrCodeUpstreamDOH,
			fmt.Sprintf("DOH API returned %d for layer %d", resp.StatusCode, layer), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("doh", "error").Inc()
		return nil, types.NewAppError(types.ErrCodeUpstreamDOH, "reading DOH response", err)
	}

	var parsed arcgisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("doh", "error").Inc()
		return nil, types.NewAppError(types.ErrCodeUpstreamDOH, "parsing DOH response", err)
	}
	// ArcGIS reports errors inside a 200 body.
	if parsed.Error != nil {
		c.metrics.UpstreamRequests.WithLabelValues("doh", "error").Inc()
		return nil, types.NewAppError(types.ErrCodeUpstreamDOH,
			fmt.Sprintf("DOH API error on layer %d: %s", layer, parsed.Error.Message), nil)
	}

	c.metrics.UpstreamRequests.WithLabelValues("doh", "success").Inc()
	attrs := make([]map[string]any, 0, len(parsed.Features))
	for _, f := range parsed.Features {
		if f.Attributes != nil {
			attrs = append(attrs, f.Attributes)
		}
	}
	return attrs, nil
}

// QueryClassificationBatch fetches classification records for one batch of
// external ids. Callers are responsible for batching ids to respect the
// upstream URL-length limit.
func (c *DOHClient) QueryClassificationBatch(ctx context.Context, externalIDs []string) ([]types.ClassificationRecord, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	quoted := make([]string, 0, len(externalIDs))
	for _, id := range externalIDs {
		quoted = append(quoted, "'"+id+"'")
	}
	where := fmt.Sprintf("BIDN IN (%s)", strings.Join(quoted, ","))

	attrs, err := c.queryLayer(ctx, c.classificationLayer, where)
	if err != nil {
		return nil, err
	}

	records := make([]types.ClassificationRecord, 0, len(attrs))
	for _, a := range attrs {
		id := pickString(a, "BIDN", "BeachID", "BEACH_ID")
		if id == "" {
			continue
		}
		records = append(records, types.ClassificationRecord{
			ExternalID:     id,
			FinalStatusRaw: pickString(a, "FinalStatus", "Classification", "CLASSIFICATION", "Status"),
			ReasonText:     pickString(a, "Reason", "StatusReason", "CLOSURE_REASON"),
		})
	}
	return records, nil
}

// FetchClosureZones fetches all closure-zone records. Status-code filtering
// is left to the reconciler, which owns the biotoxin-relevance contract.
func (c *DOHClient) FetchClosureZones(ctx context.Context) ([]types.ClosureRecord, error) {
	attrs, err := c.queryLayer(ctx, c.closureLayer, "1=1")
	if err != nil {
		return nil, err
	}

	records := make([]types.ClosureRecord, 0, len(attrs))
	for _, a := range attrs {
		name := pickString(a, "Name", "ZONE_NAME", "ZoneName")
		if name == "" {
			continue
		}
		records = append(records, types.ClosureRecord{
			ZoneNameRaw:        strings.ToLower(strings.TrimSpace(name)),
			SpeciesAffectedRaw: pickString(a, "Species", "SPECIES_AFFECTED", "SpeciesAffected"),
			StatusCode:         pickInt(a, "Status", "STATUS_CODE", "StatusCode"),
		})
	}
	return records, nil
}

// pickString returns the first non-empty string value among the candidate
// keys. Numeric values are stringified: the feed has shipped ids as both
// strings and numbers.
func pickString(attrs map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

// pickInt returns the first numeric value among the candidate keys, or 0.
func pickInt(attrs map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}
