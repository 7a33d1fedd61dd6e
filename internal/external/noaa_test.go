package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellcast/internal/types"
)

func noaaTestWindow() (time.Time, time.Time) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	return start, start.AddDate(0, 0, 7)
}

func TestFetchPredictions_BuildsExpectedQuery(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{"predictions":[{"t":"2026-03-01 06:12","v":"-0.42","type":"L"},{"t":"2026-03-01 12:40","v":"11.03","type":"H"}]}`))
	}))
	defer srv.Close()

	c := NewNOAAClient(srv.URL, 5*time.Second, nil, nil)
	start, end := noaaTestWindow()

	preds, err := c.FetchPredictions(context.Background(), "9447130", start, end)
	require.NoError(t, err)

	assert.Equal(t, "9447130", got.Get("station"))
	assert.Equal(t, "20260301", got.Get("begin_date"))
	assert.Equal(t, "20260308", got.Get("end_date"))
	assert.Equal(t, "predictions", got.Get("product"))
	assert.Equal(t, "MLLW", got.Get("datum"))
	assert.Equal(t, "english", got.Get("units"))
	assert.Equal(t, "lst_ldt", got.Get("time_zone"))
	assert.Equal(t, "hilo", got.Get("interval"))
	assert.Equal(t, "json", got.Get("format"))

	require.Len(t, preds, 2)
	assert.Equal(t, types.TidePrediction{
		StationID: "9447130",
		Datetime:  "2026-03-01 06:12",
		HeightFt:  -0.42,
		Type:      types.TideLow,
	}, preds[0])
	assert.Equal(t, types.TideHigh, preds[1].Type)
}

func TestFetchPredictions_SkipsMalformedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[
			{"t":"2026-03-01 06:12","v":"n/a","type":"L"},
			{"t":"2026-03-01 12:40","v":"2.1","type":"X"},
			{"t":"2026-03-01 18:55","v":"0.8","type":"L"}
		]}`))
	}))
	defer srv.Close()

	c := NewNOAAClient(srv.URL, 5*time.Second, nil, nil)
	start, end := noaaTestWindow()

	preds, err := c.FetchPredictions(context.Background(), "9447130", start, end)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "2026-03-01 18:55", preds[0].Datetime)
}

func TestFetchPredictions_InBodyErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"No Predictions data was found."}}`))
	}))
	defer srv.Close()

	c := NewNOAAClient(srv.URL, 5*time.Second, nil, nil)
	start, end := noaaTestWindow()

	_, err := c.FetchPredictions(context.Background(), "9440910", start, end)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamTides, appErr.Code)
	assert.Contains(t, appErr.Message, "9440910")
}

func TestFetchPredictions_ServerErrorAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewNOAAClient(srv.URL, 5*time.Second, nil, nil,
		WithSleepFunc(func(time.Duration) {}))
	start, end := noaaTestWindow()

	_, err := c.FetchPredictions(context.Background(), "9447130", start, end)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamTides, appErr.Code)
}

func TestFetchPredictions_EmptyPayloadIsEmptySlice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[]}`))
	}))
	defer srv.Close()

	c := NewNOAAClient(srv.URL, 5*time.Second, nil, nil)
	start, end := noaaTestWindow()

	preds, err := c.FetchPredictions(context.Background(), "9447130", start, end)
	require.NoError(t, err)
	assert.Empty(t, preds)
}
