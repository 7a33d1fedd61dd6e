package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	name string
	err  error
	slow bool
}

func (p fakeProbe) Name() string { return p.name }

func (p fakeProbe) Check(ctx context.Context) error {
	if p.slow {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.err
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) healthResponse {
	t.Helper()
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleHealth_NoProbesIsHealthy(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeHealth(t, rec).Status)
}

func TestHandleHealth_AllProbesPass(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{fakeProbe{name: "store"}, fakeProbe{name: "cache"}}

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeHealth(t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["store"].Status)
	assert.Equal(t, "healthy", resp.Components["cache"].Status)
}

func TestHandleHealth_FailingProbeYields503(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{
		fakeProbe{name: "store", err: errors.New("database is locked")},
		fakeProbe{name: "cache"},
	}

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeHealth(t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["store"].Status)
	assert.Equal(t, "database is locked", resp.Components["store"].Message)
	assert.Equal(t, "healthy", resp.Components["cache"].Status)
}

func TestHandleHealth_SlowProbeTimesOut(t *testing.T) {
	s := newTestServer(t)
	s.HealthProbes = []HealthProbe{fakeProbe{name: "store", slow: true}}

	// Bound the request context tighter than the probe timeout so the
	// test does not wait the full two seconds.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil).WithContext(ctx)

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeHealth(t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["store"].Status)
}
