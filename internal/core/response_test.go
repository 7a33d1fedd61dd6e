package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellcast/internal/types"
)

func requestWithID(id string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/beaches", nil)
	return r.WithContext(types.WithRequestID(r.Context(), id))
}

func TestJSON_WritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, requestWithID("req-1"), http.StatusOK, APIResponse{Data: map[string]int{"count": 3}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"count":3}}`, rec.Body.String())
}

func TestJSON_MarshalFailureDegradesTo500(t *testing.T) {
	rec := httptest.NewRecorder()
	// Channels are not JSON-serializable.
	JSON(rec, requestWithID("req-2"), http.StatusOK, make(chan int))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), resp.Error.Code)
	assert.Equal(t, "req-2", resp.Error.RequestID)
}

func TestError_AppErrorDrivesStatusAndBody(t *testing.T) {
	tests := []struct {
		name       string
		code       types.ErrorCode
		wantStatus int
	}{
		{"validation maps to 400", types.ErrCodeValidationInvalidDays, http.StatusBadRequest},
		{"not found maps to 404", types.ErrCodeNotFoundBeach, http.StatusNotFound},
		{"upstream maps to 502", types.ErrCodeUpstreamTides, http.StatusBadGateway},
		{"internal maps to 500", types.ErrCodeInternalStore, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, requestWithID("req-3"), types.NewAppError(tt.code, "boom", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp APIErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.code), resp.Error.Code)
			assert.Equal(t, "boom", resp.Error.Message)
			assert.Equal(t, "req-3", resp.Error.RequestID)
		})
	}
}

func TestError_WrappedAppErrorIsUnwrapped(t *testing.T) {
	rec := httptest.NewRecorder()
	inner := types.NewAppError(types.ErrCodeNotFoundBeach, "no beach with id 99", nil)
	Error(rec, requestWithID("req-4"), fmt.Errorf("handling request: %w", inner))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no beach with id 99", resp.Error.Message)
}

func TestError_OpaqueErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, requestWithID("req-5"), errors.New("pq: connection refused at 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "an unexpected error occurred", resp.Error.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}
