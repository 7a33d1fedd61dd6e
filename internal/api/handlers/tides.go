package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"shellcast/internal/core"
	"shellcast/internal/registry"
	"shellcast/internal/tides"
	"shellcast/internal/types"
)

// TideService is the tide-layer contract the tide handler consumes.
type TideService interface {
	GetStationTides(ctx context.Context, stationID string, days int, anchor time.Time) (tides.StationTides, error)
	GetLowTides(ctx context.Context, stationID string, days int, anchor time.Time) ([]types.LowTide, error)
}

// TideRefresher warms the tide cache for all stations.
type TideRefresher interface {
	RefreshTides(ctx context.Context, days int) types.TideRefreshSummary
}

// TideHandler serves tide predictions, low-tide series, the station
// directory, and the tide refresh endpoint.
type TideHandler struct {
	svc         TideService
	refresher   TideRefresher
	defaultDays int
	maxDays     int
	logger      *slog.Logger
}

// NewTideHandler creates a TideHandler. defaultDays applies when the query
// omits days; maxDays bounds it.
func NewTideHandler(svc TideService, refresher TideRefresher, defaultDays, maxDays int, logger *slog.Logger) *TideHandler {
	if defaultDays <= 0 {
		defaultDays = 7
	}
	if maxDays <= 0 {
		maxDays = 90
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TideHandler{svc: svc, refresher: refresher, defaultDays: defaultDays, maxDays: maxDays, logger: logger}
}

// RegisterRoutes mounts the tide endpoints.
func (h *TideHandler) RegisterRoutes(r chi.Router) {
	r.Route("/tides", func(r chi.Router) {
		r.Get("/stations", h.HandleStations)
		r.Post("/refresh", h.HandleRefresh)
		r.Get("/{stationID}", h.HandleStation)
		r.Get("/{stationID}/low-tides", h.HandleLowTides)
	})
}

// HandleStations handles GET /api/tides/stations.
func (h *TideHandler) HandleStations(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: registry.ListStations()})
}

// HandleStation handles GET /api/tides/{stationID}?days=N. An unknown station
// returns an empty well-formed series, not an error.
func (h *TideHandler) HandleStation(w http.ResponseWriter, r *http.Request) {
	days, err := h.parseDays(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	station, err := h.svc.GetStationTides(r.Context(), chi.URLParam(r, "stationID"), days, time.Time{})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: station})
}

// HandleLowTides handles GET /api/tides/{stationID}/low-tides?days=N.
func (h *TideHandler) HandleLowTides(w http.ResponseWriter, r *http.Request) {
	days, err := h.parseDays(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	lows, err := h.svc.GetLowTides(r.Context(), chi.URLParam(r, "stationID"), days, time.Time{})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: lows})
}

// HandleRefresh handles POST /api/tides/refresh?days=N: a cache warm-up sweep
// across every registry station. Per-station failures are reported in the
// summary rather than failing the request.
func (h *TideHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	days, err := h.parseDays(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	summary := h.refresher.RefreshTides(r.Context(), days)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: summary})
}

// parseDays reads the optional days query parameter, applying the default and
// enforcing [1, maxDays].
func (h *TideHandler) parseDays(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return h.defaultDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > h.maxDays {
		return 0, types.NewAppError(
			types.ErrCodeValidationInvalidDays,
			"days must be an integer between 1 and "+strconv.Itoa(h.maxDays),
			err,
		)
	}
	return days, nil
}
