package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"shellcast/internal/core"
	"shellcast/internal/harvest"
	"shellcast/internal/types"
)

// HarvestFacade is the harvest-layer contract the harvest handler consumes.
type HarvestFacade interface {
	GetOpportunities(ctx context.Context, days int) ([]harvest.BeachOpportunity, error)
	BuildCalendar(ctx context.Context, opts harvest.CalendarOptions) ([]types.HarvestDay, error)
	RefreshAll(ctx context.Context) harvest.RefreshResult
}

// HarvestHandler serves opportunity ranking, the harvest calendar, and the
// combined refresh endpoint.
type HarvestHandler struct {
	svc         HarvestFacade
	defaultDays int
	maxDays     int
	logger      *slog.Logger
}

// NewHarvestHandler creates a HarvestHandler.
func NewHarvestHandler(svc HarvestFacade, defaultDays, maxDays int, logger *slog.Logger) *HarvestHandler {
	if defaultDays <= 0 {
		defaultDays = 7
	}
	if maxDays <= 0 {
		maxDays = 90
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HarvestHandler{svc: svc, defaultDays: defaultDays, maxDays: maxDays, logger: logger}
}

// RegisterRoutes mounts the harvest endpoints.
func (h *HarvestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/harvest-windows", func(r chi.Router) {
		r.Get("/", h.HandleWindows)
		r.Get("/calendar", h.HandleCalendar)
	})
	r.Post("/refresh", h.HandleRefreshAll)
}

// HandleWindows handles GET /api/harvest-windows?days=N: every beach ranked
// by opportunity score, highest first.
func (h *HarvestHandler) HandleWindows(w http.ResponseWriter, r *http.Request) {
	days, err := h.parseDays(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	windows, err := h.svc.GetOpportunities(r.Context(), days)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: windows})
}

// HandleCalendar handles GET /api/harvest-windows/calendar with optional
// days, startDate (YYYY-MM-DD), includeClosed, and full query parameters.
func (h *HarvestHandler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	days, err := h.parseDays(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	opts := harvest.CalendarOptions{Days: days}
	q := r.URL.Query()

	if raw := q.Get("startDate"); raw != "" {
		start, parseErr := time.ParseInLocation("2006-01-02", raw, time.Local)
		if parseErr != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidDate,
				"startDate must be formatted YYYY-MM-DD",
				parseErr,
			))
			return
		}
		opts.Start = start
	}
	opts.IncludeClosed = q.Get("includeClosed") == "true"
	opts.Full = q.Get("full") == "true"

	calendar, err := h.svc.BuildCalendar(r.Context(), opts)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: calendar})
}

// HandleRefreshAll handles POST /api/refresh: both refresh jobs. A failed
// biotoxin half is reported in the body while the tide summary still returns,
// so callers can distinguish partial from full success.
func (h *HarvestHandler) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	result := h.svc.RefreshAll(r.Context())

	status := http.StatusOK
	if result.BiotoxinError != "" {
		status = http.StatusPartialContent
	}
	core.JSON(w, r, status, core.APIResponse{Data: result})
}

func (h *HarvestHandler) parseDays(r *http.Request) (int, error) {
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
