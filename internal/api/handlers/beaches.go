// Package handlers contains the HTTP handler implementations for the
// ShellCast API. Each handler struct receives its service dependencies as
// locally defined interfaces and registers its routes on the shared router.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"shellcast/internal/core"
	"shellcast/internal/harvest"
	"shellcast/internal/types"
)

// defaultBeachTideDays is the low-tide window attached to beach responses.
const defaultBeachTideDays = 7

// BeachFacade is the harvest-layer contract the beach handler consumes.
type BeachFacade interface {
	GetOpportunities(ctx context.Context, days int) ([]harvest.BeachOpportunity, error)
	RefreshBiotoxin(ctx context.Context) (types.RefreshSummary, error)
}

// BeachLookup resolves individual registry beaches.
type BeachLookup interface {
	GetBeach(id int) (types.Beach, bool)
}

// BeachHandler serves the beach list, detail, summary, and biotoxin refresh
// endpoints.
type BeachHandler struct {
	facade harvest.TideProvider
	svc    BeachFacade
	lookup BeachLookup
	logger *slog.Logger
}

// NewBeachHandler creates a BeachHandler.
func NewBeachHandler(svc BeachFacade, tides harvest.TideProvider, lookup BeachLookup, logger *slog.Logger) *BeachHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BeachHandler{svc: svc, facade: tides, lookup: lookup, logger: logger}
}

// RegisterRoutes mounts the beach endpoints.
func (h *BeachHandler) RegisterRoutes(r chi.Router) {
	r.Route("/beaches", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/summary", h.HandleSummary)
		r.Post("/refresh", h.HandleRefresh)
		r.Get("/{id}", h.HandleGet)
	})
}

// HandleList handles GET /api/beaches: every beach with its current status,
// traffic-light color, and upcoming low tides, in registry order.
func (h *BeachHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	beaches, err := h.svc.GetOpportunities(r.Context(), defaultBeachTideDays)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	// Opportunities arrive ranked by score; the plain list endpoint presents
	// registry order instead.
	sort.SliceStable(beaches, func(i, j int) bool {
		if beaches[i].Region != beaches[j].Region {
			return beaches[i].Region < beaches[j].Region
		}
		return beaches[i].Name < beaches[j].Name
	})

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: beaches})
}

// beachSummary is the status-count roll-up for GET /api/beaches/summary.
type beachSummary struct {
	Total        int `json:"total"`
	Open         int `json:"open"`
	Closed       int `json:"closed"`
	Conditional  int `json:"conditional"`
	Unclassified int `json:"unclassified"`
	Harvestable  int `json:"harvestable"`
}

// HandleSummary handles GET /api/beaches/summary.
func (h *BeachHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	beaches, err := h.svc.GetOpportunities(r.Context(), defaultBeachTideDays)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	summary := beachSummary{Total: len(beaches)}
	for _, b := range beaches {
		switch b.Status.Biotoxin {
		case types.StatusOpen:
			summary.Open++
		case types.StatusClosed:
			summary.Closed++
		case types.StatusConditional:
			summary.Conditional++
		default:
			summary.Unclassified++
		}
		if b.Harvestable {
			summary.Harvestable++
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: summary})
}

// beachDetail is the single-beach response for GET /api/beaches/{id}.
type beachDetail struct {
	harvest.BeachOpportunity
	LowTides []types.LowTide `json:"low_tides"`
}

// HandleGet handles GET /api/beaches/{id}: beach detail with the full 7-day
// low-tide series rather than the list preview.
func (h *BeachHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidBeachID,
			"beach id must be an integer",
			err,
		))
		return
	}

	beach, ok := h.lookup.GetBeach(id)
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundBeach,
			"no beach with id "+strconv.Itoa(id),
			nil,
		))
		return
	}

	beaches, err := h.svc.GetOpportunities(r.Context(), defaultBeachTideDays)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	detail := beachDetail{LowTides: []types.LowTide{}}
	for _, b := range beaches {
		if b.ID == beach.ID {
			detail.BeachOpportunity = b
			break
		}
	}

	lows, tideErr := h.facade.GetLowTides(r.Context(), beach.TideStationID, defaultBeachTideDays, time.Time{})
	if tideErr != nil {
		h.logger.WarnContext(r.Context(), "low tide lookup failed for beach detail",
			"beach_id", beach.ID, "error", tideErr)
	} else {
		detail.LowTides = lows
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: detail})
}

// HandleRefresh handles POST /api/beaches/refresh: one on-demand biotoxin
// reconciliation cycle.
func (h *BeachHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.RefreshBiotoxin(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: summary})
}
