package biotoxin

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"shellcast/internal/observability"
	"shellcast/internal/types"
)

// Default closure reasons attached when a biotoxin zone match downgrades a
// beach without upstream reason text.
const (
	reasonAllSpecies     = "Biotoxin - All Species"
	reasonSpeciesLimited = "Biotoxin - Species Restriction"
	reasonClosedDefault  = "Closed by health authority"
)

// classificationBatchConcurrency bounds parallel classification queries.
const classificationBatchConcurrency = 4

// ClassificationSource is the per-location classification feed contract.
type ClassificationSource interface {
	QueryClassificationBatch(ctx context.Context, externalIDs []string) ([]types.ClassificationRecord, error)
}

// ClosureSource is the closure-zone feed contract.
type ClosureSource interface {
	FetchClosureZones(ctx context.Context) ([]types.ClosureRecord, error)
}

// StatusWriter persists derived statuses; mutation of beach status flows
// exclusively through the reconciler.
type StatusWriter interface {
	SetStatus(ctx context.Context, status types.BeachStatus) error
}

// BeachSource lists the registry beaches.
type BeachSource interface {
	ListBeaches() []types.Beach
}

// Reconciler derives one authoritative status per beach from the two DOH
// feeds every refresh cycle. Each run recomputes from scratch; no
// intermediate state survives between cycles.
type Reconciler struct {
	beaches        BeachSource
	classification ClassificationSource
	closures       ClosureSource
	statuses       StatusWriter
	matcher        *ZoneMatcher
	snapshot       *SnapshotCache
	batchSize      int
	metrics        *observability.Metrics
	clock          clockwork.Clock
	logger         *slog.Logger
}

// NewReconciler wires a Reconciler. batchSize caps external ids per
// classification query to respect the upstream URL-length limit.
func NewReconciler(
	beaches BeachSource,
	classification ClassificationSource,
	closures ClosureSource,
	statuses StatusWriter,
	matcher *ZoneMatcher,
	snapshot *SnapshotCache,
	batchSize int,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Reconciler {
	if batchSize <= 0 {
		batchSize = 25
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		beaches:        beaches,
		classification: classification,
		closures:       closures,
		statuses:       statuses,
		matcher:        matcher,
		snapshot:       snapshot,
		batchSize:      batchSize,
		metrics:        metrics,
		clock:          clock,
		logger:         logger,
	}
}

// closureOverlay accumulates zone-closure evidence for one beach. The
// all-species flag is sticky: once any matching record sets it, species
// detail no longer narrows the restriction.
type closureOverlay struct {
	allSpecies bool
	species    map[string]struct{}
}

// Refresh runs one full reconciliation cycle. Both feeds degrade
// independently: a dead classification feed leaves every beach on the
// zone-only branch, a dead closure feed just means no biotoxin overlay this
// cycle. Every beach in the registry is written wholesale, so a refresh is
// always total and idempotent.
func (r *Reconciler) Refresh(ctx context.Context) (types.RefreshSummary, error) {
	beaches := r.beaches.ListBeaches()

	// Fan out the two independent feed fetches; merge single-threaded below
	// because classification-before-overlay ordering is part of the
	// derivation contract.
	var (
		classRecords   []types.ClassificationRecord
		closureRecords []types.ClosureRecord
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		classRecords = r.fetchClassifications(gCtx, beaches)
		return nil
	})
	g.Go(func() error {
		recs, err := r.closures.FetchClosureZones(gCtx)
		if err != nil {
			// Proceed with an empty closure set rather than aborting.
			r.logger.WarnContext(gCtx, "closure-zone fetch failed, skipping overlay", "error", err)
			return nil
		}
		closureRecords = recs
		return nil
	})
	_ = g.Wait()

	classByExt := reduceClassifications(classRecords)
	overlays := r.resolveClosures(ctx, closureRecords)

	summary := types.RefreshSummary{Timestamp: r.clock.Now()}
	for _, beach := range beaches {
		status := r.derive(beach, classByExt, overlays)
		if err := r.statuses.SetStatus(ctx, status); err != nil {
			r.metrics.RefreshCycles.WithLabelValues("biotoxin", "error").Inc()
			return summary, err
		}
		summary.Updated++
		switch status.Biotoxin {
		case types.StatusOpen:
			summary.Open++
		case types.StatusClosed:
			summary.Closed++
		case types.StatusConditional:
			summary.Conditional++
		default:
			summary.Unclassified++
		}
	}

	r.metrics.BeachStatus.WithLabelValues(string(types.StatusOpen)).Set(float64(summary.Open))
	r.metrics.BeachStatus.WithLabelValues(string(types.StatusClosed)).Set(float64(summary.Closed))
	r.metrics.BeachStatus.WithLabelValues(string(types.StatusConditional)).Set(float64(summary.Conditional))
	r.metrics.BeachStatus.WithLabelValues(string(types.StatusUnclassified)).Set(float64(summary.Unclassified))
	r.metrics.RefreshCycles.WithLabelValues("biotoxin", "success").Inc()

	r.logger.InfoContext(ctx, "biotoxin refresh complete",
		"updated", summary.Updated,
		"open", summary.Open,
		"closed", summary.Closed,
		"conditional", summary.Conditional,
		"unclassified", summary.Unclassified,
	)
	return summary, nil
}

// fetchClassifications returns the classification records for all beaches
// with external ids, from the snapshot cache when fresh, otherwise from the
// feed in concurrent batches. A failed batch yields no records for its ids
// and does not abort sibling batches; a fully failed fetch returns nil,
// which downstream derivation treats as "classification absent".
func (r *Reconciler) fetchClassifications(ctx context.Context, beaches []types.Beach) []types.ClassificationRecord {
	if r.snapshot != nil {
		if snap, ok := r.snapshot.Load(); ok {
			r.metrics.SnapshotCache.WithLabelValues("hit").Inc()
			return snap.Records
		}
		r.metrics.SnapshotCache.WithLabelValues("miss").Inc()
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, b := range beaches {
		ext := b.ExternalID()
		if ext == "" {
			continue
		}
		if _, dup := seen[ext]; !dup {
			seen[ext] = struct{}{}
			ids = append(ids, ext)
		}
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		records  []types.ClassificationRecord
		anyBatch bool
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(classificationBatchConcurrency)
	for start := 0; start < len(ids); start += r.batchSize {
		end := min(start+r.batchSize, len(ids))
		batch := ids[start:end]
		g.Go(func() error {
			recs, err := r.classification.QueryClassificationBatch(gCtx, batch)
			if err != nil {
				r.logger.WarnContext(gCtx, "classification batch failed",
					"ids", len(batch), "error", err)
				return nil
			}
			mu.Lock()
			records = append(records, recs...)
			anyBatch = true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if !anyBatch {
		r.logger.WarnContext(ctx, "classification feed unavailable, proceeding without it")
		return nil
	}
	if r.snapshot != nil {
		r.snapshot.Save(records)
	}
	return records
}

// reduceClassifications keeps the most restrictive record per external id.
func reduceClassifications(records []types.ClassificationRecord) map[string]types.ClassificationRecord {
	out := make(map[string]types.ClassificationRecord, len(records))
	for _, rec := range records {
		prev, exists := out[rec.ExternalID]
		if !exists || rec.Status().Restrictiveness() > prev.Status().Restrictiveness() {
			out[rec.ExternalID] = rec
		}
	}
	return out
}

// resolveClosures filters the closure feed to active biotoxin-class records
// and resolves each zone name to beaches, accumulating per-beach overlays.
// Multiple matches all apply; zero matches drop the record silently.
func (r *Reconciler) resolveClosures(ctx context.Context, records []types.ClosureRecord) map[int]*closureOverlay {
	overlays := make(map[int]*closureOverlay)
	for _, rec := range records {
		if !rec.IsBiotoxin() {
			continue
		}
		match := r.matcher.Match(rec.ZoneNameRaw)
		if match.Kind == MatchNone {
			r.logger.DebugContext(ctx, "closure zone matched no beach", "zone", rec.ZoneNameRaw)
			continue
		}
		for _, id := range match.BeachIDs {
			ov := overlays[id]
			if ov == nil {
				ov = &closureOverlay{species: make(map[string]struct{})}
				overlays[id] = ov
			}
			if rec.IsAllSpecies() {
				ov.allSpecies = true
				continue
			}
			for _, sp := range strings.Split(rec.SpeciesAffectedRaw, ",") {
				if sp = strings.TrimSpace(sp); sp != "" {
					ov.species[sp] = struct{}{}
				}
			}
		}
	}
	return overlays
}

// derive applies the status priority contract for one beach: the
// classification feed decides first, an active biotoxin zone match can only
// downgrade, and a zone-only match is used as a weak signal when no
// classification record exists. Closed is terminal; no overlay upgrades it.
func (r *Reconciler) derive(beach types.Beach, classByExt map[string]types.ClassificationRecord, overlays map[int]*closureOverlay) types.BeachStatus {
	status := types.DefaultStatus(beach.ID)
	overlay := overlays[beach.ID]

	class, hasClass := classByExt[beach.ExternalID()]
	classStatus := types.StatusUnclassified
	if hasClass {
		classStatus = class.Status()
	}

	switch {
	case hasClass && classStatus == types.StatusClosed:
		status.Biotoxin = types.StatusClosed
		status.ClosureReason = firstNonEmpty(class.ReasonText, reasonClosedDefault)

	case hasClass && classStatus == types.StatusOpen && overlay != nil && overlay.allSpecies:
		status.Biotoxin = types.StatusClosed
		status.ClosureReason = reasonAllSpecies

	case hasClass && classStatus == types.StatusOpen && overlay != nil:
		status.Biotoxin = types.StatusConditional
		status.ClosureReason = reasonSpeciesLimited
		status.SpeciesAffected = joinedSpecies(overlay)

	case hasClass && classStatus == types.StatusOpen:
		status.Biotoxin = types.StatusOpen

	case hasClass && classStatus == types.StatusConditional:
		status.Biotoxin = types.StatusConditional
		status.ClosureReason = firstNonEmpty(class.ReasonText, reasonSpeciesLimited)
		if overlay != nil {
			status.SpeciesAffected = joinedSpecies(overlay)
		}

	default:
		// Classification unclassified or absent. A biotoxin zone match is
		// still a usable weak signal.
		if overlay != nil {
			if overlay.allSpecies {
				status.Biotoxin = types.StatusClosed
				status.ClosureReason = reasonAllSpecies
			} else {
				status.Biotoxin = types.StatusConditional
				status.ClosureReason = reasonSpeciesLimited
				status.SpeciesAffected = joinedSpecies(overlay)
			}
		} else {
			status.Biotoxin = types.StatusUnclassified
		}
	}

	return status
}

// joinedSpecies renders an overlay's accumulated species as a stable
// comma-joined list.
func joinedSpecies(ov *closureOverlay) string {
	if ov.allSpecies || len(ov.species) == 0 {
		return ""
	}
	names := make([]string, 0, len(ov.species))
	for sp := range ov.species {
		names = append(names, sp)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
