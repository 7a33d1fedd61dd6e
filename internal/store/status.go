package store

import (
	"context"
	"time"

	"shellcast/internal/types"
)

// SetStatus overwrites the status record for a beach wholesale and stamps
// LastUpdated. Field-level merging is deliberately not offered: the
// reconciler recomputes every field each cycle, and a full overwrite keeps
// staleness reasoning trivial.
func (s *Store) SetStatus(ctx context.Context, status types.BeachStatus) error {
	stamped := status
	stamped.LastUpdated = s.clock.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO beach_status
			(beach_id, biotoxin_status, closure_reason, species_affected, season_info, season_open, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (beach_id) DO UPDATE SET
			biotoxin_status  = excluded.biotoxin_status,
			closure_reason   = excluded.closure_reason,
			species_affected = excluded.species_affected,
			season_info      = excluded.season_info,
			season_open      = excluded.season_open,
			last_updated     = excluded.last_updated`,
		stamped.BeachID, string(stamped.Biotoxin), stamped.ClosureReason,
		stamped.SpeciesAffected, stamped.SeasonInfo, boolToInt(stamped.SeasonOpen),
		stamped.LastUpdated.Format(time.RFC3339))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "writing beach status", err)
	}
	return nil
}

// GetStatuses returns all persisted status records keyed by beach id.
func (s *Store) GetStatuses(ctx context.Context) (map[int]types.BeachStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT beach_id, biotoxin_status, closure_reason, species_affected,
		       season_info, season_open, last_updated
		FROM beach_status`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "querying beach statuses", err)
	}
	defer rows.Close()

	out := make(map[int]types.BeachStatus)
	for rows.Next() {
		var (
			st         types.BeachStatus
			raw        string
			seasonOpen int
			updated    string
		)
		if err := rows.Scan(&st.BeachID, &raw, &st.ClosureReason, &st.SpeciesAffected,
			&st.SeasonInfo, &seasonOpen, &updated); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore, "scanning beach status", err)
		}
		st.Biotoxin = types.BiotoxinStatus(raw)
		st.SeasonOpen = seasonOpen != 0
		if t, err := time.Parse(time.RFC3339, updated); err == nil {
			st.LastUpdated = t
		}
		out[st.BeachID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "reading beach statuses", err)
	}

	return out, nil
}

// GetAllWithStatus left-joins the given registry beaches with their current
// status records, defaulting absent rows to unclassified. A write that
// completed is visible to the next read in the same process.
func (s *Store) GetAllWithStatus(ctx context.Context, beaches []types.Beach) ([]types.BeachWithStatus, error) {
	statuses, err := s.GetStatuses(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]types.BeachWithStatus, 0, len(beaches))
	for _, b := range beaches {
		st, ok := statuses[b.ID]
		if !ok {
			st = types.DefaultStatus(b.ID)
		}
		out = append(out, types.BeachWithStatus{Beach: b, Status: st})
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
