package store

import (
	"context"
	"fmt"

	"shellcast/internal/types"
)

// GetPredictions returns the cached predictions for a station whose civil
// datetime falls in [start, end], ordered ascending. Both bounds are
// inclusive sortable strings ("2006-01-02 15:04" or a bare date; string
// comparison does the right thing either way).
func (s *Store) GetPredictions(ctx context.Context, stationID, start, end string) ([]types.TidePrediction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT station_id, datetime, height_ft, event_type
		FROM tide_predictions
		WHERE station_id = ? AND datetime >= ? AND datetime <= ?
		ORDER BY datetime ASC`,
		stationID, start, end)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "querying tide predictions", err)
	}
	defer rows.Close()

	var preds []types.TidePrediction
	for rows.Next() {
		var p types.TidePrediction
		if err := rows.Scan(&p.StationID, &p.Datetime, &p.HeightFt, &p.Type); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStore, "scanning tide prediction", err)
		}
		preds = append(preds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStore, "reading tide predictions", err)
	}

	return preds, nil
}

// UpsertPredictions inserts or replaces predictions keyed by
// (station_id, datetime). The whole batch commits in a single transaction:
// a failure mid-batch rolls back entirely and never corrupts
// previously-committed records. Re-inserting an existing key keeps exactly
// one row with the latest height.
func (s *Store) UpsertPredictions(ctx context.Context, preds []types.TidePrediction) error {
	if len(preds) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "beginning tide upsert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tide_predictions (station_id, datetime, height_ft, event_type)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (station_id, datetime) DO UPDATE SET
			height_ft = excluded.height_ft,
			event_type = excluded.event_type`)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "preparing tide upsert", err)
	}
	defer stmt.Close()

	for _, p := range preds {
		if p.StationID == "" || p.Datetime == "" {
			return types.NewAppError(types.ErrCodeInternalStore,
				fmt.Sprintf("prediction missing key fields: %+v", p), nil)
		}
		if _, err := stmt.ExecContext(ctx, p.StationID, p.Datetime, p.HeightFt, p.Type); err != nil {
			return types.NewAppError(types.ErrCodeInternalStore, "upserting tide prediction", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.NewAppError(types.ErrCodeInternalStore, "committing tide upsert", err)
	}
	return nil
}
