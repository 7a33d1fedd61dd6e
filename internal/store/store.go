// Package store implements local persistence for ShellCast: the per-station
// tide prediction cache and the per-beach status records. Both live in a
// single SQLite database file, which gives the batch-atomicity and
// idempotent-upsert guarantees the read side depends on without requiring an
// external database server.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tide_predictions (
	station_id TEXT NOT NULL,
	datetime   TEXT NOT NULL,
	height_ft  REAL NOT NULL,
	event_type TEXT NOT NULL,
	PRIMARY KEY (station_id, datetime)
);

CREATE TABLE IF NOT EXISTS beach_status (
	beach_id         INTEGER PRIMARY KEY,
	biotoxin_status  TEXT NOT NULL,
	closure_reason   TEXT NOT NULL DEFAULT '',
	species_affected TEXT NOT NULL DEFAULT '',
	season_info      TEXT NOT NULL DEFAULT '',
	season_open      INTEGER NOT NULL DEFAULT 1,
	last_updated     TEXT NOT NULL
);
`

// Store wraps the SQLite handle shared by the tide cache and status stores.
type Store struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

// Open opens (or creates) the database at path and ensures the schema
// exists. A corrupt database file is moved aside and recreated empty rather
// than failing startup: losing cached predictions costs a refetch, not
// correctness.
func Open(path string, clock clockwork.Clock, logger *slog.Logger) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := open(path)
	if err != nil {
		if path == ":memory:" {
			return nil, err
		}
		logger.Warn("store unreadable, recreating empty", "path", path, "error", err)
		if mvErr := os.Rename(path, path+".corrupt"); mvErr != nil && !os.IsNotExist(mvErr) {
			return nil, fmt.Errorf("moving corrupt store aside: %w", mvErr)
		}
		db, err = open(path)
		if err != nil {
			return nil, err
		}
	}

	return &Store{db: db, clock: clock, logger: logger}, nil
}

func open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// WAL keeps readers unblocked during refresh writes; the busy timeout
	// serializes concurrent upserts to the same station instead of erroring.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	return db, nil
}

// Ping verifies the database handle is usable. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
