package biotoxin

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/zstd"

	"shellcast/internal/types"
)

// Snapshot is a persisted classification-feed response with its fetch time.
type Snapshot struct {
	FetchedAt time.Time                    `json:"fetched_at"`
	Records   []types.ClassificationRecord `json:"records"`
}

// SnapshotCache persists the classification feed response to disk as
// zstd-compressed JSON. It exists to tolerate upstream rate limits: within
// the TTL the reconciler reuses the previous successful snapshot instead of
// re-querying, independent of closure-zone freshness. Surviving restarts is
// the point of putting it on disk rather than in memory.
type SnapshotCache struct {
	path   string
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewSnapshotCache creates a snapshot cache at the given path.
func NewSnapshotCache(path string, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger) *SnapshotCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{path: path, ttl: ttl, clock: clock, logger: logger}
}

// Load returns the persisted snapshot when it exists, parses, and is
// younger than the TTL. A missing, corrupt, or stale snapshot is a cache
// miss, never an error.
func (c *SnapshotCache) Load() (*Snapshot, bool) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, false
	}
	defer dec.Close()

	decoded, err := dec.DecodeAll(raw, nil)
	if err != nil {
		c.logger.Warn("classification snapshot unreadable, ignoring", "path", c.path, "error", err)
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(decoded, &snap); err != nil {
		c.logger.Warn("classification snapshot corrupt, ignoring", "path", c.path, "error", err)
		return nil, false
	}

	if c.clock.Now().Sub(snap.FetchedAt) > c.ttl {
		return nil, false
	}
	return &snap, true
}

// Save persists a new snapshot. Write failures are logged and swallowed:
// losing the cache costs an extra upstream call next cycle, nothing more.
func (c *SnapshotCache) Save(records []types.ClassificationRecord) {
	snap := Snapshot{FetchedAt: c.clock.Now(), Records: records}
	raw, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("marshaling classification snapshot", "error", err)
		return
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		c.logger.Warn("creating zstd writer", "error", err)
		return
	}
	compressed := enc.EncodeAll(raw, nil)
	enc.Close()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		c.logger.Warn("creating snapshot directory", "path", c.path, "error", err)
		return
	}
	// Write-then-rename keeps a crashed write from leaving a torn snapshot.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		c.logger.Warn("writing classification snapshot", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, c.path); err != nil {
		c.logger.Warn("renaming classification snapshot", "path", c.path, "error", err)
	}
}
