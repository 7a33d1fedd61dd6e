package biotoxin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shellcast/internal/types"
)

func snapshotRecords() []types.ClassificationRecord {
	return []types.ClassificationRecord{
		{ExternalID: "280452", FinalStatusRaw: "Open", ReasonText: ""},
		{ExternalID: "280100", FinalStatusRaw: "Closed", ReasonText: "PSP toxins"},
	}
}

func TestSnapshotCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json.zst")
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	cache := NewSnapshotCache(path, 24*time.Hour, clock, nil)

	cache.Save(snapshotRecords())

	snap, ok := cache.Load()
	require.True(t, ok)
	require.Len(t, snap.Records, 2)
	assert.Equal(t, "280452", snap.Records[0].ExternalID)
	assert.True(t, snap.FetchedAt.Equal(clock.Now()))
}

func TestSnapshotCache_MissWhenAbsent(t *testing.T) {
	cache := NewSnapshotCache(filepath.Join(t.TempDir(), "missing.zst"), time.Hour, nil, nil)
	_, ok := cache.Load()
	assert.False(t, ok)
}

func TestSnapshotCache_ExpiresAfterTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json.zst")
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	cache := NewSnapshotCache(path, 24*time.Hour, clock, nil)

	cache.Save(snapshotRecords())

	clock.Advance(23 * time.Hour)
	_, ok := cache.Load()
	assert.True(t, ok, "within TTL")

	clock.Advance(2 * time.Hour)
	_, ok = cache.Load()
	assert.False(t, ok, "past TTL")
}

func TestSnapshotCache_CorruptFileIsAMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json.zst")
	require.NoError(t, os.WriteFile(path, []byte("not zstd at all"), 0o644))

	cache := NewSnapshotCache(path, time.Hour, nil, nil)
	_, ok := cache.Load()
	assert.False(t, ok)
}
