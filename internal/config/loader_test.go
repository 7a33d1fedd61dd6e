package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "shellcast", cfg.Service)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 29*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "*", cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "data/shellcast.db", cfg.Store.Path)
	assert.Equal(t, 7, cfg.Tides.DefaultDays)
	assert.Equal(t, 90, cfg.Tides.MaxLookaheadDays)
	assert.Equal(t, 25, cfg.Biotoxin.ClassificationBatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Biotoxin.SnapshotTTL)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 90, cfg.Scheduler.LongRangeDays)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/var/lib/shellcast/db.sqlite")
	t.Setenv("TIDES_DEFAULT_DAYS", "14")
	t.Setenv("SCHEDULER_BIOTOXIN_INTERVAL", "6h")
	t.Setenv("SCHEDULER_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/var/lib/shellcast/db.sqlite", cfg.Store.Path)
	assert.Equal(t, 14, cfg.Tides.DefaultDays)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.BiotoxinInterval)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoad_RejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating config")
}

func TestLoad_RejectsOutOfRangeDays(t *testing.T) {
	t.Setenv("TIDES_DEFAULT_DAYS", "365")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	t.Setenv("NOAA_TIMEOUT", "fifteen seconds")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing environment config")
}

func TestLoad_RejectsInvalidBaseURL(t *testing.T) {
	t.Setenv("NOAA_BASE_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
}
