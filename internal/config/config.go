// Package config defines the ShellCast configuration structure. Configuration
// is loaded once at process startup and is immutable thereafter, following
// 12-factor conventions: OS environment first, then an optional .env file.
// A missing required value or invalid format fails startup immediately.
package config

import "time"

// Config is the top-level configuration for the ShellCast service. Populated
// once during initialization and never modified. Sub-components receive only
// the config subsets they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"shellcast"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Store     StoreConfig
	Tides     TidesConfig
	Biotoxin  BiotoxinConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	// CORSAllowedOrigins is a comma-separated list; "*" allows any origin.
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	// RefreshOnStartup triggers a tide + biotoxin warm refresh when the API
	// process boots, so the first request never hits a cold cache.
	RefreshOnStartup bool `envconfig:"REFRESH_ON_STARTUP" default:"true"`
}

// StoreConfig holds local persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file backing the tide cache and beach
	// status stores. ":memory:" is accepted for tests.
	Path string `envconfig:"DB_PATH" default:"data/shellcast.db" validate:"required"`
}

// TidesConfig holds NOAA CO-OPS client settings.
type TidesConfig struct {
	BaseURL string        `envconfig:"NOAA_BASE_URL" default:"https://api.tidesandcurrents.noaa.gov/api/prod/datagetter" validate:"required,url"`
	Timeout time.Duration `envconfig:"NOAA_TIMEOUT" default:"15s"`
	// DefaultDays is the standard lookahead window for tide queries.
	DefaultDays int `envconfig:"TIDES_DEFAULT_DAYS" default:"7" validate:"min=1,max=90"`
	// MaxLookaheadDays bounds the next-good-tide extension search.
	MaxLookaheadDays int `envconfig:"TIDES_MAX_LOOKAHEAD_DAYS" default:"90" validate:"min=1,max=365"`
	// OpportunityLookaheadDays bounds the extension search used by the
	// opportunity ranking, which tolerates a shorter horizon than the
	// calendar because scores decay with distance anyway.
	OpportunityLookaheadDays int `envconfig:"TIDES_OPPORTUNITY_LOOKAHEAD_DAYS" default:"30" validate:"min=1,max=365"`
}

// BiotoxinConfig holds WA DOH ArcGIS feed settings.
type BiotoxinConfig struct {
	BaseURL string        `envconfig:"DOH_BASE_URL" default:"https://fortress.wa.gov/doh/arcgis/arcgis/rest/services/Biotoxin/Biotoxin_v2/MapServer" validate:"required,url"`
	Timeout time.Duration `envconfig:"DOH_TIMEOUT" default:"15s"`
	// ClassificationLayer is the per-location classification layer id.
	ClassificationLayer int `envconfig:"DOH_CLASSIFICATION_LAYER" default:"4"`
	// ClosureLayer is the free-text closure-zone layer id.
	ClosureLayer int `envconfig:"DOH_CLOSURE_LAYER" default:"12"`
	// ClassificationBatchSize caps external ids per classification query to
	// respect upstream URL-length limits.
	ClassificationBatchSize int `envconfig:"DOH_CLASSIFICATION_BATCH_SIZE" default:"25" validate:"min=1,max=100"`
	// SnapshotPath is where the classification response snapshot is persisted
	// (zstd-compressed JSON, written by the snapshot cache).
	SnapshotPath string `envconfig:"DOH_SNAPSHOT_PATH" default:"data/doh-classification.json.zst"`
	// SnapshotTTL is how long a classification snapshot is served without
	// re-fetching. Exists to tolerate upstream rate limits.
	SnapshotTTL time.Duration `envconfig:"DOH_SNAPSHOT_TTL" default:"24h"`
}

// SchedulerConfig holds the embedded periodic refresh settings.
type SchedulerConfig struct {
	Enabled bool `envconfig:"SCHEDULER_ENABLED" default:"true"`
	// BiotoxinInterval is the cadence of full status reconciliation.
	BiotoxinInterval time.Duration `envconfig:"SCHEDULER_BIOTOXIN_INTERVAL" default:"24h"`
	// TideInterval is the cadence of the short-range tide sweep.
	TideInterval time.Duration `envconfig:"SCHEDULER_TIDE_INTERVAL" default:"24h"`
	// LongRangeInterval is the cadence of the long-range tide sweep.
	LongRangeInterval time.Duration `envconfig:"SCHEDULER_LONG_RANGE_INTERVAL" default:"720h"`
	// LongRangeDays is the window fetched by the long-range sweep.
	LongRangeDays int `envconfig:"SCHEDULER_LONG_RANGE_DAYS" default:"90" validate:"min=1,max=365"`
}
