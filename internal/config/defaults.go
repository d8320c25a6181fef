// Package config provides configuration loading, defaults, and validation for
// the LokaSkor analysis engine.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort      = 8080
	DefaultServerMode      = "debug"
	DefaultShutdownTimeout = 15 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogOutput = "stdout"

	DefaultScoringBaseURL        = "http://localhost:5000"
	DefaultScoringRequestTimeout = 10 * time.Second
	DefaultScoringMaxAttempts    = 3
	DefaultScoringRetryBackoff   = 500 * time.Millisecond

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisTTL       = 30 * time.Minute
	DefaultRedisKeyPrefix = "lokaskor"

	DefaultMinLocations    = 2
	DefaultMaxLocations    = 10
	DefaultFallbackLatency = 1500 * time.Millisecond
	DefaultHistoryDepth    = 10
	DefaultTopResults      = 5
	DefaultHighScore       = 75.0

	DefaultHeatmapMinZoom  = 12
	DefaultHeatmapCellSize = 250.0
	DefaultHeatmapOpacity  = 0.65

	DefaultRegionCatalogPath = "configs/regions.json"
)

// ApplyDefaults fills every zero-value field in cfg with the engine default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.  It must be called
// after unmarshalling raw config data and before Validate().
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = DefaultLogOutput
	}

	// ── Scoring ───────────────────────────────────────────────────────────────
	if cfg.Scoring.BaseURL == "" {
		cfg.Scoring.BaseURL = DefaultScoringBaseURL
	}
	if cfg.Scoring.RequestTimeout == 0 {
		cfg.Scoring.RequestTimeout = DefaultScoringRequestTimeout
	}
	if cfg.Scoring.MaxAttempts == 0 {
		cfg.Scoring.MaxAttempts = DefaultScoringMaxAttempts
	}
	if cfg.Scoring.RetryBackoff == 0 {
		cfg.Scoring.RetryBackoff = DefaultScoringRetryBackoff
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Analysis ──────────────────────────────────────────────────────────────
	if cfg.Analysis.MinLocations == 0 {
		cfg.Analysis.MinLocations = DefaultMinLocations
	}
	if cfg.Analysis.MaxLocations == 0 {
		cfg.Analysis.MaxLocations = DefaultMaxLocations
	}
	if cfg.Analysis.FallbackLatency == 0 {
		cfg.Analysis.FallbackLatency = DefaultFallbackLatency
	}
	if cfg.Analysis.HistoryDepth == 0 {
		cfg.Analysis.HistoryDepth = DefaultHistoryDepth
	}
	if cfg.Analysis.TopResults == 0 {
		cfg.Analysis.TopResults = DefaultTopResults
	}
	if cfg.Analysis.HighScore == 0 {
		cfg.Analysis.HighScore = DefaultHighScore
	}

	// ── Heatmap ───────────────────────────────────────────────────────────────
	if cfg.Heatmap.MinZoom == 0 {
		cfg.Heatmap.MinZoom = DefaultHeatmapMinZoom
	}
	if cfg.Heatmap.CellSize == 0 {
		cfg.Heatmap.CellSize = DefaultHeatmapCellSize
	}
	if cfg.Heatmap.Opacity == 0 {
		cfg.Heatmap.Opacity = DefaultHeatmapOpacity
	}

	// ── Regions ───────────────────────────────────────────────────────────────
	if cfg.Regions.CatalogPath == "" {
		cfg.Regions.CatalogPath = DefaultRegionCatalogPath
	}
}

// NewDefault returns a Config populated entirely with defaults.  Useful for
// tests and for embedding the engine as a library.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
