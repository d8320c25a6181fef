// Package config defines all configuration structures for the LokaSkor
// analysis engine.  No I/O or parsing logic lives here, only plain data types
// and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// ScoringConfig holds parameters for the external scoring/geocoding backend.
type ScoringConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

// RedisConfig holds Redis connection parameters for the optional shared
// result cache.  Disabled means the in-memory cache is used instead.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// AnalysisConfig holds orchestrator tunables.
type AnalysisConfig struct {
	MinLocations    int           `mapstructure:"min_locations"`
	MaxLocations    int           `mapstructure:"max_locations"`
	FallbackLatency time.Duration `mapstructure:"fallback_latency"`
	HistoryDepth    int           `mapstructure:"history_depth"`
	TopResults      int           `mapstructure:"top_results"`
	HighScore       float64       `mapstructure:"high_score"`
}

// HeatmapConfig holds heatmap rendering tunables.
type HeatmapConfig struct {
	MinZoom  int     `mapstructure:"min_zoom"`
	CellSize float64 `mapstructure:"cell_size"` // cell edge length in meters
	Opacity  float64 `mapstructure:"opacity"`
}

// RegionsConfig holds the region catalog source.
type RegionsConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
	WatchFile   bool   `mapstructure:"watch_file"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the engine.  Every component
// reads its settings from the relevant sub-struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Heatmap  HeatmapConfig  `mapstructure:"heatmap"`
	Regions  RegionsConfig  `mapstructure:"regions"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Scoring
	if c.Scoring.BaseURL == "" {
		return fmt.Errorf("config: scoring.base_url is required")
	}
	if c.Scoring.RequestTimeout <= 0 {
		return fmt.Errorf("config: scoring.request_timeout must be positive, got %s", c.Scoring.RequestTimeout)
	}
	if c.Scoring.MaxAttempts < 1 {
		return fmt.Errorf("config: scoring.max_attempts must be ≥ 1, got %d", c.Scoring.MaxAttempts)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis.enabled is true")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	}

	// Analysis
	if c.Analysis.MinLocations < 2 {
		return fmt.Errorf("config: analysis.min_locations must be ≥ 2, got %d", c.Analysis.MinLocations)
	}
	if c.Analysis.MaxLocations < c.Analysis.MinLocations {
		return fmt.Errorf("config: analysis.max_locations %d is below analysis.min_locations %d",
			c.Analysis.MaxLocations, c.Analysis.MinLocations)
	}
	if c.Analysis.HistoryDepth < 1 {
		return fmt.Errorf("config: analysis.history_depth must be ≥ 1, got %d", c.Analysis.HistoryDepth)
	}
	if c.Analysis.HighScore < 0 || c.Analysis.HighScore > 100 {
		return fmt.Errorf("config: analysis.high_score %g is out of range [0, 100]", c.Analysis.HighScore)
	}

	// Heatmap
	if c.Heatmap.MinZoom < 0 || c.Heatmap.MinZoom > 22 {
		return fmt.Errorf("config: heatmap.min_zoom %d is out of range [0, 22]", c.Heatmap.MinZoom)
	}
	if c.Heatmap.CellSize <= 0 {
		return fmt.Errorf("config: heatmap.cell_size must be positive, got %g", c.Heatmap.CellSize)
	}
	if c.Heatmap.Opacity < 0 || c.Heatmap.Opacity > 1 {
		return fmt.Errorf("config: heatmap.opacity %g is out of range [0, 1]", c.Heatmap.Opacity)
	}

	// Regions
	if c.Regions.CatalogPath == "" {
		return fmt.Errorf("config: regions.catalog_path is required")
	}

	return nil
}
