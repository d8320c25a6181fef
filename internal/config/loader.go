package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all engine settings.
const envPrefix = "LOKASKOR"

// newViper builds a pre-configured Viper instance with the engine's standard
// settings: YAML file type, LOKASKOR_ env prefix, automatic env binding, and a
// key replacer that maps "." to "_" so that nested keys like "scoring.base_url"
// resolve to "LOKASKOR_SCORING_BASE_URL".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

// registerDefaults declares every config key to viper with its default value.
// AutomaticEnv only resolves keys viper knows about, so without this block
// LOKASKOR_* variables would be invisible to Unmarshal.
func registerDefaults(v *viper.Viper) {
	def := NewDefault()

	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.mode", def.Server.Mode)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	v.SetDefault("server.max_body_size", def.Server.MaxBodySize)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.output", def.Log.Output)

	v.SetDefault("scoring.base_url", def.Scoring.BaseURL)
	v.SetDefault("scoring.request_timeout", def.Scoring.RequestTimeout)
	v.SetDefault("scoring.max_attempts", def.Scoring.MaxAttempts)
	v.SetDefault("scoring.retry_backoff", def.Scoring.RetryBackoff)

	v.SetDefault("redis.enabled", def.Redis.Enabled)
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.password", def.Redis.Password)
	v.SetDefault("redis.db", def.Redis.DB)
	v.SetDefault("redis.pool_size", def.Redis.PoolSize)
	v.SetDefault("redis.dial_timeout", def.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", def.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", def.Redis.WriteTimeout)
	v.SetDefault("redis.default_ttl", def.Redis.DefaultTTL)
	v.SetDefault("redis.key_prefix", def.Redis.KeyPrefix)

	v.SetDefault("analysis.min_locations", def.Analysis.MinLocations)
	v.SetDefault("analysis.max_locations", def.Analysis.MaxLocations)
	v.SetDefault("analysis.fallback_latency", def.Analysis.FallbackLatency)
	v.SetDefault("analysis.history_depth", def.Analysis.HistoryDepth)
	v.SetDefault("analysis.top_results", def.Analysis.TopResults)
	v.SetDefault("analysis.high_score", def.Analysis.HighScore)

	v.SetDefault("heatmap.min_zoom", def.Heatmap.MinZoom)
	v.SetDefault("heatmap.cell_size", def.Heatmap.CellSize)
	v.SetDefault("heatmap.opacity", def.Heatmap.Opacity)

	v.SetDefault("regions.catalog_path", def.Regions.CatalogPath)
	v.SetDefault("regions.watch_file", def.Regions.WatchFile)
}

// Load reads the YAML file at configPath, merges any LOKASKOR_* environment
// variable overrides, applies engine defaults for unset fields, and validates
// the result.  It returns a fully-populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from LOKASKOR_* environment variables,
// with no config file required.  This is the preferred loading strategy for
// containerised (12-factor) deployments.
//
// Environment variable naming convention:
//
//	LOKASKOR_<SECTION>_<FIELD>   e.g.  LOKASKOR_SERVER_PORT, LOKASKOR_SCORING_BASE_URL
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file, rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  It is intended for
// hot-reloading non-critical settings such as log level and heatmap tuning;
// callers are responsible for applying only the safe subset of changes at
// runtime.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is NOT called so
// the application never enters a broken state.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read; errors are ignored here since callers call Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
