// Package orchestrator drives the two analysis flows: point mode, comparing
// a handful of candidate addresses, and region mode, scanning a neighborhood.
// Both flows tag each run with an id so stale results can never clobber a
// newer run, and both fall back to synthesized data when the scoring backend
// fails, surfacing exactly one notification per caught failure.
package orchestrator

import (
	"context"
	"time"

	"github.com/lokaskor/lokaskor/internal/boundary/scoring"
	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// Boundary is the scoring backend contract both orchestrators depend on.
// *scoring.Client satisfies it; tests substitute fakes.
type Boundary interface {
	ScorePoints(ctx context.Context, businessType string, locs []location.Location) ([]location.AnalysisResult, error)
	ScanRegion(ctx context.Context, businessType string, path region.Path, bounds geo.Bounds) (*scoring.RegionScan, error)
	Geocode(ctx context.Context, query string) ([]scoring.GeocodeResult, error)
}

// Config tunes both orchestrators.
type Config struct {
	MinLocations    int
	MaxLocations    int
	RunTimeout      time.Duration // per boundary call
	FallbackLatency time.Duration // artificial delay before synthetic data
	TopResults      int
	HighScore       float64
}

func (c Config) withDefaults() Config {
	if c.MinLocations < 2 {
		c.MinLocations = 2
	}
	if c.MaxLocations < c.MinLocations {
		c.MaxLocations = 10
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 10 * time.Second
	}
	if c.FallbackLatency < 0 {
		c.FallbackLatency = 0
	}
	if c.TopResults <= 0 {
		c.TopResults = 5
	}
	if c.HighScore <= 0 {
		c.HighScore = 75
	}
	return c
}
