// Package resultcache caches the per-category detail projections derived
// from analysis results.  Detail data is extracted lazily on first read,
// de-duplicated across concurrent readers, and invalidated wholesale whenever
// the underlying result set changes.
package resultcache

import (
	"context"
	"fmt"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// Cache is the read interface shared by the in-memory and Redis
// implementations.  The concrete type returned by Get depends on the
// category:
//
//	hospital          []location.Place
//	important_places  []location.Place
//	demographic       location.Demographics
//	competitor        []location.Competitor
type Cache interface {
	// Get returns the cached detail for category+locationID, extracting and
	// storing it on first read.  Concurrent first reads extract exactly once.
	Get(ctx context.Context, category location.Category, locationID string) (any, error)

	// Invalidate discards every cached entry.  Extractions already in flight
	// complete but their values are not stored.
	Invalidate(ctx context.Context) error
}

// Source supplies the current analysis results to extract from.
type Source func() []location.AnalysisResult

// cacheKey is the canonical entry key, matching the category_locationID
// convention used throughout the engine.
func cacheKey(category location.Category, locationID string) string {
	return fmt.Sprintf("%s_%s", category, locationID)
}

// findResult locates the result for a location id within the source set.
func findResult(src Source, locationID string) (location.AnalysisResult, error) {
	for _, r := range src() {
		if r.LocationID == locationID {
			return r, nil
		}
	}
	return location.AnalysisResult{}, apperrors.NotFound("no analysis result for location").
		WithDetail(locationID)
}
