package resultcache

import (
	"math"
	"sort"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// maxCompetitors bounds the competitor projection to the nearest entries.
const maxCompetitors = 5

// Extractor projects one category's detail data out of an analysis result.
// Missing upstream fields are substituted with explicit zero values; an
// extractor never returns partially initialized data.
type Extractor func(location.AnalysisResult) (any, error)

// Registry maps categories to extractors.  It is populated once at
// construction and read-only afterwards, so no locking is needed.
type Registry struct {
	extractors map[location.Category]Extractor
}

// NewRegistry returns a registry pre-populated with the four standard
// category extractors.
func NewRegistry() *Registry {
	return &Registry{extractors: map[location.Category]Extractor{
		location.CategoryHospital:        extractHospitals,
		location.CategoryImportantPlaces: extractImportantPlaces,
		location.CategoryDemographic:     extractDemographics,
		location.CategoryCompetitor:      extractCompetitors,
	}}
}

// Register installs or replaces the extractor for a category.
func (r *Registry) Register(category location.Category, fn Extractor) {
	r.extractors[category] = fn
}

// Extract runs the extractor registered for category.
func (r *Registry) Extract(category location.Category, res location.AnalysisResult) (any, error) {
	fn, ok := r.extractors[category]
	if !ok {
		return nil, apperrors.Validation("unsupported detail category").
			WithDetail(string(category))
	}
	return fn(res)
}

func extractHospitals(res location.AnalysisResult) (any, error) {
	return normalizePlaces(res.Details.Hospitals), nil
}

func extractImportantPlaces(res location.AnalysisResult) (any, error) {
	return normalizePlaces(res.Details.ImportantPlaces), nil
}

// normalizePlaces fills missing names and guarantees a non-nil slice.
func normalizePlaces(in []location.Place) []location.Place {
	out := make([]location.Place, 0, len(in))
	for _, p := range in {
		if p.Name == "" {
			p.Name = "Unnamed"
		}
		if p.DistanceMeters < 0 {
			p.DistanceMeters = 0
		}
		out = append(out, p)
	}
	return out
}

func extractDemographics(res location.AnalysisResult) (any, error) {
	d := res.Details.Demographics
	if d.AgeProfile == "" {
		d.AgeProfile = "unknown"
	}
	if d.Population < 0 {
		d.Population = 0
	}
	if d.AvgIncome < 0 {
		d.AvgIncome = 0
	}
	return d, nil
}

// extractCompetitors drops entries carrying neither a name nor a distance,
// sorts the remainder by distance ascending (entries with an unparsable
// distance go last, keeping their relative order), and truncates to the
// nearest five.
func extractCompetitors(res location.AnalysisResult) (any, error) {
	kept := make([]location.Competitor, 0, len(res.Details.Competitors))
	for _, c := range res.Details.Competitors {
		if c.Name == "" && c.Distance == "" {
			continue
		}
		if c.Name == "" {
			c.Name = "Unnamed"
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return competitorSortKey(kept[i]) < competitorSortKey(kept[j])
	})

	if len(kept) > maxCompetitors {
		kept = kept[:maxCompetitors]
	}
	return kept, nil
}

func competitorSortKey(c location.Competitor) float64 {
	if m, ok := c.DistanceMeters(); ok {
		return m
	}
	return math.MaxFloat64
}
