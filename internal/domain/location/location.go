// Package location defines the core value objects of a site evaluation:
// candidate locations, their analysis results, and the derived ranking.
package location

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// Category identifies one detail dimension of an analysis result.  Categories
// key both the result cache and the detail panel registry.
type Category string

const (
	CategoryHospital        Category = "hospital"
	CategoryImportantPlaces Category = "important_places"
	CategoryDemographic     Category = "demographic"
	CategoryCompetitor      Category = "competitor"
)

// Categories lists every supported category in display order.
var Categories = []Category{
	CategoryHospital,
	CategoryImportantPlaces,
	CategoryDemographic,
	CategoryCompetitor,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryHospital, CategoryImportantPlaces, CategoryDemographic, CategoryCompetitor:
		return true
	}
	return false
}

// Location is a candidate business site under evaluation.
type Location struct {
	ID       string     `json:"id"`
	Address  string     `json:"address"`
	Position geo.LatLng `json:"position"`
}

// SubScores break the total score into its four contributing dimensions.
// All values are on the same 0-100 scale as the total.
type SubScores struct {
	Competition    float64 `json:"competition"`
	Accessibility  float64 `json:"accessibility"`
	TargetAudience float64 `json:"target_audience"`
	FootTraffic    float64 `json:"foot_traffic"`
}

// Place is a nearby point of interest (hospital, school, transit stop, ...).
type Place struct {
	Name           string  `json:"name"`
	Type           string  `json:"type,omitempty"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Demographics summarizes the resident profile around a location.
type Demographics struct {
	Population int     `json:"population"`
	AvgIncome  float64 `json:"avg_income"`
	AgeProfile string  `json:"age_profile"`
}

// Competitor is a rival business near a location.  Distance arrives from the
// backend as a display string ("300m", "1.2km"); DistanceMeters parses it
// leniently for sorting.
type Competitor struct {
	Name     string  `json:"name"`
	Distance string  `json:"distance"`
	Rating   float64 `json:"rating,omitempty"`
}

// DistanceMeters parses the display distance into meters.  Returns false when
// no numeric prefix can be recovered.
func (c Competitor) DistanceMeters() (float64, bool) {
	s := strings.TrimSpace(strings.ToLower(c.Distance))
	if s == "" {
		return 0, false
	}

	unit := 1.0
	switch {
	case strings.HasSuffix(s, "km"):
		unit = 1000
		s = strings.TrimSuffix(s, "km")
	case strings.HasSuffix(s, "m"):
		s = strings.TrimSuffix(s, "m")
	}

	// Keep the leading numeric run; tolerate trailing garbage like "~300 m?".
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || s[end] == ',') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s[:end], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v * unit, true
}

// Details carries the per-category detail payload attached to a result.
type Details struct {
	Hospitals       []Place      `json:"hospitals"`
	ImportantPlaces []Place      `json:"important_places"`
	Demographics    Demographics `json:"demographics"`
	Competitors     []Competitor `json:"competitors"`
}

// AnalysisResult is the scored outcome for one location.
type AnalysisResult struct {
	LocationID string     `json:"location_id"`
	Address    string     `json:"address"`
	Position   geo.LatLng `json:"position"`
	TotalScore float64    `json:"total_score"`
	SubScores  SubScores  `json:"sub_scores"`
	Details    Details    `json:"details"`

	// Synthetic marks results produced by the local fallback generator rather
	// than the scoring backend.
	Synthetic bool `json:"synthetic,omitempty"`

	// Rank is 1-based and assigned by Rank(); zero until ranked.
	Rank int `json:"rank,omitempty"`
}

// ScoreClass buckets a total score for marker styling.
type ScoreClass string

const (
	ScoreHigh   ScoreClass = "high"   // 80 and above
	ScoreMedium ScoreClass = "medium" // 60 to 79
	ScoreLow    ScoreClass = "low"
)

// ClassForScore returns the styling bucket for a total score.
func ClassForScore(score float64) ScoreClass {
	switch {
	case score >= 80:
		return ScoreHigh
	case score >= 60:
		return ScoreMedium
	default:
		return ScoreLow
	}
}

// Rank orders results by total score descending and assigns 1-based ranks.
// The sort is stable: results with equal scores keep their submission order.
// The input slice is not modified.
func Rank(results []AnalysisResult) []AnalysisResult {
	ranked := make([]AnalysisResult, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Best returns the highest-ranked result, or false for an empty set.
func Best(results []AnalysisResult) (AnalysisResult, bool) {
	if len(results) == 0 {
		return AnalysisResult{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.TotalScore > best.TotalScore {
			best = r
		}
	}
	return best, true
}
