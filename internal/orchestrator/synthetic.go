package orchestrator

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/lokaskor/lokaskor/internal/boundary/scoring"
	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// seedFromRunID derives a deterministic seed so fallback output is
// reproducible for a given run.
func seedFromRunID(runID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(runID))
	return int64(h.Sum64())
}

// syntheticScore produces a plausible score in the 60-100 band the product
// uses for placeholder data.
func syntheticScore(rng *rand.Rand) float64 {
	return 60 + rng.Float64()*40
}

func syntheticSubScores(rng *rand.Rand) location.SubScores {
	return location.SubScores{
		Competition:    syntheticScore(rng),
		Accessibility:  syntheticScore(rng),
		TargetAudience: syntheticScore(rng),
		FootTraffic:    syntheticScore(rng),
	}
}

// syntheticPointResults fabricates one result per location, marked Synthetic
// so downstream consumers can tell placeholder data apart.
func syntheticPointResults(runID string, locs []location.Location) []location.AnalysisResult {
	rng := rand.New(rand.NewSource(seedFromRunID(runID)))

	out := make([]location.AnalysisResult, 0, len(locs))
	for _, l := range locs {
		out = append(out, location.AnalysisResult{
			LocationID: l.ID,
			Address:    l.Address,
			Position:   l.Position,
			TotalScore: syntheticScore(rng),
			SubScores:  syntheticSubScores(rng),
			Details: location.Details{
				Hospitals: []location.Place{
					{Name: "District Hospital", DistanceMeters: 400 + rng.Float64()*1600},
				},
				ImportantPlaces: []location.Place{
					{Name: "Metro Station", Type: "transit", DistanceMeters: 200 + rng.Float64()*800},
					{Name: "Primary School", Type: "education", DistanceMeters: 300 + rng.Float64()*1200},
				},
				Demographics: location.Demographics{
					Population: 20000 + rng.Intn(60000),
					AvgIncome:  12000 + rng.Float64()*28000,
					AgeProfile: "mixed",
				},
				Competitors: []location.Competitor{
					{Name: "Local Rival", Distance: fmt.Sprintf("%dm", 100+rng.Intn(900))},
					{Name: "Chain Branch", Distance: fmt.Sprintf("%dm", 100+rng.Intn(1900))},
				},
			},
			Synthetic: true,
		})
	}
	return out
}

// syntheticRegionScan fabricates a sample grid and top locations across the
// scan bounds.
func syntheticRegionScan(runID string, bounds geo.Bounds, topN int) *scoring.RegionScan {
	rng := rand.New(rand.NewSource(seedFromRunID(runID)))

	const gridEdge = 8
	scan := &scoring.RegionScan{}
	latSpan := bounds.NorthEast.Lat - bounds.SouthWest.Lat
	lngSpan := bounds.NorthEast.Lng - bounds.SouthWest.Lng
	for i := 0; i < gridEdge; i++ {
		for j := 0; j < gridEdge; j++ {
			scan.Samples = append(scan.Samples, scoring.RegionSample{
				Position: geo.LatLng{
					Lat: bounds.SouthWest.Lat + latSpan*(float64(i)+0.5)/gridEdge,
					Lng: bounds.SouthWest.Lng + lngSpan*(float64(j)+0.5)/gridEdge,
				},
				Score: syntheticScore(rng),
			})
		}
	}

	for i := 0; i < topN; i++ {
		scan.TopLocations = append(scan.TopLocations, scoring.NamedLocation{
			Name: fmt.Sprintf("Candidate area %d", i+1),
			Position: geo.LatLng{
				Lat: bounds.SouthWest.Lat + latSpan*rng.Float64(),
				Lng: bounds.SouthWest.Lng + lngSpan*rng.Float64(),
			},
			Score:     syntheticScore(rng),
			SubScores: syntheticSubScores(rng),
		})
	}
	return scan
}
