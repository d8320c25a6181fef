package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokaskor/lokaskor/internal/boundary/scoring"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/internal/heatmap"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/mapsync"
	"github.com/lokaskor/lokaskor/internal/statestore"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

const testCatalogJSON = `{
  "provinces": [
    {
      "name": "İstanbul",
      "districts": [
        {
          "name": "Kadıköy",
          "neighborhoods": [
            {"name": "Moda", "center": {"lat": 40.98, "lng": 29.02}, "radius_meters": 1500},
            {"name": "Caferağa", "center": {"lat": 40.99, "lng": 29.03}, "radius_meters": 1200}
          ]
        },
        {
          "name": "Beşiktaş",
          "neighborhoods": [
            {"name": "Bebek", "center": {"lat": 41.08, "lng": 29.04}, "radius_meters": 1000}
          ]
        }
      ]
    }
  ]
}`

func writeTestCatalog(t *testing.T) *region.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.json")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogJSON), 0o644))
	cat, err := region.NewCatalog(path, logging.NewNopLogger())
	require.NoError(t, err)
	return cat
}

type regionHarness struct {
	store    *statestore.Store
	canvas   *mapsync.NopCanvas
	layer    *mapsync.Layer
	heat     *heatmap.Engine
	boundary *fakeBoundary
	region   *Region
}

func newRegionHarness(t *testing.T, cfg Config) *regionHarness {
	t.Helper()
	log := logging.NewNopLogger()
	h := &regionHarness{
		store:    statestore.New(log),
		canvas:   mapsync.NewNopCanvas(geo.Bounds{}, 14),
		boundary: &fakeBoundary{},
	}
	h.layer = mapsync.New(h.canvas, log)
	h.heat = heatmap.New(h.canvas, heatmap.Config{}, log, nil)
	h.region = NewRegion(h.store, writeTestCatalog(t), h.layer, h.boundary, h.heat, cfg, log, nil)
	return h
}

func (h *regionHarness) selectModa(t *testing.T) {
	t.Helper()
	_, err := h.region.Select(region.LevelProvince, "İstanbul")
	require.NoError(t, err)
	_, err = h.region.Select(region.LevelDistrict, "Kadıköy")
	require.NoError(t, err)
	_, err = h.region.Select(region.LevelNeighborhood, "Moda")
	require.NoError(t, err)
}

// scanAround builds a scan whose samples sit inside the Moda bounds.
func scanAround(center geo.LatLng, scores []float64, top []scoring.NamedLocation) *scoring.RegionScan {
	scan := &scoring.RegionScan{TopLocations: top}
	for i, s := range scores {
		scan.Samples = append(scan.Samples, scoring.RegionSample{
			Position: center.Offset(float64(i)*50, float64(i)*50),
			Score:    s,
		})
	}
	return scan
}

func TestSelect_CascadeClearsDeeperLevels(t *testing.T) {
	h := newRegionHarness(t, Config{})
	h.selectModa(t)

	path, err := h.region.Select(region.LevelDistrict, "Beşiktaş")
	require.NoError(t, err)
	assert.Equal(t, "İstanbul", path.Province)
	assert.Equal(t, "Beşiktaş", path.District)
	assert.Empty(t, path.Neighborhood, "reselecting a district clears the neighborhood")

	assert.Equal(t, path, h.store.Get().RegionPath, "cascade mirrored into state")
}

func TestSelect_UnknownValueRejected(t *testing.T) {
	h := newRegionHarness(t, Config{})
	_, err := h.region.Select(region.LevelProvince, "İstanbul")
	require.NoError(t, err)

	before := h.region.Path()
	_, err = h.region.Select(region.LevelDistrict, "Atlantis")
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, before, h.region.Path(), "rejected selection leaves the path untouched")
}

func TestOptions_FollowTheCascade(t *testing.T) {
	h := newRegionHarness(t, Config{})

	assert.Equal(t, []string{"İstanbul"}, h.region.Options(region.LevelProvince))
	assert.Empty(t, h.region.Options(region.LevelDistrict), "district disabled without a province")
	assert.Empty(t, h.region.Options(region.LevelNeighborhood))

	_, err := h.region.Select(region.LevelProvince, "İstanbul")
	require.NoError(t, err)
	assert.Equal(t, []string{"Kadıköy", "Beşiktaş"}, h.region.Options(region.LevelDistrict))

	_, err = h.region.Select(region.LevelDistrict, "Kadıköy")
	require.NoError(t, err)
	assert.Equal(t, []string{"Moda", "Caferağa"}, h.region.Options(region.LevelNeighborhood))
}

func TestCanAnalyze_RequiresCompletePath(t *testing.T) {
	h := newRegionHarness(t, Config{})
	assert.False(t, h.region.CanAnalyze())

	_, err := h.region.Select(region.LevelProvince, "İstanbul")
	require.NoError(t, err)
	_, err = h.region.Select(region.LevelDistrict, "Kadıköy")
	require.NoError(t, err)
	assert.False(t, h.region.CanAnalyze(), "district alone is not enough")

	_, err = h.region.Select(region.LevelNeighborhood, "Moda")
	require.NoError(t, err)
	assert.True(t, h.region.CanAnalyze())
}

func TestAnalyze_PublishesReportAndHeatmap(t *testing.T) {
	h := newRegionHarness(t, Config{})
	h.selectModa(t)

	center := geo.LatLng{Lat: 40.98, Lng: 29.02}
	top := []scoring.NamedLocation{
		{Name: "f", Score: 60}, {Name: "a", Score: 95}, {Name: "b", Score: 90},
		{Name: "c", Score: 85}, {Name: "d", Score: 80}, {Name: "e", Score: 70},
	}
	h.boundary.scanFn = func(context.Context, string, region.Path, geo.Bounds) (*scoring.RegionScan, error) {
		return scanAround(center, []float64{50, 60, 70, 80, 90}, top), nil
	}

	report, err := h.region.Analyze(context.Background(), 14)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Len(t, report.Samples, 5)
	assert.Equal(t, 90.0, report.Summary.BestScore)
	assert.Equal(t, 70.0, report.Summary.MeanScore)
	assert.Equal(t, 2, report.Summary.HighCount, "scores at or above 75")

	require.Len(t, report.Top, 5, "top list truncated")
	assert.Equal(t, []string{"a", "b", "c", "d", "e"},
		[]string{report.Top[0].Name, report.Top[1].Name, report.Top[2].Name,
			report.Top[3].Name, report.Top[4].Name})

	assert.False(t, report.Heatmap.Suppressed)
	require.NotNil(t, report.Heatmap.Layer)
	assert.Equal(t, 1, h.canvas.OverlayCount(), "heatmap installed on the canvas")

	snap := h.store.Get()
	require.Len(t, snap.AnalysisResults, 5, "top locations published as results")
	assert.Equal(t, "a", snap.AnalysisResults[0].Address)
	assert.Equal(t, 1, snap.AnalysisResults[0].Rank)
	assert.Equal(t, 95.0, snap.AnalysisResults[0].TotalScore)
	assert.Equal(t, 5, h.canvas.MarkerCount(), "top locations pinned on the map")

	assert.False(t, snap.LoadingStates[loadingKeyRegion])
}

func TestAnalyze_BelowZoomSuppressesHeatmap(t *testing.T) {
	h := newRegionHarness(t, Config{})
	h.selectModa(t)

	center := geo.LatLng{Lat: 40.98, Lng: 29.02}
	h.boundary.scanFn = func(context.Context, string, region.Path, geo.Bounds) (*scoring.RegionScan, error) {
		return scanAround(center, []float64{50, 90}, nil), nil
	}

	report, err := h.region.Analyze(context.Background(), 10)
	require.NoError(t, err)

	assert.True(t, report.Heatmap.Suppressed)
	assert.Equal(t, heatmap.ZoomMessage, report.Heatmap.Message)
	assert.Zero(t, h.canvas.OverlayCount())

	snap := h.store.Get()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, statestore.NoticeInfo, snap.Notifications[0].Kind)
}

func TestAnalyze_RequiresCompletePath(t *testing.T) {
	h := newRegionHarness(t, Config{})
	_, err := h.region.Select(region.LevelProvince, "İstanbul")
	require.NoError(t, err)

	_, err = h.region.Analyze(context.Background(), 14)
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, h.boundary.scanCalls)
}

func TestAnalyze_FallbackSynthesizesScan(t *testing.T) {
	h := newRegionHarness(t, Config{FallbackLatency: time.Millisecond})
	h.selectModa(t)
	h.boundary.scanFn = func(context.Context, string, region.Path, geo.Bounds) (*scoring.RegionScan, error) {
		return nil, apperrors.Timeout("scan timed out")
	}

	report, err := h.region.Analyze(context.Background(), 14)
	require.NoError(t, err)
	assert.True(t, report.Fallback)

	assert.Len(t, report.Samples, 64, "synthetic grid covers the bounds")
	assert.Len(t, report.Top, 5)
	for _, s := range report.Samples {
		assert.GreaterOrEqual(t, s.Score, 60.0)
		assert.LessOrEqual(t, s.Score, 100.0)
	}

	snap := h.store.Get()
	require.Len(t, snap.Notifications, 1, "exactly one notification per caught failure")
	assert.Equal(t, statestore.NoticeError, snap.Notifications[0].Kind)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, apperrors.CodeTimeout, snap.Errors[0].Code)

	assert.Equal(t, 1, h.canvas.OverlayCount(), "fallback flows through the same render path")
	assert.Equal(t, 5, h.canvas.MarkerCount())
	require.NotEmpty(t, snap.AnalysisResults)
	assert.True(t, snap.AnalysisResults[0].Synthetic)
}

func TestAnalyze_CancelDiscardsStaleScan(t *testing.T) {
	h := newRegionHarness(t, Config{})
	h.selectModa(t)

	release := make(chan struct{})
	center := geo.LatLng{Lat: 40.98, Lng: 29.02}
	h.boundary.scanFn = func(context.Context, string, region.Path, geo.Bounds) (*scoring.RegionScan, error) {
		<-release
		return scanAround(center, []float64{80, 90}, nil), nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.region.Analyze(context.Background(), 14)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return h.store.Get().LoadingStates[loadingKeyRegion]
	}, time.Second, time.Millisecond)

	h.region.Cancel()
	close(release)

	err := <-done
	require.Error(t, err)
	assert.True(t, apperrors.IsState(err))
	assert.Zero(t, h.canvas.OverlayCount(), "stale scan never reaches the canvas")
	assert.Zero(t, h.canvas.MarkerCount())
	assert.Empty(t, h.store.Get().AnalysisResults)
	assert.False(t, h.store.Get().LoadingStates[loadingKeyRegion])
}
