package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokaskor/lokaskor/internal/boundary/scoring"
	"github.com/lokaskor/lokaskor/internal/config"
	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	"github.com/lokaskor/lokaskor/internal/statestore"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

type noopBoundary struct{}

func (noopBoundary) ScorePoints(context.Context, string, []location.Location) ([]location.AnalysisResult, error) {
	return nil, nil
}

func (noopBoundary) ScanRegion(context.Context, string, region.Path, geo.Bounds) (*scoring.RegionScan, error) {
	return &scoring.RegionScan{}, nil
}

func (noopBoundary) Geocode(context.Context, string) ([]scoring.GeocodeResult, error) {
	return nil, nil
}

const managerTestCatalog = `{
  "provinces": [
    {"name": "İstanbul", "districts": [
      {"name": "Kadıköy", "neighborhoods": [
        {"name": "Moda", "center": {"lat": 40.98, "lng": 29.02}}
      ]}
    ]}
  ]
}`

func newTestManager(t *testing.T) (*Manager, *prometheus.Metrics) {
	t.Helper()
	log := logging.NewNopLogger()

	path := filepath.Join(t.TempDir(), "regions.json")
	require.NoError(t, os.WriteFile(path, []byte(managerTestCatalog), 0o644))
	catalog, err := region.NewCatalog(path, log)
	require.NoError(t, err)

	metrics := prometheus.NewMetrics()
	m := NewManager(Deps{
		Config:   config.NewDefault(),
		Log:      log,
		Catalog:  catalog,
		Boundary: noopBoundary{},
		Metrics:  metrics,
	})
	t.Cleanup(m.Close)
	return m, metrics
}

func TestManager_CreateAssemblesSession(t *testing.T) {
	m, metrics := newTestManager(t)

	s := m.Create()
	require.NotEmpty(t, s.ID)
	assert.NotNil(t, s.Store)
	assert.NotNil(t, s.Cache)
	assert.NotNil(t, s.Map)
	assert.NotNil(t, s.Heatmap)
	assert.NotNil(t, s.Panels)
	assert.NotNil(t, s.Point)
	assert.NotNil(t, s.Region)

	assert.Equal(t, 1, m.Count())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveSessions))

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m, _ := newTestManager(t)

	a := m.Create()
	b := m.Create()
	require.NotEqual(t, a.ID, b.ID)

	a.Store.SetLoading("analysis", true)
	assert.False(t, b.Store.Get().LoadingStates["analysis"],
		"state never leaks between sessions")
}

func TestManager_DestroyIsIdempotent(t *testing.T) {
	m, metrics := newTestManager(t)
	s := m.Create()

	m.Destroy(s.ID)
	m.Destroy(s.ID)
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveSessions))

	_, err := m.Get(s.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestManager_CloseDestroysAll(t *testing.T) {
	m, _ := newTestManager(t)
	m.Create()
	m.Create()
	m.Close()
	assert.Equal(t, 0, m.Count())
}

func TestManager_UpdateConfigAppliesToNewSessions(t *testing.T) {
	m, _ := newTestManager(t)

	before := m.Create()
	assert.Equal(t, config.DefaultHeatmapMinZoom, before.Canvas.Zoom())

	next := config.NewDefault()
	next.Heatmap.MinZoom = 14
	m.UpdateConfig(next)
	m.UpdateConfig(nil) // ignored

	after := m.Create()
	assert.Equal(t, 14, after.Canvas.Zoom())
	assert.Equal(t, config.DefaultHeatmapMinZoom, before.Canvas.Zoom(),
		"live sessions keep their original settings")
}

func TestSession_CacheReadsFromStore(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Create()

	results := []location.AnalysisResult{{
		LocationID: "a",
		TotalScore: 88,
		Details: location.Details{
			Competitors: []location.Competitor{{Name: "Rival", Distance: "300m"}},
		},
	}}
	s.Store.Set(statestore.Partial{AnalysisResults: &results})

	data, err := s.Cache.Get(context.Background(), location.CategoryCompetitor, "a")
	require.NoError(t, err)
	competitors, ok := data.([]location.Competitor)
	require.True(t, ok)
	require.Len(t, competitors, 1)
	assert.Equal(t, "Rival", competitors[0].Name)
}
