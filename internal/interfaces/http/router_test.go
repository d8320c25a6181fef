package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokaskor/lokaskor/internal/boundary/scoring"
	"github.com/lokaskor/lokaskor/internal/config"
	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	"github.com/lokaskor/lokaskor/internal/interfaces/http/handlers"
	"github.com/lokaskor/lokaskor/internal/interfaces/http/middleware"
	"github.com/lokaskor/lokaskor/internal/session"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubBoundary answers every boundary call successfully.
type stubBoundary struct{}

func (stubBoundary) ScorePoints(_ context.Context, _ string, locs []location.Location) ([]location.AnalysisResult, error) {
	out := make([]location.AnalysisResult, 0, len(locs))
	for i, l := range locs {
		out = append(out, location.AnalysisResult{
			LocationID: l.ID,
			Address:    l.Address,
			Position:   l.Position,
			TotalScore: 65 + float64(i)*10,
		})
	}
	return out, nil
}

func (stubBoundary) ScanRegion(_ context.Context, _ string, _ region.Path, bounds geo.Bounds) (*scoring.RegionScan, error) {
	center := bounds.Center()
	scan := &scoring.RegionScan{}
	for i := 0; i < 4; i++ {
		scan.Samples = append(scan.Samples, scoring.RegionSample{
			Position: center.Offset(float64(i)*100, 0),
			Score:    60 + float64(i)*10,
		})
	}
	scan.TopLocations = []scoring.NamedLocation{
		{Name: "Moda Sahili", Position: center, Score: 90},
	}
	return scan, nil
}

func (stubBoundary) Geocode(_ context.Context, query string) ([]scoring.GeocodeResult, error) {
	return []scoring.GeocodeResult{
		{Address: query, Position: geo.LatLng{Lat: 40.98, Lng: 29.02}},
	}, nil
}

const routerTestCatalog = `{
  "provinces": [
    {
      "name": "İstanbul",
      "districts": [
        {
          "name": "Kadıköy",
          "neighborhoods": [
            {"name": "Moda", "center": {"lat": 40.98, "lng": 29.02}, "radius_meters": 1500}
          ]
        }
      ]
    }
  ]
}`

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	log := logging.NewNopLogger()

	catalogPath := filepath.Join(t.TempDir(), "regions.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(routerTestCatalog), 0o644))
	catalog, err := region.NewCatalog(catalogPath, log)
	require.NoError(t, err)

	manager := session.NewManager(session.Deps{
		Config:   config.NewDefault(),
		Log:      log,
		Catalog:  catalog,
		Boundary: stubBoundary{},
		Metrics:  prometheus.NewMetrics(),
	})
	t.Cleanup(manager.Close)

	return NewRouter(RouterConfig{
		SessionHandler: handlers.NewSessionHandler(manager, log),
		HealthHandler:  handlers.NewHealthHandler("test"),
		CORS:           middleware.DefaultCORSConfig(),
		Logging:        middleware.DefaultLoggingConfig(),
		Logger:         log,
	})
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions",
		map[string]string{"business_type": "cafe"})
	require.Equal(t, http.StatusCreated, w.Code)
	id, _ := decode(t, w)["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestSessionLifecycle(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id+"/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode(t, w)["snapshot"].(map[string]any)
	assert.Equal(t, "cafe", snap["selected_business_type"])
	assert.Equal(t, "point", snap["current_mode"])

	w = doJSON(t, r, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id+"/state", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSession_UnknownModeRejected(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions",
		map[string]string{"mode": "teleport"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPointFlow(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r)
	base := "/api/v1/sessions/" + id

	w := doJSON(t, r, http.MethodPost, base+"/locations",
		map[string]string{"address": "Moda Cd. 1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, false, decode(t, w)["can_analyze"])

	w = doJSON(t, r, http.MethodPost, base+"/locations",
		map[string]string{"address": "Bahariye Cd. 5"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, decode(t, w)["can_analyze"])

	// Duplicate address rejected with a validation status.
	w = doJSON(t, r, http.MethodPost, base+"/locations",
		map[string]string{"address": "moda cd. 1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, r, http.MethodPost, base+"/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	results := body["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "Bahariye Cd. 5", first["address"], "highest score ranks first")
	assert.Equal(t, float64(1), first["rank"])

	summary := body["summary"].(map[string]any)
	assert.Equal(t, 75.0, summary["best_score"])
	assert.Equal(t, 70.0, summary["mean_score"])
	assert.Equal(t, 1.0, summary["high_count"])
}

func TestRemoveLocation(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r)
	base := "/api/v1/sessions/" + id

	w := doJSON(t, r, http.MethodPost, base+"/locations",
		map[string]string{"address": "Moda Cd. 1"})
	require.Equal(t, http.StatusCreated, w.Code)
	entry := decode(t, w)["entry"].(map[string]any)

	w = doJSON(t, r, http.MethodDelete,
		fmt.Sprintf("%s/locations/%s", base, entry["id"]), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodGet, base+"/state", nil)
	assert.Empty(t, decode(t, w)["entries"])
}

func TestRegionFlow(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r)
	base := "/api/v1/sessions/" + id

	for _, sel := range []map[string]string{
		{"level": "province", "value": "İstanbul"},
		{"level": "district", "value": "Kadıköy"},
		{"level": "neighborhood", "value": "Moda"},
	} {
		w := doJSON(t, r, http.MethodPost, base+"/region", sel)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, http.MethodPost, base+"/region",
		map[string]string{"level": "district", "value": "Atlantis"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, r, http.MethodPost, base+"/region/analyze",
		map[string]int{"zoom": 14})
	require.Equal(t, http.StatusOK, w.Code)
	report := decode(t, w)
	assert.NotEmpty(t, report["samples"])
	summary := report["summary"].(map[string]any)
	assert.Equal(t, 90.0, summary["best_score"])
}

func TestTogglePanel(t *testing.T) {
	r := newTestRouter(t)
	id := createSession(t, r)
	base := "/api/v1/sessions/" + id

	for _, addr := range []string{"Moda Cd. 1", "Bahariye Cd. 5"} {
		w := doJSON(t, r, http.MethodPost, base+"/locations",
			map[string]string{"address": addr})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := doJSON(t, r, http.MethodPost, base+"/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode(t, w)["results"].([]any)[0].(map[string]any)
	locID := first["location_id"].(string)

	toggle := map[string]string{"category": "competitor", "location_id": locID}
	w = doJSON(t, r, http.MethodPost, base+"/panels/toggle", toggle)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["panels"], 1)

	w = doJSON(t, r, http.MethodPost, base+"/panels/toggle", toggle)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["panels"])
}

func TestUnknownSession(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions/nope/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
