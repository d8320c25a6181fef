package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/lokaskor/lokaskor/internal/boundary/scoring"
	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/internal/heatmap"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	"github.com/lokaskor/lokaskor/internal/mapsync"
	"github.com/lokaskor/lokaskor/internal/statestore"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// loadingKeyRegion is the loading flag set while a scan is in flight.
const loadingKeyRegion = "region_scan"

// Summary aggregates the scores of a published run, point or region.
type Summary struct {
	BestScore float64 `json:"best_score"`
	MeanScore float64 `json:"mean_score"`
	HighCount int     `json:"high_count"` // scores at or above the high-score threshold
}

// Report is the published outcome of one region scan.
type Report struct {
	RunID    string                  `json:"run_id"`
	Path     region.Path             `json:"path"`
	Samples  []heatmap.Sample        `json:"samples"`
	Top      []scoring.NamedLocation `json:"top"`
	Summary  Summary                 `json:"summary"`
	Heatmap  heatmap.Outcome         `json:"heatmap"`
	Fallback bool                    `json:"fallback"`
}

// Region orchestrates region-mode analysis: the three-level cascade and the
// neighborhood scan feeding the heatmap.
type Region struct {
	log      logging.Logger
	store    *statestore.Store
	catalog  *region.Catalog
	mapLayer *mapsync.Layer
	boundary Boundary
	heat     *heatmap.Engine
	metrics  *prometheus.Metrics // optional
	cfg      Config

	mu         sync.Mutex
	path       region.Path
	currentRun string
}

// NewRegion constructs the region-mode orchestrator.  metrics may be nil.
func NewRegion(store *statestore.Store, catalog *region.Catalog, mapLayer *mapsync.Layer,
	boundary Boundary, heat *heatmap.Engine, cfg Config, log logging.Logger,
	metrics *prometheus.Metrics) *Region {
	return &Region{
		log:      log.Named("region"),
		store:    store,
		catalog:  catalog,
		mapLayer: mapLayer,
		boundary: boundary,
		heat:     heat,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
	}
}

// Select applies one cascade selection.  Choosing a level clears every
// deeper level; the value must exist in the catalog under the current path.
func (r *Region) Select(level region.Level, value string) (region.Path, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := r.path.WithSelection(level, value)
	if err := r.catalog.ValidatePath(candidate); err != nil {
		return r.path, err
	}
	r.path = candidate
	r.store.Set(statestore.Partial{RegionPath: &candidate})
	return candidate, nil
}

// Path returns the current cascade selection.
func (r *Region) Path() region.Path {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Options lists the selectable values for a level under the current path.
// Levels whose parent is unselected return no options, which the interface
// renders as a disabled control.
func (r *Region) Options(level region.Level) []string {
	r.mu.Lock()
	path := r.path
	r.mu.Unlock()

	switch level {
	case region.LevelProvince:
		return r.catalog.Provinces()
	case region.LevelDistrict:
		if path.Province == "" {
			return nil
		}
		return r.catalog.Districts(path.Province)
	case region.LevelNeighborhood:
		if path.District == "" {
			return nil
		}
		return r.catalog.Neighborhoods(path.Province, path.District)
	}
	return nil
}

// CanAnalyze reports whether a scan may start: a complete path and no scan
// in flight.
func (r *Region) CanAnalyze() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentRun == "" && r.path.Complete()
}

// Cancel abandons the in-flight scan, if any.
func (r *Region) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentRun != "" {
		r.log.Info("region scan cancelled", logging.String("run_id", r.currentRun))
		r.currentRun = ""
		r.store.SetLoading(loadingKeyRegion, false)
	}
}

// Analyze scans the selected neighborhood, renders the heatmap at the given
// zoom, and publishes the top locations with summary statistics.  Boundary
// failure falls back to a synthesized scan with a single notification.
func (r *Region) Analyze(ctx context.Context, zoom int) (*Report, error) {
	r.mu.Lock()
	if r.currentRun != "" || !r.path.Complete() {
		r.mu.Unlock()
		return nil, apperrors.Validation("region scan requires a complete region selection and no scan in flight")
	}
	runID := uuid.NewString()
	r.currentRun = runID
	path := r.path
	r.mu.Unlock()

	neighborhood, err := r.catalog.Resolve(path)
	if err != nil {
		r.finishRun(runID)
		return nil, err
	}
	bounds := neighborhood.Bounds()

	r.store.SetLoading(loadingKeyRegion, true)
	start := time.Now()
	r.log.Info("region scan started",
		logging.String("run_id", runID), logging.String("path", path.String()))

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.RunTimeout)
	scan, err := r.boundary.ScanRegion(callCtx, r.store.Get().SelectedBusinessType, path, bounds)
	cancel()

	fallback := false
	if err != nil {
		fallback = true
		r.log.Warn("region scan failed, synthesizing placeholder scan",
			logging.String("run_id", runID), logging.Err(err))

		select {
		case <-ctx.Done():
			r.finishRun(runID)
			return nil, ctx.Err()
		case <-time.After(r.cfg.FallbackLatency):
		}
		scan = syntheticRegionScan(runID, bounds, r.cfg.TopResults)

		r.store.AddError(apperrors.GetCode(err), "region scan unavailable")
		r.store.Notify(statestore.Notification{
			Kind:    statestore.NoticeError,
			Message: "Scoring service is unavailable; showing estimated region data",
		})
	}

	report, published := r.publish(runID, path, scan, zoom, fallback)
	outcome := "ok"
	switch {
	case !published:
		r.record("stale", time.Since(start))
		return nil, apperrors.State("region scan superseded").WithDetail(runID)
	case fallback:
		outcome = "fallback"
	}
	r.record(outcome, time.Since(start))
	return report, nil
}

func (r *Region) publish(runID string, path region.Path, scan *scoring.RegionScan, zoom int, fallback bool) (*Report, bool) {
	r.mu.Lock()
	if r.currentRun != runID {
		r.mu.Unlock()
		r.log.Info("discarding superseded region scan", logging.String("run_id", runID))
		return nil, false
	}
	r.currentRun = ""
	r.mu.Unlock()

	samples := make([]heatmap.Sample, 0, len(scan.Samples))
	scores := make([]float64, 0, len(scan.Samples))
	for _, s := range scan.Samples {
		samples = append(samples, heatmap.Sample{Position: s.Position, Score: s.Score})
		scores = append(scores, s.Score)
	}

	top := make([]scoring.NamedLocation, len(scan.TopLocations))
	copy(top, scan.TopLocations)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	if len(top) > r.cfg.TopResults {
		top = top[:r.cfg.TopResults]
	}

	summary := Summary{}
	if len(scores) > 0 {
		summary.MeanScore = stat.Mean(scores, nil)
		for _, s := range scores {
			if s > summary.BestScore {
				summary.BestScore = s
			}
			if s >= r.cfg.HighScore {
				summary.HighCount++
			}
		}
	}

	// The ranked top locations flow through the same surfaces as a point run:
	// state store results and map pins.
	ranked := make([]location.AnalysisResult, 0, len(top))
	for i, t := range top {
		ranked = append(ranked, location.AnalysisResult{
			LocationID: fmt.Sprintf("%s-%d", runID, i+1),
			Address:    t.Name,
			Position:   t.Position,
			TotalScore: t.Score,
			SubScores:  t.SubScores,
			Synthetic:  fallback,
		})
	}
	ranked = location.Rank(ranked)
	r.store.Set(statestore.Partial{AnalysisResults: &ranked})

	r.mapLayer.Clear()
	for _, res := range ranked {
		if err := r.mapLayer.Upsert(res); err != nil {
			r.log.Warn("marker upsert failed",
				logging.String("location_id", res.LocationID), logging.Err(err))
		}
	}

	neighborhood, err := r.catalog.Resolve(path)
	viewport := neighborhood.Bounds()
	if err != nil {
		r.log.Warn("resolve failed during publish", logging.Err(err))
	}
	heatOutcome, err := r.heat.Render(samples, viewport, zoom)
	if err != nil {
		r.log.Warn("heatmap render failed", logging.Err(err))
	}
	if heatOutcome.Suppressed {
		r.store.Notify(statestore.Notification{
			Kind:    statestore.NoticeInfo,
			Message: heatOutcome.Message,
		})
	}

	r.store.SetLoading(loadingKeyRegion, false)
	return &Report{
		RunID:    runID,
		Path:     path,
		Samples:  samples,
		Top:      top,
		Summary:  summary,
		Heatmap:  heatOutcome,
		Fallback: fallback,
	}, true
}

func (r *Region) finishRun(runID string) {
	r.mu.Lock()
	if r.currentRun == runID {
		r.currentRun = ""
	}
	r.mu.Unlock()
	r.store.SetLoading(loadingKeyRegion, false)
}

func (r *Region) record(outcome string, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.ObserveRun("region", outcome, elapsed)
	}
}
