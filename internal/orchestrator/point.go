package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	"github.com/lokaskor/lokaskor/internal/mapsync"
	"github.com/lokaskor/lokaskor/internal/resultcache"
	"github.com/lokaskor/lokaskor/internal/statestore"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// EntryState is the validation state of one address entry.
type EntryState string

const (
	EntryEmpty      EntryState = "empty"
	EntryValidating EntryState = "validating"
	EntryValid      EntryState = "valid"
	EntryInvalid    EntryState = "invalid"
)

// AddressEntry is one candidate address in point mode.  Invalid entries stay
// visible with their error so the user can correct them in place.
type AddressEntry struct {
	ID       string     `json:"id"`
	Text     string     `json:"text"`
	State    EntryState `json:"state"`
	Position geo.LatLng `json:"position,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// loadingKeyAnalysis is the loading flag set while a run is in flight.
const loadingKeyAnalysis = "analysis"

// Point orchestrates point-mode analysis.
type Point struct {
	log      logging.Logger
	store    *statestore.Store
	cache    resultcache.Cache
	mapLayer *mapsync.Layer
	boundary Boundary
	metrics  *prometheus.Metrics // optional
	cfg      Config

	mu         sync.Mutex
	entries    []*AddressEntry
	currentRun string
	summary    Summary
}

// NewPoint constructs the point-mode orchestrator.  metrics may be nil.
func NewPoint(store *statestore.Store, cache resultcache.Cache, mapLayer *mapsync.Layer,
	boundary Boundary, cfg Config, log logging.Logger, metrics *prometheus.Metrics) *Point {
	return &Point{
		log:      log.Named("point"),
		store:    store,
		cache:    cache,
		mapLayer: mapLayer,
		boundary: boundary,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
	}
}

// AddAddress registers a candidate address and validates it against the
// geocoding boundary.  A duplicate (case-insensitive exact text match) is
// added in the invalid state so it remains visible with its error, and an
// error is returned.
func (p *Point) AddAddress(ctx context.Context, text string) (AddressEntry, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return AddressEntry{}, apperrors.Validation("address must not be empty")
	}

	p.mu.Lock()
	if len(p.entries) >= p.cfg.MaxLocations {
		p.mu.Unlock()
		return AddressEntry{}, apperrors.Validation("address limit reached")
	}

	entry := &AddressEntry{ID: uuid.NewString(), Text: trimmed, State: EntryValidating}
	for _, e := range p.entries {
		if strings.EqualFold(e.Text, trimmed) {
			entry.State = EntryInvalid
			entry.Error = "address already added"
			p.entries = append(p.entries, entry)
			p.mu.Unlock()
			return *entry, apperrors.Validation("address already added").WithDetail(trimmed)
		}
	}
	p.entries = append(p.entries, entry)
	p.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RunTimeout)
	defer cancel()
	results, err := p.boundary.Geocode(callCtx, trimmed)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case err != nil:
		entry.State = EntryInvalid
		entry.Error = "address could not be verified"
		p.log.Warn("geocode failed", logging.String("query", trimmed), logging.Err(err))
	case len(results) == 0:
		entry.State = EntryInvalid
		entry.Error = "address not found"
	default:
		entry.State = EntryValid
		entry.Position = results[0].Position
		entry.Error = ""
	}
	return *entry, nil
}

// RemoveAddress drops an entry.  Unknown ids are a no-op.
func (p *Point) RemoveAddress(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.entries {
		if e.ID == id {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return
		}
	}
}

// Entries returns a copy of the address list in insertion order.
func (p *Point) Entries() []AddressEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]AddressEntry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, *e)
	}
	return out
}

// CanAnalyze reports whether a run may start: enough valid addresses and no
// run in flight.
func (p *Point) CanAnalyze() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canAnalyzeLocked()
}

func (p *Point) canAnalyzeLocked() bool {
	if p.currentRun != "" {
		return false
	}
	valid := 0
	for _, e := range p.entries {
		if e.State == EntryValid {
			valid++
		}
	}
	return valid >= p.cfg.MinLocations
}

// Summary reports the aggregate statistics of the last published run.  The
// zero Summary is returned before any run has published.
func (p *Point) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

// Cancel abandons the in-flight run, if any.  Its results will be discarded
// at publish time.
func (p *Point) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentRun != "" {
		p.log.Info("analysis cancelled", logging.String("run_id", p.currentRun))
		p.currentRun = ""
		p.store.SetLoading(loadingKeyAnalysis, false)
	}
}

// Analyze scores the valid addresses and publishes the ranked results.  On
// boundary failure it publishes deterministic synthetic results through the
// identical path after an artificial latency, with a single notification.
func (p *Point) Analyze(ctx context.Context) ([]location.AnalysisResult, error) {
	p.mu.Lock()
	if !p.canAnalyzeLocked() {
		p.mu.Unlock()
		return nil, apperrors.Validation("analysis requires at least two valid addresses and no run in flight")
	}
	runID := uuid.NewString()
	p.currentRun = runID

	locs := make([]location.Location, 0, len(p.entries))
	for _, e := range p.entries {
		if e.State == EntryValid {
			locs = append(locs, location.Location{ID: e.ID, Address: e.Text, Position: e.Position})
		}
	}
	p.mu.Unlock()

	p.store.SetLoading(loadingKeyAnalysis, true)
	start := time.Now()
	p.log.Info("analysis started",
		logging.String("run_id", runID), logging.Int("locations", len(locs)))

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RunTimeout)
	results, err := p.boundary.ScorePoints(callCtx, p.store.Get().SelectedBusinessType, locs)
	cancel()

	outcome := "ok"
	if err != nil {
		outcome = "fallback"
		p.log.Warn("scoring failed, synthesizing placeholder results",
			logging.String("run_id", runID), logging.Err(err))

		// Placeholder data arrives after a small latency so the transition
		// reads as a real response.
		select {
		case <-ctx.Done():
			p.finishRun(runID)
			return nil, ctx.Err()
		case <-time.After(p.cfg.FallbackLatency):
		}
		results = syntheticPointResults(runID, locs)

		p.store.AddError(apperrors.GetCode(err), "scoring service unavailable")
		p.store.Notify(statestore.Notification{
			Kind:    statestore.NoticeError,
			Message: "Scoring service is unavailable; showing estimated results",
		})
	}

	ranked, published := p.publish(runID, results)
	if !published {
		p.record("stale", time.Since(start))
		return nil, apperrors.State("analysis superseded").WithDetail(runID)
	}
	p.record(outcome, time.Since(start))
	return ranked, nil
}

// publish installs the ranked results atomically: state, cache, markers,
// camera.  Results from a run that is no longer current are discarded.
func (p *Point) publish(runID string, results []location.AnalysisResult) ([]location.AnalysisResult, bool) {
	p.mu.Lock()
	if p.currentRun != runID {
		p.mu.Unlock()
		p.log.Info("discarding results of superseded run", logging.String("run_id", runID))
		return nil, false
	}
	p.currentRun = ""
	p.mu.Unlock()

	ranked := location.Rank(results)

	summary := Summary{}
	if best, ok := location.Best(ranked); ok {
		summary.BestScore = best.TotalScore
		scores := make([]float64, 0, len(ranked))
		for _, r := range ranked {
			scores = append(scores, r.TotalScore)
			if r.TotalScore >= p.cfg.HighScore {
				summary.HighCount++
			}
		}
		summary.MeanScore = stat.Mean(scores, nil)
	}
	p.mu.Lock()
	p.summary = summary
	p.mu.Unlock()

	p.store.Set(statestore.Partial{AnalysisResults: &ranked})
	if err := p.cache.Invalidate(context.Background()); err != nil {
		p.log.Warn("cache invalidation failed", logging.Err(err))
	}

	p.mapLayer.Clear()
	for _, r := range ranked {
		if err := p.mapLayer.Upsert(r); err != nil {
			p.log.Warn("marker upsert failed",
				logging.String("location_id", r.LocationID), logging.Err(err))
		}
	}
	p.mapLayer.FitAll()

	p.store.SetLoading(loadingKeyAnalysis, false)
	return ranked, true
}

func (p *Point) finishRun(runID string) {
	p.mu.Lock()
	if p.currentRun == runID {
		p.currentRun = ""
	}
	p.mu.Unlock()
	p.store.SetLoading(loadingKeyAnalysis, false)
}

func (p *Point) record(outcome string, elapsed time.Duration) {
	if p.metrics != nil {
		p.metrics.ObserveRun("point", outcome, elapsed)
	}
}
