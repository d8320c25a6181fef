// Package session assembles the per-session engine: state store, result
// cache, map layer, heatmap, panels, and the two analysis orchestrators, all
// sharing one state container.  The Manager owns the live sessions of the
// API server.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lokaskor/lokaskor/internal/config"
	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/internal/heatmap"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	"github.com/lokaskor/lokaskor/internal/mapsync"
	"github.com/lokaskor/lokaskor/internal/orchestrator"
	"github.com/lokaskor/lokaskor/internal/panel"
	"github.com/lokaskor/lokaskor/internal/resultcache"
	"github.com/lokaskor/lokaskor/internal/statestore"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// Session is one assembled engine instance.
type Session struct {
	ID        string
	CreatedAt time.Time

	Store   *statestore.Store
	Cache   resultcache.Cache
	Canvas  *mapsync.NopCanvas
	Map     *mapsync.Layer
	Heatmap *heatmap.Engine
	Panels  *panel.Coordinator
	Surface *panel.HeadlessSurface
	Point   *orchestrator.Point
	Region  *orchestrator.Region
}

// Deps carries the shared collaborators every session is built from.
// RedisClient may be nil; sessions then cache in memory.  Metrics may be nil.
type Deps struct {
	Config   *config.Config
	Log      logging.Logger
	Catalog  *region.Catalog
	Boundary orchestrator.Boundary
	Redis    *redis.Client
	Metrics  *prometheus.Metrics
}

// Manager creates, resolves, and destroys sessions.
type Manager struct {
	deps Deps
	log  logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs a Manager.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		log:      deps.Log.Named("session"),
		sessions: make(map[string]*Session),
	}
}

// UpdateConfig swaps the configuration used for sessions created from now
// on, e.g. after a config file reload.  Live sessions keep the settings they
// were built with.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	m.mu.Lock()
	m.deps.Config = cfg
	m.mu.Unlock()
}

// Create assembles a fresh session.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	cfg := m.deps.Config
	m.mu.Unlock()
	id := uuid.NewString()
	log := m.log.With(logging.String("session_id", id))

	store := statestore.New(log,
		statestore.WithHistoryDepth(cfg.Analysis.HistoryDepth))

	source := func() []location.AnalysisResult {
		return store.Get().AnalysisResults
	}
	registry := resultcache.NewRegistry()

	var cache resultcache.Cache
	if m.deps.Redis != nil {
		prefix := fmt.Sprintf("%s:%s", cfg.Redis.KeyPrefix, id)
		cache = resultcache.NewRedis(m.deps.Redis, prefix, 0,
			source, registry, log, m.deps.Metrics)
	} else {
		cache = resultcache.NewMemory(source, registry, log, m.deps.Metrics)
	}

	canvas := mapsync.NewNopCanvas(geo.Bounds{}, cfg.Heatmap.MinZoom)
	layer := mapsync.New(canvas, log)
	heat := heatmap.New(canvas, heatmap.Config{
		MinZoom:  cfg.Heatmap.MinZoom,
		CellSize: cfg.Heatmap.CellSize,
		Opacity:  cfg.Heatmap.Opacity,
	}, log, m.deps.Metrics)

	surface := panel.NewHeadlessSurface()
	panels := panel.New(store, cache, surface, log, m.deps.Metrics)

	orchCfg := orchestrator.Config{
		MinLocations:    cfg.Analysis.MinLocations,
		MaxLocations:    cfg.Analysis.MaxLocations,
		RunTimeout:      cfg.Scoring.RequestTimeout,
		FallbackLatency: cfg.Analysis.FallbackLatency,
		TopResults:      cfg.Analysis.TopResults,
		HighScore:       cfg.Analysis.HighScore,
	}

	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Store:     store,
		Cache:     cache,
		Canvas:    canvas,
		Map:       layer,
		Heatmap:   heat,
		Panels:    panels,
		Surface:   surface,
		Point: orchestrator.NewPoint(store, cache, layer,
			m.deps.Boundary, orchCfg, log, m.deps.Metrics),
		Region: orchestrator.NewRegion(store, m.deps.Catalog, layer,
			m.deps.Boundary, heat, orchCfg, log, m.deps.Metrics),
	}

	// Removing a marker's selection closes the detail panels with it.
	layer.SetOnClearSelection(func() {
		panels.CloseAll(context.Background())
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.deps.Metrics != nil {
		m.deps.Metrics.ActiveSessions.Inc()
	}
	log.Info("session created")
	return s
}

// Get resolves a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("unknown session").WithDetail(id)
	}
	return s, nil
}

// Destroy tears a session down.  Unknown ids are a no-op.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.Point.Cancel()
	s.Region.Cancel()
	s.Panels.CloseAll(context.Background())
	s.Store.Close()

	if m.deps.Metrics != nil {
		m.deps.Metrics.ActiveSessions.Dec()
	}
	m.log.Info("session destroyed", logging.String("session_id", id))
}

// Count reports live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close destroys every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Destroy(id)
	}
}
