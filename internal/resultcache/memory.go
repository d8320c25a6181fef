package resultcache

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
)

// Memory is the default, in-process Cache implementation.
type Memory struct {
	log      logging.Logger
	source   Source
	registry *Registry
	metrics  *prometheus.Metrics // optional

	mu         sync.RWMutex
	entries    map[string]any
	generation atomic.Int64
	group      singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory constructs an in-memory cache.  metrics may be nil.
func NewMemory(source Source, registry *Registry, log logging.Logger, metrics *prometheus.Metrics) *Memory {
	return &Memory{
		log:      log.Named("resultcache"),
		source:   source,
		registry: registry,
		metrics:  metrics,
		entries:  make(map[string]any),
	}
}

// Get implements Cache.  The generation captured before extraction guards
// against storing a value produced under an already-invalidated result set.
func (m *Memory) Get(ctx context.Context, category location.Category, locationID string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cacheKey(category, locationID)

	m.mu.RLock()
	if v, ok := m.entries[key]; ok {
		m.mu.RUnlock()
		m.hits.Add(1)
		m.recordOp("hit")
		return v, nil
	}
	m.mu.RUnlock()

	m.misses.Add(1)
	m.recordOp("miss")

	v, err, _ := m.group.Do(key, func() (any, error) {
		gen := m.generation.Load()

		res, err := findResult(m.source, locationID)
		if err != nil {
			return nil, err
		}
		value, err := m.registry.Extract(category, res)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.generation.Load() == gen {
			m.entries[key] = value
		}
		m.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate implements Cache: wholesale, never per-entry.
func (m *Memory) Invalidate(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]any)
	m.generation.Add(1)
	m.mu.Unlock()

	m.recordOp("invalidate")
	m.log.Debug("result cache invalidated")
	return nil
}

// Len reports the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns hit and miss counts since construction.
func (m *Memory) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}

func (m *Memory) recordOp(result string) {
	if m.metrics != nil {
		m.metrics.CacheOps.WithLabelValues(result).Inc()
	}
}

var _ Cache = (*Memory)(nil)
