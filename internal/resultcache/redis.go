package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// scanBatch is the COUNT hint used when deleting by prefix.
const scanBatch = 200

// Redis is the shared Cache implementation for multi-instance deployments.
// Entries are namespaced per session and per generation; invalidation bumps
// the generation and sweeps the old keys, so readers can never mix entries
// from different result sets.
type Redis struct {
	log      logging.Logger
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	source   Source
	registry *Registry
	metrics  *prometheus.Metrics // optional

	generation atomic.Int64
	group      singleflight.Group
}

// NewRedis constructs a Redis-backed cache.  prefix should uniquely identify
// the session (e.g. "lokaskor:details:<session-id>"); metrics may be nil.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration,
	source Source, registry *Registry, log logging.Logger, metrics *prometheus.Metrics) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Redis{
		log:      log.Named("resultcache.redis"),
		client:   client,
		prefix:   prefix,
		ttl:      ttl,
		source:   source,
		registry: registry,
		metrics:  metrics,
	}
}

func (r *Redis) key(category location.Category, locationID string) string {
	return fmt.Sprintf("%s:g%d:%s", r.prefix, r.generation.Load(), cacheKey(category, locationID))
}

// jitterTTL spreads expirations by up to 10 percent to avoid synchronized
// eviction storms.
func (r *Redis) jitterTTL() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(r.ttl) / 10))
	return r.ttl + jitter
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, category location.Category, locationID string) (any, error) {
	key := r.key(category, locationID)

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		r.recordOp("hit")
		return decodeDetail(category, raw)
	case err != redis.Nil:
		return nil, apperrors.Wrap(err, apperrors.CodeCache, "result cache read failed").
			WithDetail(key)
	}

	r.recordOp("miss")

	v, err, _ := r.group.Do(key, func() (any, error) {
		gen := r.generation.Load()

		res, err := findResult(r.source, locationID)
		if err != nil {
			return nil, err
		}
		value, err := r.registry.Extract(category, res)
		if err != nil {
			return nil, err
		}

		if r.generation.Load() != gen {
			return value, nil
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeSerialization, "result cache encode failed")
		}
		if err := r.client.Set(ctx, key, encoded, r.jitterTTL()).Err(); err != nil {
			// Serve the value regardless; the cache is an optimization.
			r.log.Warn("result cache write failed", logging.Err(err), logging.String("key", key))
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate implements Cache.  The generation bump makes new readers miss
// immediately; the sweep then reclaims the stale keys.
func (r *Redis) Invalidate(ctx context.Context) error {
	r.generation.Add(1)
	r.recordOp("invalidate")

	var cursor uint64
	pattern := r.prefix + ":*"
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeCache, "result cache sweep failed").
				WithDetail(pattern)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return apperrors.Wrap(err, apperrors.CodeCache, "result cache delete failed")
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (r *Redis) recordOp(result string) {
	if r.metrics != nil {
		r.metrics.CacheOps.WithLabelValues(result).Inc()
	}
}

// decodeDetail unmarshals a stored entry back into its category's concrete
// type, mirroring the shapes documented on Cache.
func decodeDetail(category location.Category, raw []byte) (any, error) {
	var (
		v   any
		err error
	)
	switch category {
	case location.CategoryHospital, location.CategoryImportantPlaces:
		var places []location.Place
		err = json.Unmarshal(raw, &places)
		v = places
	case location.CategoryDemographic:
		var d location.Demographics
		err = json.Unmarshal(raw, &d)
		v = d
	case location.CategoryCompetitor:
		var comps []location.Competitor
		err = json.Unmarshal(raw, &comps)
		v = comps
	default:
		return nil, apperrors.Validation("unsupported detail category").
			WithDetail(string(category))
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSerialization, "result cache decode failed")
	}
	return v, nil
}

var _ Cache = (*Redis)(nil)
