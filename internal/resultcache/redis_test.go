package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokaskor/lokaskor/internal/domain/location"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
)

func newRedisCache(t *testing.T, src Source) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewRedis(client, "lokaskor:details:test-session", time.Minute,
		src, NewRegistry(), logging.NewNopLogger(), nil)
	return cache, mr
}

func TestRedisGet_RoundTripPerCategory(t *testing.T) {
	res := location.AnalysisResult{
		LocationID: "a",
		Details: location.Details{
			Hospitals:    []location.Place{{Name: "City Hospital", DistanceMeters: 300}},
			Demographics: location.Demographics{Population: 42000, AvgIncome: 18000, AgeProfile: "young"},
			Competitors:  []location.Competitor{{Name: "Rival", Distance: "250m"}},
		},
	}
	cache, _ := newRedisCache(t, fixedSource(res))
	ctx := context.Background()

	hosp, err := cache.Get(ctx, location.CategoryHospital, "a")
	require.NoError(t, err)
	assert.Equal(t, "City Hospital", hosp.([]location.Place)[0].Name)

	// Second read decodes from redis and matches the extracted shape.
	again, err := cache.Get(ctx, location.CategoryHospital, "a")
	require.NoError(t, err)
	assert.Equal(t, hosp, again)

	demo, err := cache.Get(ctx, location.CategoryDemographic, "a")
	require.NoError(t, err)
	assert.Equal(t, 42000, demo.(location.Demographics).Population)

	comps, err := cache.Get(ctx, location.CategoryCompetitor, "a")
	require.NoError(t, err)
	assert.Equal(t, "Rival", comps.([]location.Competitor)[0].Name)
}

func TestRedisGet_ExtractsOnceWhileCached(t *testing.T) {
	calls := 0
	cache, _ := newRedisCache(t, fixedSource(sampleResult("a")))
	cache.registry.Register(location.CategoryHospital, func(location.AnalysisResult) (any, error) {
		calls++
		return []location.Place{{Name: "X"}}, nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := cache.Get(ctx, location.CategoryHospital, "a")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

func TestRedisInvalidate_SweepsSessionKeys(t *testing.T) {
	cache, mr := newRedisCache(t, fixedSource(sampleResult("a")))
	ctx := context.Background()

	_, err := cache.Get(ctx, location.CategoryHospital, "a")
	require.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())

	require.NoError(t, cache.Invalidate(ctx))
	assert.Empty(t, mr.Keys())

	// Fresh extraction under the new generation.
	_, err = cache.Get(ctx, location.CategoryHospital, "a")
	require.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())
}

func TestRedisInvalidate_LeavesForeignKeys(t *testing.T) {
	cache, mr := newRedisCache(t, fixedSource(sampleResult("a")))
	ctx := context.Background()

	require.NoError(t, mr.Set("other:app:key", "keep me"))
	_, err := cache.Get(ctx, location.CategoryHospital, "a")
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx))

	v, err := mr.Get("other:app:key")
	require.NoError(t, err)
	assert.Equal(t, "keep me", v)
}
