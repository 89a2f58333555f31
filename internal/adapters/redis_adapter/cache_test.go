package redis_a_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/erp-admin/internal/adapters/redis_adapter"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/test/helpers"
)

func newCache(t *testing.T) (*redis_a.Cache, *helpers.TestRedis) {
	t.Helper()
	r := helpers.SetupTestRedis(t)
	return redis_a.NewCache(r.Client, 5*time.Minute, helpers.TestLogger()), r
}

func TestCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)

	t.Run("stores_and_retrieves_string", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "test:string", "test value"))

		var got string
		require.NoError(t, cache.Get(ctx, "test:string", &got))
		assert.Equal(t, "test value", got)
	})

	t.Run("stores_and_retrieves_lead_stats", func(t *testing.T) {
		stats := domain.NewLeadStats()
		stats.Total = 3
		stats.ByStatus[domain.LeadStatusConverted] = 2
		stats.ConvertedValue = decimal.RequireFromString("1234.50")
		require.NoError(t, cache.Set(ctx, "test:stats", stats))

		var got domain.LeadStats
		require.NoError(t, cache.Get(ctx, "test:stats", &got))
		assert.Equal(t, int64(3), got.Total)
		assert.Equal(t, int64(2), got.ByStatus[domain.LeadStatusConverted])
		assert.True(t, stats.ConvertedValue.Equal(got.ConvertedValue))
	})

	t.Run("miss", func(t *testing.T) {
		var got string
		err := cache.Get(ctx, "test:absent", &got)
		assert.ErrorIs(t, err, redis_a.ErrCacheMiss)
	})
}

func TestCache_SetWithTTL(t *testing.T) {
	ctx := context.Background()
	cache, r := newCache(t)

	require.NoError(t, cache.SetWithTTL(ctx, "ttl:test", "value", 2*time.Second))

	ttl, err := cache.TTL(ctx, "ttl:test")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, ttl)

	r.Server.FastForward(time.Second)
	var got string
	require.NoError(t, cache.Get(ctx, "ttl:test", &got))
	assert.Equal(t, "value", got)

	r.Server.FastForward(2 * time.Second)
	assert.ErrorIs(t, cache.Get(ctx, "ttl:test", &got), redis_a.ErrCacheMiss)
}

func TestCache_DeleteAndExists(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)

	keys := []string{"del:1", "del:2", "del:3"}
	for _, key := range keys {
		require.NoError(t, cache.Set(ctx, key, "value"))
	}

	ok, err := cache.Exists(ctx, keys...)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, cache.Delete(ctx, keys[:2]...))

	ok, err = cache.Exists(ctx, keys...)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Delete(ctx))
}

func TestCache_DeletePattern(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)

	doomed := []string{"erp:roles:permissions:sales", "erp:roles:permissions:support"}
	kept := []string{"erp:leads:stats"}
	for _, key := range append(doomed, kept...) {
		require.NoError(t, cache.Set(ctx, key, "value"))
	}

	require.NoError(t, cache.DeletePattern(ctx, redis_a.BuildKey(redis_a.PrefixRoles, "permissions", "*")))

	for _, key := range doomed {
		var got string
		assert.ErrorIs(t, cache.Get(ctx, key, &got), redis_a.ErrCacheMiss, key)
	}
	var got string
	require.NoError(t, cache.Get(ctx, kept[0], &got))
}

func TestCache_GetOrSet(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return map[domain.LeadStatus]int64{domain.LeadStatusNew: 4}, nil
	}

	var first map[domain.LeadStatus]int64
	require.NoError(t, cache.GetOrSet(ctx, "getorset:test", &first, fetch, time.Minute))
	assert.Equal(t, int64(4), first[domain.LeadStatusNew])

	var second map[domain.LeadStatus]int64
	require.NoError(t, cache.GetOrSet(ctx, "getorset:test", &second, fetch, time.Minute))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrSet_FetchError(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)
	boom := errors.New("db down")

	var dest string
	err := cache.GetOrSet(ctx, "getorset:err", &dest, func() (interface{}, error) {
		return nil, boom
	}, time.Minute)
	assert.ErrorIs(t, err, boom)

	ok, err := cache.Exists(ctx, "getorset:err")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_GetOrSet_RedisDown(t *testing.T) {
	ctx := context.Background()
	cache, r := newCache(t)
	r.Server.Close()

	var dest string
	err := cache.GetOrSet(ctx, "any", &dest, func() (interface{}, error) {
		return "from source", nil
	}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "from source", dest)

	assert.Error(t, cache.Ping(ctx))
}

func TestCache_CountersAndLocks(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)

	val, err := cache.Increment(ctx, "counter:test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	val, err = cache.Increment(ctx, "counter:test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)

	ok, err := cache.SetNX(ctx, "lock:test", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SetNX(ctx, "lock:test", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	var got string
	require.NoError(t, cache.Get(ctx, "lock:test", &got))
	assert.Equal(t, "first", got)
}

func TestCache_BuildKey(t *testing.T) {
	tests := []struct {
		name     string
		prefix   redis_a.CacheKeyPrefix
		parts    []string
		expected string
	}{
		{"dashboard", redis_a.PrefixDashboard, []string{"summary"}, "erp:dashboard:summary"},
		{"nested", redis_a.PrefixRoles, []string{"permissions", "sales"}, "erp:roles:permissions:sales"},
		{"no_parts", redis_a.PrefixLeads, nil, "erp:leads"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, redis_a.BuildKey(tt.prefix, tt.parts...))
		})
	}
}
