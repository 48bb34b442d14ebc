package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheResolvePopulatesAndReuses(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (PermissionSet, error) {
		calls++
		return NewPermissionSet("gis.*", "map.layers.view"), nil
	}

	set, err := cache.Resolve(ctx, 42, loader)
	require.NoError(t, err)
	assert.True(t, set.Has("gis.distance.use"))
	assert.Equal(t, 1, calls)

	set, err = cache.Resolve(ctx, 42, loader)
	require.NoError(t, err)
	assert.True(t, set.Has("map.layers.view"))
	assert.Equal(t, 1, calls, "second resolve must hit the cache")
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (PermissionSet, error) {
		calls++
		return NewPermissionSet("gis.*"), nil
	}

	_, err := cache.Resolve(ctx, 42, loader)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	require.NoError(t, cache.Bump(ctx))

	_, err = cache.Resolve(ctx, 42, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "bump must orphan the cached entry")
}

func TestCacheEntriesArePerPrincipal(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Resolve(ctx, 1, func(context.Context) (PermissionSet, error) {
		return NewPermissionSet("gis.*"), nil
	})
	require.NoError(t, err)

	set, err := cache.Resolve(ctx, 2, func(context.Context) (PermissionSet, error) {
		return NewPermissionSet("map.*"), nil
	})
	require.NoError(t, err)
	assert.False(t, set.Has("gis.distance.use"))
	assert.True(t, set.Has("map.layers.view"))
}

func TestCacheFallsThroughWhenRedisGone(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	mr.Close()

	set, err := cache.Resolve(ctx, 42, func(context.Context) (PermissionSet, error) {
		return NewPermissionSet("gis.*"), nil
	})
	require.NoError(t, err, "cache trouble must not block decisions")
	assert.True(t, set.Has("gis.distance.use"))
}

func TestNilCacheIsPassThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	set, err := cache.Resolve(ctx, 42, func(context.Context) (PermissionSet, error) {
		return NewPermissionSet("gis.*"), nil
	})
	require.NoError(t, err)
	assert.True(t, set.Has("gis.distance.use"))

	require.NoError(t, cache.Bump(ctx))
}
