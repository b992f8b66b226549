package cache

import (
	"context"
	"testing"
	"time"

	"marketplace/internal/apperror"
	"marketplace/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	c := New(ctx, config.RedisConfig{Enabled: false}, zap.NewNop())
	require.False(t, c.Enabled())

	require.NoError(t, c.SetJSON(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var out map[string]int
	found, err := c.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, out)

	require.NoError(t, c.DeletePrefix(ctx, "k"))
	require.NoError(t, c.Close())
}

func TestLockWithoutRedisProceeds(t *testing.T) {
	c := NewWithClient(nil, zap.NewNop())

	release, err := c.Lock(context.Background(), "inventory:v:p", time.Second, time.Second)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	require.False(t, c.Enabled())

	release, err := c.Lock(context.Background(), "k", time.Second, time.Second)
	require.NoError(t, err)
	release()
}

func newRedisCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewWithClient(rdb, zap.NewNop()), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	require.True(t, c.Enabled())

	require.NoError(t, c.SetJSON(ctx, "views:1:a", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, c.SetJSON(ctx, "views:1:b", map[string]int{"b": 2}, time.Minute))
	require.NoError(t, c.SetJSON(ctx, "views:10:a", map[string]int{"c": 3}, time.Minute))

	var out map[string]int
	found, err := c.GetJSON(ctx, "views:1:a", &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, map[string]int{"a": 1}, out)

	require.NoError(t, c.DeletePrefix(ctx, "views:1:"))
	require.False(t, mr.Exists("views:1:a"))
	require.False(t, mr.Exists("views:1:b"))
	require.True(t, mr.Exists("views:10:a"))
}

func TestCounter(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)

	n, err := c.Counter(ctx, "gen")
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = c.Incr(ctx, "gen")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = c.Counter(ctx, "gen")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	disabled := NewWithClient(nil, zap.NewNop())
	n, err = disabled.Incr(ctx, "gen")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)

	release, err := c.Lock(ctx, "lock:k", time.Second, 100*time.Millisecond)
	require.NoError(t, err)

	_, err = c.Lock(ctx, "lock:k", time.Second, 100*time.Millisecond)
	require.ErrorIs(t, err, apperror.ErrConflict)

	release()
	again, err := c.Lock(ctx, "lock:k", time.Second, 100*time.Millisecond)
	require.NoError(t, err)
	again()
}
