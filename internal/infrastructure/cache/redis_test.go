package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pricelens/backend/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return s, rdb
}

func TestRedisCache_SetGet(t *testing.T) {
	s, rdb := newMiniRedis(t)
	c := NewRedisCache(rdb, "")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "offers:naver:콜라", []byte(`[{"price":1500}]`), time.Minute))

	got, err := c.Get(ctx, "offers:naver:콜라")
	require.NoError(t, err)
	assert.Equal(t, `[{"price":1500}]`, string(got))

	assert.True(t, s.Exists(DefaultKeyPrefix+"offers:naver:콜라"))
	assert.Equal(t, time.Minute, s.TTL(DefaultKeyPrefix+"offers:naver:콜라"))
}

func TestRedisCache_Miss(t *testing.T) {
	_, rdb := newMiniRedis(t)
	c := NewRedisCache(rdb, "test:")

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisCache_Expiry(t *testing.T) {
	s, rdb := newMiniRedis(t)
	c := NewRedisCache(rdb, "test:")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	s.FastForward(2 * time.Second)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisCache_ZeroTTLSkipped(t *testing.T) {
	s, rdb := newMiniRedis(t)
	c := NewRedisCache(rdb, "test:")

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	assert.False(t, s.Exists("test:k"))
}

func TestRedisCache_DeleteExists(t *testing.T) {
	_, rdb := newMiniRedis(t)
	c := NewRedisCache(rdb, "test:")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Delete(ctx, "k"))

	exists, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisCache_Unavailable(t *testing.T) {
	s, rdb := newMiniRedis(t)
	c := NewRedisCache(rdb, "test:")
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	s.Close()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	err = c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	assert.Error(t, c.Ping(ctx))
}
