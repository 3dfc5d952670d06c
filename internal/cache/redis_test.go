package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// These tests need a running Redis; set TEST_REDIS_ADDR to enable them.
func newRedis(t *testing.T) *cache.RedisCache {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c, err := cache.NewRedisCache(cache.RedisOptions{
		Addr:       addr,
		KeyPrefix:  "test:" + uuid.NewString() + ":",
		DefaultTTL: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := newRedis(t)

	require.NoError(t, c.Set(ctx, "k", sample{Name: "a", Count: 1}, time.Minute))

	var got sample
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", got.Name)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := newRedis(t)
	agency := uuid.New()

	for i := 0; i < 150; i++ {
		require.NoError(t, c.Set(ctx, cache.AgencyKey(agency, "item", uuid.NewString()), i, time.Minute))
	}
	require.NoError(t, c.Set(ctx, "other", 1, time.Minute))

	removed, err := c.DeletePrefix(ctx, cache.AgencyPrefix(agency))
	require.NoError(t, err)
	assert.Equal(t, 150, removed)

	var v int
	ok, _ := c.Get(ctx, "other", &v)
	assert.True(t, ok)
}
