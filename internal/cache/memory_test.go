package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/travel-crm-api/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newMemory(t *testing.T) *cache.MemoryCache {
	c := cache.NewMemoryCache(cache.WithCleanupInterval(10 * time.Millisecond))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)

	require.NoError(t, c.Set(ctx, "k", sample{Name: "a", Count: 2}, time.Minute))

	var got sample
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sample{Name: "a", Count: 2}, got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(0), misses)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := newMemory(t)

	var got sample
	ok, err := c.Get(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	_, misses := c.Stats()
	assert.Equal(t, int64(1), misses)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)

	require.NoError(t, c.Set(ctx, "k", sample{Name: "a"}, 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	var got sample
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_CleanupRemovesExpired(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)

	require.NoError(t, c.Set(ctx, "a", 1, 5*time.Millisecond))
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))

	assert.Eventually(t, func() bool { return c.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestMemoryCache_ValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)

	original := &sample{Name: "a"}
	require.NoError(t, c.Set(ctx, "k", original, time.Minute))
	original.Name = "changed"

	var got sample
	_, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
}

func TestMemoryCache_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)
	agencyA := uuid.New()
	agencyB := uuid.New()

	require.NoError(t, c.Set(ctx, cache.AgencyKey(agencyA, "dashboard"), 1, time.Minute))
	require.NoError(t, c.Set(ctx, cache.AgencyKey(agencyA, "users", "x"), 2, time.Minute))
	require.NoError(t, c.Set(ctx, cache.AgencyKey(agencyB, "dashboard"), 3, time.Minute))

	removed, err := c.DeletePrefix(ctx, cache.AgencyPrefix(agencyA))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	var v int
	ok, _ := c.Get(ctx, cache.AgencyKey(agencyB, "dashboard"), &v)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestMemoryCache_DeleteAndCloseTwice(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k", 1, 0))
	require.NoError(t, c.Delete(ctx, "k", "other"))

	var v int
	ok, _ := c.Get(ctx, "k", &v)
	assert.False(t, ok)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)
	calls := 0
	load := func(ctx context.Context) (sample, error) {
		calls++
		return sample{Name: "loaded", Count: calls}, nil
	}

	first, err := cache.Remember(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)
	second, err := cache.Remember(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestRemember_LoadErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := newMemory(t)
	boom := errors.New("boom")

	_, err := cache.Remember(ctx, c, "k", time.Minute, func(ctx context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	var v int
	ok, _ := c.Get(ctx, "k", &v)
	assert.False(t, ok)
}

func TestRemember_NilCache(t *testing.T) {
	v, err := cache.Remember(context.Background(), nil, "k", time.Minute, func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestNew_FallsBackToMemory(t *testing.T) {
	c, err := cache.New(cache.Options{
		Backend: cache.BackendRedis,
		TTL:     5 * time.Minute,
		Redis:   cache.RedisOptions{Addr: "127.0.0.1:1"},
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, isMemory := c.(*cache.MemoryCache)
	assert.True(t, isMemory)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := cache.New(cache.Options{Backend: "memcached"}, zap.NewNop())
	assert.Error(t, err)
}
