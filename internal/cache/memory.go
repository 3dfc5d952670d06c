package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCleanupInterval = 30 * time.Second
	defaultTTL             = 5 * time.Minute
)

// MemoryCache implements Cache in process memory.
// Values are stored JSON-encoded so callers never share mutable state with the cache.
type MemoryCache struct {
	entries         sync.Map // map[string]*cacheEntry
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	logger          *zap.Logger
	stopCh          chan struct{}
	stopped         int32

	hits   int64
	misses int64
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// MemoryOption is a functional option for configuring the memory cache
type MemoryOption func(*MemoryCache)

// WithDefaultTTL sets the TTL used when Set is called with ttl 0
func WithDefaultTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		c.defaultTTL = ttl
	}
}

// WithCleanupInterval sets how often expired entries are purged
func WithCleanupInterval(interval time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		c.cleanupInterval = interval
	}
}

// WithLogger sets the logger for the cache
func WithLogger(logger *zap.Logger) MemoryOption {
	return func(c *MemoryCache) {
		c.logger = logger
	}
}

// NewMemoryCache creates a new in-memory cache and starts its cleanup goroutine
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		defaultTTL:      defaultTTL,
		cleanupInterval: defaultCleanupInterval,
		logger:          zap.NewNop(),
		stopCh:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.cleanupExpired()

	return c
}

// Get decodes the cached value for key into dest
func (c *MemoryCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if value, ok := c.entries.Load(key); ok {
		entry := value.(*cacheEntry)
		if !entry.isExpired() {
			if err := json.Unmarshal(entry.data, dest); err != nil {
				c.entries.Delete(key)
				return false, fmt.Errorf("failed to decode cached value for %q: %w", key, err)
			}
			atomic.AddInt64(&c.hits, 1)
			return true, nil
		}
		c.entries.Delete(key)
	}

	atomic.AddInt64(&c.misses, 1)
	return false, nil
}

// Set stores value under key
func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %q: %w", key, err)
	}

	c.entries.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(ttl)})
	return nil
}

// Delete removes keys from the cache
func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		c.entries.Delete(key)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix and returns how many were removed
func (c *MemoryCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	removed := 0
	c.entries.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed, nil
}

// Ping always succeeds for the in-memory backend
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns hit and miss counters
func (c *MemoryCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Count returns the number of stored entries, including expired ones not yet purged
func (c *MemoryCache) Count() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.logger.Error("Panic in cache cleanup", zap.Any("panic", r))
					}
				}()
				c.doCleanup()
			}()
		}
	}
}

func (c *MemoryCache) doCleanup() {
	removed := 0
	c.entries.Range(func(key, value any) bool {
		if value.(*cacheEntry).isExpired() {
			c.entries.Delete(key)
			removed++
		}
		return true
	})

	if removed > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int("removed", removed))
	}
}

var _ Cache = (*MemoryCache)(nil)
