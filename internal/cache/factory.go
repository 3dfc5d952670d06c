package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options selects and configures a cache backend
type Options struct {
	Backend         string
	TTL             time.Duration
	CleanupInterval time.Duration
	Redis           RedisOptions
}

// New builds the cache selected by opts.Backend. When Redis is selected but
// unreachable, it falls back to the in-memory backend and logs a warning.
func New(opts Options, logger *zap.Logger) (Cache, error) {
	switch opts.Backend {
	case BackendRedis:
		redisOpts := opts.Redis
		if redisOpts.DefaultTTL == 0 {
			redisOpts.DefaultTTL = opts.TTL
		}
		c, err := NewRedisCache(redisOpts, logger)
		if err == nil {
			logger.Info("Using Redis cache", zap.String("addr", redisOpts.Addr))
			return c, nil
		}
		logger.Warn("Redis unavailable, falling back to in-memory cache",
			zap.String("addr", redisOpts.Addr),
			zap.Error(err),
		)
		return newMemoryFromOptions(opts, logger), nil

	case BackendMemory, "":
		logger.Info("Using in-memory cache", zap.Duration("ttl", opts.TTL))
		return newMemoryFromOptions(opts, logger), nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

func newMemoryFromOptions(opts Options, logger *zap.Logger) *MemoryCache {
	memOpts := []MemoryOption{WithLogger(logger)}
	if opts.TTL > 0 {
		memOpts = append(memOpts, WithDefaultTTL(opts.TTL))
	}
	if opts.CleanupInterval > 0 {
		memOpts = append(memOpts, WithCleanupInterval(opts.CleanupInterval))
	}
	return NewMemoryCache(memOpts...)
}
