// Package cache provides the lookup cache shared by services: an in-memory
// backend for single instances and a Redis backend for shared deployments.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cache stores JSON-serialisable values under string keys.
// A miss is reported as (false, nil); errors mean the backend failed.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Key joins parts into a cache key
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// AgencyPrefix is the prefix of every key cached on behalf of an agency
func AgencyPrefix(agencyID uuid.UUID) string {
	return "agency:" + agencyID.String() + ":"
}

// AgencyKey builds a key scoped to an agency
func AgencyKey(agencyID uuid.UUID, parts ...string) string {
	return AgencyPrefix(agencyID) + Key(parts...)
}

// Remember returns the cached value for key, or calls load and caches its result.
// Backend failures degrade to calling load; they are never returned.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil {
		if ok, err := c.Get(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if c != nil {
		_ = c.Set(ctx, key, value, ttl)
	}
	return value, nil
}
