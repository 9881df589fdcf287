package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assess/internal/config"
)

// sessionCacheGrace keeps the deadline around a while after it passes so
// clients polling right at expiry still hit the cache.
const sessionCacheGrace = time.Hour

// SessionCache caches session deadlines in Redis.
type SessionCache struct {
	rdb *redis.Client
}

// NewSessionCache creates a new SessionCache.
func NewSessionCache(rdb *redis.Client) *SessionCache {
	return &SessionCache{rdb: rdb}
}

// GetExpiresAt returns the cached deadline. ok is false on a miss.
func (c *SessionCache) GetExpiresAt(ctx context.Context, token string) (time.Time, bool, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.SessionExpiresAtKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Corrupt entry, treat as a miss so the caller rewrites it.
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

// SetExpiresAt stores the deadline until shortly after it passes.
func (c *SessionCache) SetExpiresAt(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt) + sessionCacheGrace
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return c.rdb.Set(ctx, config.CacheKey.SessionExpiresAtKey(token), expiresAt.UnixMilli(), ttl).Err()
}
