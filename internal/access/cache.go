package access

import (
	"context"
	"time"

	"github.com/angelmondragon/materiel-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/materiel-backend/pkg/redis"
)

// CacheStore is the Redis surface CachedPolicy needs.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	AccessKey(userID int64) string
}

const (
	cachedAllow = "1"
	cachedDeny  = "0"
)

// CachedPolicy memoises another policy's answers in Redis. Cache failures
// fall through to the wrapped policy.
type CachedPolicy struct {
	next  Policy
	store CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewCachedPolicy(next Policy, store CacheStore, ttl time.Duration, logg *logger.Logger) *CachedPolicy {
	return &CachedPolicy{next: next, store: store, ttl: ttl, logg: logg}
}

func (c *CachedPolicy) HasAccess(ctx context.Context, userID int64) (bool, error) {
	key := c.store.AccessKey(userID)
	cached, err := c.store.Get(ctx, key)
	switch {
	case err == nil && cached == cachedAllow:
		return true, nil
	case err == nil && cached == cachedDeny:
		return false, nil
	case err != nil && !pkgredis.IsNil(err):
		c.warn(ctx, "access.cache.read_failed", err)
	}

	ok, err := c.next.HasAccess(ctx, userID)
	if err != nil {
		return false, err
	}

	value := cachedDeny
	if ok {
		value = cachedAllow
	}
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		c.warn(ctx, "access.cache.write_failed", err)
	}
	return ok, nil
}

// Invalidate drops the cached answer for userID.
func (c *CachedPolicy) Invalidate(ctx context.Context, userID int64) error {
	return c.store.Del(ctx, c.store.AccessKey(userID))
}

func (c *CachedPolicy) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithField(ctx, "error", err.Error())
	c.logg.Warn(ctx, msg)
}
