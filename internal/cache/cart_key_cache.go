package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// CartKeyCache maps anonymous cart cookie keys to shopping session ids.
// Keys expire after the cookie lifetime and are refreshed on each lookup.
type CartKeyCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewCartKeyCache creates a new CartKeyCache.
func NewCartKeyCache(redis *RedisClient, ttl time.Duration) *CartKeyCache {
	return &CartKeyCache{redis: redis, ttl: ttl}
}

func (c *CartKeyCache) key(cartKey string) string {
	return fmt.Sprintf("cart:anon:%s", cartKey)
}

// Lookup returns the session id bound to cartKey.
func (c *CartKeyCache) Lookup(ctx context.Context, cartKey string) (int, bool, error) {
	raw, err := c.redis.Get(ctx, c.key(cartKey))
	if errors.Is(err, ErrMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cart key %s: %w", cartKey, err)
	}
	_ = c.redis.Expire(ctx, c.key(cartKey), c.ttl)
	return id, true, nil
}

// Remember binds cartKey to a session id.
func (c *CartKeyCache) Remember(ctx context.Context, cartKey string, sessionID int) error {
	return c.redis.Set(ctx, c.key(cartKey), strconv.Itoa(sessionID), c.ttl)
}

// Forget removes the binding, used once an anonymous cart is migrated.
func (c *CartKeyCache) Forget(ctx context.Context, cartKey string) error {
	return c.redis.Delete(ctx, c.key(cartKey))
}
