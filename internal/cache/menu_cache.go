package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GTDGit/menu_api/internal/models"
)

const menuKey = "menu:ranked"

// menuSnapshot is the cached ranked menu.
type menuSnapshot struct {
	Items    []models.MenuItem `json:"items"`
	CachedAt time.Time         `json:"cachedAt"`
}

// MenuCache stores the latest ranked menu so reads skip the signal queries.
// Every ranking recompute overwrites it.
type MenuCache struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewMenuCache creates a new MenuCache.
func NewMenuCache(redis *RedisClient, ttl time.Duration) *MenuCache {
	return &MenuCache{redis: redis, ttl: ttl}
}

// SetMenu replaces the cached menu.
func (c *MenuCache) SetMenu(ctx context.Context, items []models.MenuItem) error {
	data, err := json.Marshal(menuSnapshot{Items: items, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal menu: %w", err)
	}
	return c.redis.Set(ctx, menuKey, string(data), c.ttl)
}

// GetMenu returns the cached menu or ErrMiss.
func (c *MenuCache) GetMenu(ctx context.Context) ([]models.MenuItem, error) {
	raw, err := c.redis.Get(ctx, menuKey)
	if err != nil {
		return nil, err
	}

	var snap menuSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal menu: %w", err)
	}
	return snap.Items, nil
}
