package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// assetsCacheTTL absorbs duplicate polling load on the availability
// projection; invalidated eagerly whenever the broadcaster fires
// state_changed, so staleness is bounded by whichever comes first.
const assetsCacheTTL = 2 * time.Second

// CacheRepository wraps a Redis client. A nil client degrades every
// operation to a cache miss / no-op, matching the service's tolerance
// for running without Redis in development.
type CacheRepository struct {
	client *redis.Client
}

func NewCacheRepository(client *redis.Client) *CacheRepository {
	return &CacheRepository{client: client}
}

func assetsCacheKey(callerUserType string) string {
	return "courtkeeper:assets:" + callerUserType
}

// GetAssets decodes the cached availability projection for callerUserType
// into dest and reports true, or reports false on a miss, a decode
// failure, or when Redis is unavailable.
func (c *CacheRepository) GetAssets(ctx context.Context, callerUserType string, dest interface{}) bool {
	if c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, assetsCacheKey(callerUserType)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false
	}
	return true
}

// SetAssets caches the availability projection for callerUserType.
func (c *CacheRepository) SetAssets(ctx context.Context, callerUserType string, value interface{}) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(ctx, assetsCacheKey(callerUserType), raw, assetsCacheTTL)
}

// InvalidateAssets drops the cached projections for the "individual" and
// "club" caller user types; a projection cached under any other user type
// string only expires by its TTL. Called whenever the reconciler or
// booking service fires state_changed.
func (c *CacheRepository) InvalidateAssets(ctx context.Context) {
	if c.client == nil {
		return
	}
	c.client.Del(ctx, assetsCacheKey(string("individual")), assetsCacheKey(string("club")))
}
