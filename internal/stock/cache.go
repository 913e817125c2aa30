package stock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache keeps per-SKU availability in redis. Entries are
// invalidated on every ledger commit; a miss falls through to the balance row.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache constructs the cache. A nil client disables caching.
func NewAvailabilityCache(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(sku string) string {
	return fmt.Sprintf("stock:avail:%s", sku)
}

// Get returns the cached availability and whether it was present.
func (c *AvailabilityCache) Get(ctx context.Context, sku string) (float64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}
	raw, err := c.client.Get(ctx, availabilityKey(sku)).Result()
	if err != nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Set stores the availability for a SKU.
func (c *AvailabilityCache) Set(ctx context.Context, sku string, available float64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, availabilityKey(sku), strconv.FormatFloat(available, 'f', -1, 64), c.ttl).Err()
}

// Invalidate drops the cached entries for the given SKUs.
func (c *AvailabilityCache) Invalidate(ctx context.Context, skus ...string) {
	if c == nil || c.client == nil || len(skus) == 0 {
		return
	}
	keys := make([]string, 0, len(skus))
	for _, sku := range skus {
		keys = append(keys, availabilityKey(sku))
	}
	_ = c.client.Del(ctx, keys...).Err()
}
