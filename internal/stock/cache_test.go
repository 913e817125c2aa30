package stock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *AvailabilityCache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewAvailabilityCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "SKU-TEA")
	require.False(t, ok)

	cache.Set(ctx, "SKU-TEA", 12.5)
	value, ok := cache.Get(ctx, "SKU-TEA")
	require.True(t, ok)
	require.Equal(t, 12.5, value)

	cache.Invalidate(ctx, "SKU-TEA")
	_, ok = cache.Get(ctx, "SKU-TEA")
	require.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *AvailabilityCache
	ctx := context.Background()

	_, ok := cache.Get(ctx, "SKU-TEA")
	require.False(t, ok)
	cache.Set(ctx, "SKU-TEA", 1)
	cache.Invalidate(ctx, "SKU-TEA")
}

func TestServiceInvalidatesCacheOnPosting(t *testing.T) {
	cache := newTestCache(t)
	repo := newMemoryStockRepo()
	svc := NewService(repo, cache, nil)
	ctx := context.Background()

	require.NoError(t, svc.PostReceipts(ctx, PostingInput{RefID: "GRN-1", Items: []MovementItem{{SKU: "SKU-TEA", Qty: 9}}}))

	// first read warms the cache
	available, err := svc.Available(ctx, "SKU-TEA")
	require.NoError(t, err)
	require.Equal(t, 9.0, available)
	cached, ok := cache.Get(ctx, "SKU-TEA")
	require.True(t, ok)
	require.Equal(t, 9.0, cached)

	// a consume must drop the stale entry so the next read sees the new value
	require.NoError(t, svc.Consume(ctx, PostingInput{RefID: "DSP-1", Items: []MovementItem{{SKU: "SKU-TEA", Qty: 4}}}))
	_, ok = cache.Get(ctx, "SKU-TEA")
	require.False(t, ok)

	available, err = svc.Available(ctx, "SKU-TEA")
	require.NoError(t, err)
	require.Equal(t, 5.0, available)
}
