package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffles/internal/logger"
)

func setupTestCache(t *testing.T) (*TicketCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewTicketCache(client, 60*time.Second, logger.NewDiscard()), mr
}

func TestTicketCacheSetGet(t *testing.T) {
	ctx := context.Background()
	c, _ := setupTestCache(t)

	// Test case: miss
	_, ok, err := c.Get(ctx, "raffle", "owner")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "raffle", "owner", 4))
	n, ok, err := c.Get(ctx, "raffle", "owner")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, n)
}

func TestTicketCacheExpires(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestCache(t)

	require.NoError(t, c.Set(ctx, "raffle", "owner", 3))
	mr.FastForward(30 * time.Second)

	// Bumping restarts the TTL
	n, ok, err := c.Add(ctx, "raffle", "owner", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	mr.FastForward(45 * time.Second)
	n, ok, err = c.Get(ctx, "raffle", "owner")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	mr.FastForward(61 * time.Second)
	_, ok, err = c.Get(ctx, "raffle", "owner")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTicketCacheDropsGarbage(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestCache(t)

	require.NoError(t, mr.Set("tickets_purchased:raffle:owner", "not-a-number"))
	_, ok, err := c.Get(ctx, "raffle", "owner")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("tickets_purchased:raffle:owner"))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(mr.Addr(), logger.NewDiscard())
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	_, err = Connect(mr.Addr(), logger.NewDiscard())
	assert.Error(t, err)
}

func TestTicketCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := setupTestCache(t)

	require.NoError(t, c.Set(ctx, "raffle", "owner", 3))
	require.NoError(t, c.Invalidate(ctx, "raffle", "owner"))

	_, ok, err := c.Get(ctx, "raffle", "owner")
	require.NoError(t, err)
	assert.False(t, ok)

	// Test case: invalidating a missing key is fine
	assert.NoError(t, c.Invalidate(ctx, "raffle", "nobody"))
}

func TestTicketCacheAddSkipsMissingEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestCache(t)

	// Test case: nothing cached yet
	_, ok, err := c.Add(ctx, "raffle", "owner", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("tickets_purchased:raffle:owner"))

	// Test case: entry expired before the next purchase
	require.NoError(t, c.Set(ctx, "raffle", "owner", 3))
	mr.FastForward(61 * time.Second)

	_, ok, err = c.Add(ctx, "raffle", "owner", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Get(ctx, "raffle", "owner")
	require.NoError(t, err)
	assert.False(t, ok)
}
