// Package cache keeps a short-lived hint of how many tickets a wallet bought
// for a raffle. It is never consulted for settlement.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-raffles/internal/logger"
)

type TicketCache struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewTicketCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *TicketCache {
	return &TicketCache{Client: client, TTL: ttl, Logger: log}
}

func key(raffle, owner string) string {
	return fmt.Sprintf("tickets_purchased:%s:%s", raffle, owner)
}

// Get returns the cached count and whether it was present.
func (c *TicketCache) Get(ctx context.Context, raffle, owner string) (int, bool, error) {
	val, err := c.Client.Get(ctx, key(raffle, owner)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		c.Logger.Warn("REDIS", fmt.Sprintf("dropping unreadable cache entry %s: %v", key(raffle, owner), err))
		c.Client.Del(ctx, key(raffle, owner))
		return 0, false, nil
	}
	return n, true, nil
}

// Set stores an authoritative count fetched from the ledger.
func (c *TicketCache) Set(ctx context.Context, raffle, owner string, count int) error {
	return c.Client.Set(ctx, key(raffle, owner), count, c.TTL).Err()
}

// addIfPresent bumps a count only while its entry is cached, so a bump never
// starts a fresh entry from a partial count.
var addIfPresent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
local n = redis.call("INCRBY", KEYS[1], ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return n
`)

// Add bumps the cached count after a purchase and restarts its TTL. A missing
// entry stays missing and is refilled from the ledger on the next read.
func (c *TicketCache) Add(ctx context.Context, raffle, owner string, n int) (int, bool, error) {
	k := key(raffle, owner)
	val, err := addIfPresent.Run(ctx, c.Client, []string{k}, n, c.TTL.Milliseconds()).Int64()
	if err != nil {
		return 0, false, err
	}
	if val < 0 {
		return 0, false, nil
	}
	return int(val), true, nil
}

func (c *TicketCache) Invalidate(ctx context.Context, raffle, owner string) error {
	return c.Client.Del(ctx, key(raffle, owner)).Err()
}
