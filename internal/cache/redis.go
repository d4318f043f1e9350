package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-raffles/internal/logger"
)

// Connect opens a Redis client for the ticket cache and checks the connection.
func Connect(addr string, log *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password
		DB:       0,  // use default DB
		PoolSize: 10, // connection pool size
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Error("REDIS", fmt.Sprintf("failed to connect to Redis at %s: %v", addr, err))
		redisClient.Close()
		return nil, err
	}

	log.Info("REDIS", fmt.Sprintf("connected to Redis at %s for ticket caching", addr))
	return redisClient, nil
}
