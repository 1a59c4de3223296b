package config

// Redis backs the scan-endpoint rate limiter and the stats cache.  Both
// are optional: when no server is reachable the client is nil and
// callers run without limiting or caching.

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects using REDIS_ADDR (host:port, default
// localhost:6379) and the optional REDIS_PASSWORD.  Returns nil when the
// server does not answer a ping within two seconds.
func NewRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[Redis] %s unreachable, caching and rate limiting disabled: %v", addr, err)
		return nil
	}
	return client
}
