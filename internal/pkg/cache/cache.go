package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/env"
)

var client *redis.Client

// SetupCache connects to Redis when CACHE_HOST is configured. The relay works
// without Redis; delivery dedupe and the grant retry queue then fall back to
// in-process behaviour.
func SetupCache() *redis.Client {
	host := strings.TrimSpace(env.GetEnv("CACHE_HOST", ""))
	if host == "" {
		log.Info("[Cache] CACHE_HOST not set, running without Redis")
		client = nil
		return nil
	}
	port := env.GetEnv("CACHE_PORT", "6379")

	c := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	pong, err := c.Ping(ctx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to Redis at %s: %v", c.Options().Addr, err)
		_ = c.Close()
		client = nil
		return nil
	}
	log.Infof("[Cache] Successfully connected to Redis: %s", pong)

	client = c
	return client
}

// GetClient returns the Redis client instance, or nil when Redis is not in use.
func GetClient() *redis.Client {
	return client
}

// IsConfigured reports whether a Redis connection is available.
func IsConfigured() bool {
	return client != nil
}

// Close releases the connection pool.
func Close() error {
	if client == nil {
		return nil
	}
	err := client.Close()
	client = nil
	return err
}
