package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const latestKey = "viatrack:latest_fix"

type Config struct {
	RedisURL string
	TTL      time.Duration
}

// LatestFix caches the most recent broadcast message in Redis so the query
// gateway can serve the hot latest-fix read without touching the store. It
// implements fanout.Sink: every broadcast refreshes the cached entry.
// Cache failures are surfaced to the caller, who degrades to a store read;
// they never affect ingestion.
type LatestFix struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLatestFix(cfg Config) (*LatestFix, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LatestFix{client: client, ttl: ttl}, nil
}

// Send stores the broadcast message as the latest fix.
func (c *LatestFix) Send(msg []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Set(ctx, latestKey, msg, c.ttl).Err()
}

// Get returns the cached latest-fix message, ok=false on miss.
func (c *LatestFix) Get(ctx context.Context) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, latestKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Close drops the cached entry before closing the client. The hub closes a
// sink when a Send fails, and a detached cache must not keep serving its last
// message while newer fixes arrive; without the entry the gateway falls back
// to store reads.
func (c *LatestFix) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Del(ctx, latestKey).Err(); err != nil && err != redis.Nil {
		log.Printf("cache: drop latest fix entry: %v", err)
	}
	return c.client.Close()
}
