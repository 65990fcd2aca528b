// Package cache provides a Redis-backed read-through cache for price history.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"papertrade/internal/history"
)

// HistoryCache stores recent-history responses in one Redis hash per asset,
// keyed by the requested limit, so a single DEL invalidates every cached
// window of that asset.
type HistoryCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewHistoryCache creates a cache whose entries expire after ttl.
func NewHistoryCache(client *redis.Client, ttl time.Duration) *HistoryCache {
	return &HistoryCache{client: client, ttl: ttl, prefix: "papertrade:history:"}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (c *HistoryCache) key(assetID string) string {
	return c.prefix + assetID
}

func field(limit int) string {
	if limit <= 0 {
		return "all"
	}
	return strconv.Itoa(limit)
}

// Get returns the cached samples and whether they were present.
func (c *HistoryCache) Get(ctx context.Context, assetID string, limit int) ([]history.Sample, bool, error) {
	data, err := c.client.HGet(ctx, c.key(assetID), field(limit)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	samples, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return samples, true, nil
}

// Set stores samples and refreshes the hash's expiry.
func (c *HistoryCache) Set(ctx context.Context, assetID string, limit int, samples []history.Sample) error {
	data, err := encode(samples)
	if err != nil {
		return err
	}
	key := c.key(assetID)
	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, field(limit), data)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

// Invalidate drops every cached window of an asset.
func (c *HistoryCache) Invalidate(ctx context.Context, assetID string) error {
	return c.client.Del(ctx, c.key(assetID)).Err()
}

func encode(samples []history.Sample) ([]byte, error) {
	if samples == nil {
		samples = []history.Sample{}
	}
	return json.Marshal(samples)
}

func decode(data []byte) ([]history.Sample, error) {
	var samples []history.Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("corrupt history cache entry: %w", err)
	}
	return samples, nil
}
