// Package cache provides Redis-backed caching for the read surface's hot
// paths (status, per-ticker summaries). It is never authoritative: every
// Get miss, and every error from a disabled or unreachable Redis, falls
// through to the Store (§5 "no in-memory caches are authoritative").
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default TTLs for the read surface's cached responses.
const (
	TTLStatus        = 10 * time.Second
	TTLTickerSummary = 30 * time.Second
	TTLNameLookup    = 30 * time.Second
)

// Cache provides Redis-based caching operations. It degrades to a
// no-op/always-miss implementation when disabled, so callers never need a
// nil check.
type Cache struct {
	client    *redis.Client
	keyPrefix string
	enabled   bool
}

// Config holds cache configuration.
type Config struct {
	Addr      string // "host:port"; empty disables the cache
	Password  string
	DB        int
	KeyPrefix string
	Enabled   bool
}

// New creates a Cache. When cfg.Enabled is false (or cfg.Addr is empty),
// it returns a disabled Cache rather than an error, mirroring the
// degrade-gracefully shape used by chainclient.TipPush.
func New(cfg *Config) (*Cache, error) {
	if !cfg.Enabled || cfg.Addr == "" {
		return &Cache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "zord"
	}

	return &Cache{client: client, keyPrefix: prefix, enabled: true}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsEnabled returns whether caching is enabled.
func (c *Cache) IsEnabled() bool { return c.enabled }

func (c *Cache) key(parts ...string) string {
	key := c.keyPrefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// Get retrieves a JSON-encoded value from cache into dest.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if !c.enabled {
		return redis.Nil
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set JSON-encodes value and stores it with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes one or more keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled || len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.key(k)
	}
	return c.client.Del(ctx, fullKeys...).Err()
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	return n > 0, err
}

// Status caching: the single /status response, invalidated purely by TTL
// since a new response is only ever one block stale.

func (c *Cache) GetStatus(ctx context.Context, dest interface{}) error {
	return c.Get(ctx, "status", dest)
}

func (c *Cache) SetStatus(ctx context.Context, value interface{}) error {
	return c.Set(ctx, "status", value, TTLStatus)
}

// Ticker summary caching: one entry per ZRC-20 ticker, per §4.8's
// per-ticker summary endpoint.

func (c *Cache) GetTickerSummary(ctx context.Context, tickLower string, dest interface{}) error {
	return c.Get(ctx, "ticker:"+tickLower, dest)
}

func (c *Cache) SetTickerSummary(ctx context.Context, tickLower string, value interface{}) error {
	return c.Set(ctx, "ticker:"+tickLower, value, TTLTickerSummary)
}

func (c *Cache) InvalidateTickerSummary(ctx context.Context, tickLower string) error {
	return c.Delete(ctx, "ticker:"+tickLower)
}

// Stats returns basic Redis server stats (enabled flag and key count).
func (c *Cache) Stats(ctx context.Context) (map[string]interface{}, error) {
	if !c.enabled {
		return map[string]interface{}{"enabled": false}, nil
	}
	dbSize, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"enabled": true, "keys": dbSize}, nil
}
