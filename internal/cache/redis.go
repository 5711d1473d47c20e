// Package cache keeps search results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/at-ishikawa/recipebook/internal/config"
)

const defaultPrefix = "recipebook"

// RedisCache stores JSON values under a generation number. Invalidate moves
// to the next generation so older entries are never read again and expire
// on their own.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Connect opens a client for cfg.RedisURL and checks it answers.
func Connect(ctx context.Context, cfg config.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	slog.Default().Debug("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return NewRedisCache(client, defaultPrefix, cfg.TTL()), nil
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":generation"
}

// Generation returns the current generation. Readers pass it to Get and Set so
// a value computed before an Invalidate is filed under the old generation.
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisCache) entryKey(gen int64, key string) string {
	return c.prefix + ":" + strconv.FormatInt(gen, 10) + ":" + key
}

// Get decodes the entry for key in generation gen into dest and reports
// whether one existed.
func (c *RedisCache) Get(ctx context.Context, gen int64, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, c.entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, gen int64, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.entryKey(gen, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Invalidate drops every entry written so far.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

// InvalidateOnChange is a change hook for repositories. Failures are logged.
func (c *RedisCache) InvalidateOnChange(ctx context.Context) {
	if err := c.Invalidate(ctx); err != nil {
		slog.Default().Warn("failed to invalidate search cache", "error", err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
