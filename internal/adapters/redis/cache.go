// Package redisad backs the catalog read cache with Redis. Values are JSON;
// entries that no longer decode are dropped and reported as misses.
package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"realty_catalog/internal/adapters/observability"
)

const label = "redis"

type Cache struct{ c *redis.Client }

func New(addr, pass string, db int) *Cache {
	return NewFromClient(redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}))
}

func NewFromClient(c *redis.Client) *Cache { return &Cache{c: c} }

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }

// Get decodes the entry at key into dst. A missing or undecodable entry is
// a miss, not an error.
func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := r.c.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		observability.ObserveCache(label, "miss")
		return false, nil
	case err != nil:
		observability.ObserveCache(label, "error")
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		observability.ObserveCache(label, "corrupt")
		_ = r.c.Del(ctx, key).Err()
		return false, nil
	}
	observability.ObserveCache(label, "hit")
	return true, nil
}

// Set stores v as JSON. ttlSec <= 0 keeps the entry until it is evicted.
func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	var ttl time.Duration
	if ttlSec > 0 {
		ttl = time.Duration(ttlSec) * time.Second
	}
	if err := r.c.Set(ctx, key, b, ttl).Err(); err != nil {
		observability.ObserveCache(label, "error")
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	observability.ObserveCache(label, "set")
	return nil
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache(label, "del")
	return r.c.Del(ctx, key).Err()
}

// Incr bumps a counter; the catalog uses it as the cache generation so one
// write invalidates every cached read.
func (r *Cache) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.c.Incr(ctx, key).Result()
	if err != nil {
		observability.ObserveCache(label, "error")
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	observability.ObserveCache(label, "invalidate")
	return n, nil
}
