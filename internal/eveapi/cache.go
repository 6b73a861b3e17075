package eveapi

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache stores raw API response bodies until their cachedUntil instant.
// The API serves identical documents within that window, so refetching is
// pure waste against its rate limits.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte, ttl time.Duration)
}

// RedisCache backs the response cache with Redis. Keys are hashed so the
// vCode never appears in the keyspace.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	body, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return body, true
}

func (c *RedisCache) Set(ctx context.Context, key string, body []byte, ttl time.Duration) {
	c.rdb.Set(ctx, cacheKey(key), body, ttl)
}

func cacheKey(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return "eveapi:" + hex.EncodeToString(sum[:])
}
