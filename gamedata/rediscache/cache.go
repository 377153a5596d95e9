// Package rediscache backs the game-data cache with Redis.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"armory/gamedata"
)

const keyPrefix = "gamedata:"

// Cache implements gamedata.Cache on a Redis client.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gamedata.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("rediscache.Get: %w", err)
	}
	return data, nil
}

func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("rediscache.Put: %w", err)
	}
	return nil
}

var _ gamedata.Cache = (*Cache)(nil)
