package cache

import (
	"context"
	"encoding/json"
	"time"

	"dinsac-chat/backend/pkg/config"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin redis-backed cache. All operations are best effort: callers
// treat a cache failure the same as a miss and fall through to the database.
type Cache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// New creates a cache from the application configuration
func New() *Cache {
	cfg := config.Get()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return &Cache{
		client:  client,
		enabled: cfg.Cache.Enabled,
		ttl:     cfg.Cache.TTL,
	}
}

// SetJSON marshals value and stores it under key with the default TTL
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// GetJSON retrieves key and unmarshals it into dest. The second return value
// reports whether the key was present and valid.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a key
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// Close releases the underlying redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}
