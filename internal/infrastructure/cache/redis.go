// Package cache provides a Redis-backed JSON cache scoped per business unit.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"procura/internal/core/tenant"
)

const keyPrefix = "procura"

// Cache stores JSON values in Redis. A nil *Cache, or one without a client,
// misses every lookup and ignores writes.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a cache with the given entry lifetime.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// NewClient opens a Redis client and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Key builds "procura:<bu_code>:<parts...>" for the tenant in ctx.
func Key(ctx context.Context, parts ...string) string {
	code := tenant.GetCode(ctx)
	if code == "" {
		code = "_"
	}
	return keyPrefix + ":" + code + ":" + strings.Join(parts, ":")
}

// GetJSON decodes the cached value into dest. The bool is false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		// a value we cannot read is as good as absent
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

// SetJSON stores value under key for the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) error {
	if !c.enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
