package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/cart"
)

const defaultTTL = 15 * time.Minute

// RedisViewCache stores rendered cart views in Redis. Entries live until the
// next mutation of the cart deletes them or the TTL expires; the TTL carries
// jitter so entries do not expire in lockstep.
type RedisViewCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisViewCache(client *redis.Client) *RedisViewCache {
	return &RedisViewCache{client: client, baseTTL: defaultTTL}
}

func (c *RedisViewCache) Get(ctx context.Context, userID uuid.UUID) (*cart.View, error) {
	data, err := c.client.Get(ctx, viewKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var view cart.View
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("unmarshal cart view: %w", err)
	}
	return &view, nil
}

func (c *RedisViewCache) Set(ctx context.Context, userID uuid.UUID, view *cart.View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal cart view: %w", err)
	}

	ttl := c.baseTTL + time.Duration(rand.Intn(300))*time.Second
	if err := c.client.Set(ctx, viewKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisViewCache) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, viewKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func viewKey(userID uuid.UUID) string {
	return "cart:view:" + userID.String()
}
