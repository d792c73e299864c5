package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"mejaresto/internal/domain"
)

type RedisCatalogCache struct {
	client *redis.Client
}

func NewRedisCatalogCache(addr string, password string, db int) *RedisCatalogCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCatalogCache{client: client}
}

func (c *RedisCatalogCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCatalogCache) Close() error {
	return c.client.Close()
}

func (c *RedisCatalogCache) GetMenuItem(ctx context.Context, key string) (*domain.MenuItem, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var item domain.MenuItem
	if err := json.Unmarshal([]byte(val), &item); err != nil {
		return nil, false, err
	}
	return &item, true, nil
}

func (c *RedisCatalogCache) SetMenuItem(ctx context.Context, key string, item *domain.MenuItem, ttl time.Duration) error {
	if item == nil {
		return nil
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisCatalogCache) InvalidateMenuItem(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
