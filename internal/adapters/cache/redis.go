package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taskmaster/agenda/internal/application/state"
	"github.com/taskmaster/agenda/internal/infrastructure/config"
	"github.com/taskmaster/agenda/internal/ports"
)

// RedisCache stores the snapshot under a single key.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg config.CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.GetAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.GetAddr(), err)
	}

	return NewRedisCacheWithClient(client, cfg.Key, cfg.TTL), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, key string, ttl time.Duration) *RedisCache {
	if key == "" {
		key = "agenda:snapshot"
	}
	return &RedisCache{client: client, key: key, ttl: ttl, now: time.Now}
}

// Save stores the snapshot. A zero TTL keeps it forever.
func (c *RedisCache) Save(ctx context.Context, data state.Data) error {
	b, err := encode(data, c.now())
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot in redis: %w", err)
	}
	return nil
}

// Load reads the snapshot.
func (c *RedisCache) Load(ctx context.Context) (state.Data, time.Time, error) {
	b, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return state.Data{}, time.Time{}, ports.ErrCacheMiss
	}
	if err != nil {
		return state.Data{}, time.Time{}, fmt.Errorf("read snapshot from redis: %w", err)
	}
	return decode(b)
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
