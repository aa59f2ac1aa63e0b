package clients

import (
	"context"
	"errors"
	"time"

	"microfinance-reports/pkg/cache/redis"
)

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration

	Prefix string
}

// RedisClient namespaces every key with Prefix.
type RedisClient struct {
	raw    *redis.Client
	prefix string
}

func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	rdb, err := redis.NewRedisConnection(redis.ConnectionInfo{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return NewRedisClientFrom(rdb, cfg.Prefix), nil
}

// NewRedisClientFrom wraps an existing connection.
func NewRedisClientFrom(rdb *redis.Client, prefix string) *RedisClient {
	if prefix == "" {
		prefix = "microfinance_reports_"
	}
	return &RedisClient{raw: rdb, prefix: prefix}
}

func (c *RedisClient) Close() {
	if c.raw == nil {
		return
	}
	redis.Close(c.raw)
}

func (c *RedisClient) Ping(ctx context.Context) error {
	return c.raw.Ping(ctx).Err()
}

func (c *RedisClient) withPrefix(key string) string {
	return c.prefix + key
}

func (c *RedisClient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.raw.Set(ctx, c.withPrefix(key), value, ttl).Err()
}

// ErrNotFound is returned by Get for a missing or expired key.
var ErrNotFound = errors.New("key not found")

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := c.raw.Get(ctx, c.withPrefix(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (c *RedisClient) SAdd(ctx context.Context, key string, members ...any) error {
	return c.raw.SAdd(ctx, c.withPrefix(key), members...).Err()
}

func (c *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.raw.SMembers(ctx, c.withPrefix(key)).Result()
}

// SRem drops members from a set; used to prune expired export ids.
func (c *RedisClient) SRem(ctx context.Context, key string, members ...any) error {
	return c.raw.SRem(ctx, c.withPrefix(key), members...).Err()
}
