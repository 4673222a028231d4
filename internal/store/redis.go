package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Redis 以 prefix+key 的形式保存在redis字符串里
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Store = (*Redis)(nil)

func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &Redis{client: client, prefix: cfg.RedisPrefix}, nil
}

func (r *Redis) Read(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) Write(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
