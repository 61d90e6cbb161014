package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/the127/chunkyard/internal/config"
)

func NewRedisStore(kvConfig config.KvConfig) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", kvConfig.Redis.Host, kvConfig.Redis.Port),
			Username: kvConfig.Redis.Username,
			Password: kvConfig.Redis.Password,
			DB:       kvConfig.Redis.Database,
		}),
		prefix: kvConfig.Redis.KeyPrefix,
	}
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Set(ctx context.Context, key string, value string, opts ...Option) error {
	options := applyOptions(opts)
	return r.client.Set(ctx, r.prefix+key, value, options.Expiration).Err()
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	result, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return result, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	err := r.client.Del(ctx, r.prefix+key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
