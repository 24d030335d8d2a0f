package persist

import (
	"context"

	"pratham-chat/backend/shared/redis"
)

// Redis stores values as plain redis strings without expiry
type Redis struct {
	client *redis.RedisClient
}

func NewRedis(client *redis.RedisClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, key)
	if redis.IsNil(err) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, 0)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key)
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx) }
func (r *Redis) Close() error                   { return r.client.Close() }
func (r *Redis) Name() string                   { return "redis" }
