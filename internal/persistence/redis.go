package persistence

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStore persists containers as plain redis string values under a
// configurable key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing redis client. The client's lifetime is
// owned by the caller; Close here is a no-op so that auth and storage can
// share one connection pool.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "depot:container:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context, id string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", id, err)
	}
	return data, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, id string, data []byte) error {
	if err := r.client.Set(ctx, r.key(id), data, 0).Err(); err != nil {
		return fmt.Errorf("redis save %s: %w", id, err)
	}
	return nil
}

// Close implements Store. The shared client is closed by its owner.
func (r *RedisStore) Close() error { return nil }
