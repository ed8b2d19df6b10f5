package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the Store interface with Redis hashes, so the record set
// can be shared across gateway instances. Usage increments map to HINCRBY,
// which Redis executes atomically.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisClient builds a client from a redis:// URL and verifies
// connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *RedisStore) GetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return fields, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, fields map[string]string) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return s.client.HSet(ctx, key, values).Err()
}

func (s *RedisStore) SetField(ctx context.Context, key, field, value string) error {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return s.client.HSet(ctx, key, field, value).Err()
}

func (s *RedisStore) IncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	// HINCRBY creates missing keys; check existence first so a record that
	// vanished between lookup and increment surfaces as ErrNotFound.
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}
	return s.client.HIncrBy(ctx, key, field, delta).Result()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
