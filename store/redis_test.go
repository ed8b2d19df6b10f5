package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestRedisStore_SetAndGetAll(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "api_key:abc", map[string]string{"owner": "dev", "usage": "0"}))

	fields, err := s.GetAll(ctx, "api_key:abc")
	require.NoError(t, err)
	assert.Equal(t, "dev", fields["owner"])

	_, err = s.GetAll(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SetField(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", map[string]string{"disabled": "0"}))
	require.NoError(t, s.SetField(ctx, "k", "disabled", "1"))

	fields, err := s.GetAll(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", fields["disabled"])

	assert.ErrorIs(t, s.SetField(ctx, "missing", "disabled", "1"), ErrNotFound)
}

func TestRedisStore_IncrBy(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", map[string]string{"usage": "0"}))

	n, err := s.IncrBy(ctx, "k", "usage", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// A vanished record must not be resurrected by the increment.
	_, err = s.IncrBy(ctx, "missing", "usage", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "://bad-url")
	assert.Error(t, err)
}
