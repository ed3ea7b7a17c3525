package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runKVContract(t *testing.T, kv KV) {
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "device_id", "android_1_abc"))
	val, err := kv.Get(ctx, "device_id")
	require.NoError(t, err)
	assert.Equal(t, "android_1_abc", val)

	require.NoError(t, kv.Set(ctx, "device_id", "android_2_def"))
	val, err = kv.Get(ctx, "device_id")
	require.NoError(t, err)
	assert.Equal(t, "android_2_def", val)

	require.NoError(t, kv.Delete(ctx, "device_id"))
	_, err = kv.Get(ctx, "device_id")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, kv.Delete(ctx, "device_id"))
}

func TestMemoryKV(t *testing.T) {
	runKVContract(t, NewMemory())
}

func TestRedisKV(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	runKVContract(t, NewRedisWithClient(client, "crmpush:"))
}

func TestRedisKV_PrefixesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	kv := NewRedisWithClient(client, "crmpush:")
	require.NoError(t, kv.Set(context.Background(), "push_token", "tok-1"))

	got, err := mr.Get("crmpush:push_token")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)
}
