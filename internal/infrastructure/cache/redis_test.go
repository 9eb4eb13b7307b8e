package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore on it
func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, ttl), mr
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	store, mr := setupTestRedis(t, 0)
	ctx := context.Background()

	err := store.Save(ctx, "it-services-cart:abc", []byte(`{"items":[]}`))
	require.NoError(t, err)

	data, err := store.Load(ctx, "it-services-cart:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(data))

	assert.True(t, mr.Exists("it-services-cart:abc"))
	assert.Equal(t, time.Duration(0), mr.TTL("it-services-cart:abc"))
}

func TestRedisStore_LoadMiss(t *testing.T) {
	store, _ := setupTestRedis(t, 0)

	_, err := store.Load(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", []byte("v")))

	assert.Equal(t, time.Hour, mr.TTL("k"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))

	assert.False(t, mr.Exists("k"))
	// Deleting again is fine
	assert.NoError(t, store.Delete(ctx, "k"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := setupTestRedis(t, 0)
	mr.Close()

	_, err := store.Load(context.Background(), "k")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	data := []byte("v1")
	require.NoError(t, store.Save(ctx, "k", data))
	data[0] = 'x'

	got, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
