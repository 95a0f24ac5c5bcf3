package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestRedis connects to TEST_REDIS_URL, skipping the test when unset.
func openTestRedis(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	r, err := NewRedis(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisTryLock(t *testing.T) {
	ctx := context.Background()
	a, b := openTestRedis(t), openTestRedis(t)
	name := "test:" + uuid.NewString()
	t.Cleanup(func() { a.client.Del(context.Background(), keyPrefix+name) })

	release, ok, err := a.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "another replica must be refused")

	ttl, err := a.client.PTTL(ctx, keyPrefix+name).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "lock carries an expiry")

	release()
	n, err := a.client.Exists(ctx, keyPrefix+name).Result()
	require.NoError(t, err)
	assert.Zero(t, n, "owner release deletes the key")

	again, ok, err := b.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "free after release")
	again()
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	ctx := context.Background()
	r := openTestRedis(t)
	name := "test:" + uuid.NewString()
	key := keyPrefix + name
	t.Cleanup(func() { r.client.Del(context.Background(), key) })

	release, ok, err := r.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Our lock expired and another holder took it over.
	require.NoError(t, r.client.Set(ctx, key, "other:token", time.Minute).Err())
	release()

	got, err := r.client.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "other:token", got, "stale release must not delete a foreign lock")
}
