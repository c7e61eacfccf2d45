package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/chat-gateway/internal/core/cache"
	rediscache "github.com/unifiedui/chat-gateway/internal/infrastructure/cache/redis"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, cache.Cache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	c, err := rediscache.NewCache(rediscache.Config{
		Host: mr.Host(),
		Port: mr.Port(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		mr.Close()
	})

	return mr, c
}

func TestNewCache_ConnectionRefused(t *testing.T) {
	// Arrange
	mr, err := miniredis.Run()
	require.NoError(t, err)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	// Act
	c, err := rediscache.NewCache(rediscache.Config{Host: host, Port: port})

	// Assert
	assert.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestCache_SetAndGet(t *testing.T) {
	// Arrange
	_, c := setupMiniredis(t)
	ctx := context.Background()

	// Act
	require.NoError(t, c.Set(ctx, "gateway:settings", []byte(`{"autoChat":true}`), 0))
	result, err := c.Get(ctx, "gateway:settings")

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"autoChat":true}`, string(result))
}

func TestCache_GetNotFound(t *testing.T) {
	// Arrange
	_, c := setupMiniredis(t)

	// Act
	result, err := c.Get(context.Background(), "missing")

	// Assert
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestCache_ZeroTTLDoesNotExpire(t *testing.T) {
	// Arrange
	mr, c := setupMiniredis(t)
	ctx := context.Background()

	// Act
	require.NoError(t, c.Set(ctx, "persistent", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "ephemeral", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	// Assert
	assert.True(t, mr.Exists("persistent"))
	assert.False(t, mr.Exists("ephemeral"))
}

func TestCache_Delete(t *testing.T) {
	// Arrange
	_, c := setupMiniredis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	// Act
	deleted, err := c.Delete(ctx, "k")
	again, againErr := c.Delete(ctx, "k")

	// Assert
	require.NoError(t, err)
	require.NoError(t, againErr)
	assert.True(t, deleted)
	assert.False(t, again)
}

func TestCache_DeletePattern(t *testing.T) {
	// Arrange
	_, c := setupMiniredis(t)
	ctx := context.Background()
	for _, k := range []string{"gateway:pairing:a", "gateway:pairing:b", "gateway:settings"} {
		require.NoError(t, c.Set(ctx, k, []byte("v"), 0))
	}

	// Act
	n, err := c.DeletePattern(ctx, "gateway:pairing:*")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	settings, err := c.Get(ctx, "gateway:settings")
	require.NoError(t, err)
	assert.NotNil(t, settings)
}

func TestCache_KeyPrefix(t *testing.T) {
	// Arrange
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	c, err := rediscache.NewCache(rediscache.Config{Host: mr.Host(), Port: mr.Port(), KeyPrefix: "tenant-a:"})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	// Act
	require.NoError(t, c.Set(ctx, "gateway:pairing:a", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "gateway:settings", []byte("v"), 0))
	require.NoError(t, mr.Set("gateway:pairing:other", "v"))
	n, err := c.DeletePattern(ctx, "gateway:pairing:*")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, mr.Exists("tenant-a:gateway:pairing:a"))
	assert.True(t, mr.Exists("tenant-a:gateway:settings"))
	assert.True(t, mr.Exists("gateway:pairing:other"))
}

func TestCache_DeletePatternManyKeys(t *testing.T) {
	_, c := setupMiniredis(t)
	ctx := context.Background()
	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("gateway:pairing:%d", i), []byte("v"), 0))
	}

	n, err := c.DeletePattern(ctx, "gateway:pairing:*")

	require.NoError(t, err)
	assert.Equal(t, int64(250), n)
}

func TestCache_Ping(t *testing.T) {
	// Arrange
	_, c := setupMiniredis(t)

	// Act & Assert
	assert.NoError(t, c.Ping(context.Background()))
}
