package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*EmbeddingCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewEmbeddingCache(client, time.Minute), mr
}

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "m", 3, "hello")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "m", 3, "hello", []float32{1, 2, 3}))

	vec, ok, err := c.Get(ctx, "m", 3, "hello")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)

	_, ok, err = c.Get(ctx, "other-model", 3, "hello")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "m", 1, "x", []float32{1}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "m", 1, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCacheIgnoresWrongDimension(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(c.key("m", 2, "x"), "[1,2,3]"))

	_, ok, err := c.Get(ctx, "m", 2, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmbeddingCacheSurfacesRedisErrors(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	_, _, err := c.Get(context.Background(), "m", 1, "x")
	assert.Error(t, err)
}
