package strata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	got, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, "users:all", []byte("rows"), 0))
	got, err = c.Get(ctx, "users:all")
	require.NoError(t, err)
	assert.Equal(t, []byte("rows"), got)

	require.NoError(t, c.Delete(ctx, "users:all"))
	got, err = c.Get(ctx, "users:all")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	time.Sleep(20 * time.Millisecond)
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries read as a miss")
}

func TestMemoryCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, "users:all", []byte("a"), 0))
	require.NoError(t, c.Set(ctx, "users:one", []byte("b"), 0))
	require.NoError(t, c.Set(ctx, "posts:all", []byte("c"), 0))

	require.NoError(t, c.DeletePrefix(ctx, "users:"))
	got, _ := c.Get(ctx, "users:all")
	assert.Nil(t, got)
	got, _ = c.Get(ctx, "posts:all")
	assert.Equal(t, []byte("c"), got)

	require.NoError(t, c.Clear(ctx))
	got, _ = c.Get(ctx, "posts:all")
	assert.Nil(t, got)
}

func TestCacheKeyString(t *testing.T) {
	k := CacheKey{Table: "users", Operation: "all", Predicates: "name=alice", OrderBy: "id"}
	assert.Equal(t, "users:all:name=alice:id", k.String())

	k.Limit = 10
	k.Offset = 20
	assert.Equal(t, "users:all:name=alice:id:10,20", k.String())
}
