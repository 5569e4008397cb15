package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string
	Count int
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache().(*memoryCache)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "a", entry{"alpha", 1}, time.Minute))
	require.NoError(t, cache.Set(ctx, "b", entry{"beta", 2}, 0))

	var got entry
	found, err := cache.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{"alpha", 1}, got)

	found, err = cache.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	now = now.Add(time.Minute)
	found, _ = cache.Get(ctx, "a", &got)
	assert.False(t, found, "expired")
	found, _ = cache.Get(ctx, "b", &got)
	assert.True(t, found, "no ttl")

	require.NoError(t, cache.Delete(ctx, "b", "nope"))
	found, _ = cache.Get(ctx, "b", &got)
	assert.False(t, found)
}
