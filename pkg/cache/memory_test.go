package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryService()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var got map[string]int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryService().(*memoryCache)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	c.now = func() time.Time { return base.Add(2 * time.Second) }

	var got string
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCache_DMRoom(t *testing.T) {
	c := NewMemoryService()
	ctx := context.Background()

	_, err := c.GetDMRoom(ctx, "u1:u2")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.SetDMRoom(ctx, "u1:u2", "room-1"))
	roomID, err := c.GetDMRoom(ctx, "u1:u2")
	require.NoError(t, err)
	assert.Equal(t, "room-1", roomID)

	require.NoError(t, c.Delete(ctx, PrefixDMRoom+"u1:u2"))
	_, err = c.GetDMRoom(ctx, "u1:u2")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
