package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRepository(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCacheRepository(time.Minute)

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "ids", []byte("[1,2]"), time.Minute))
	got, err := c.Get(ctx, "ids")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", got)

	require.NoError(t, c.Set(ctx, "n", 42, 0))
	got, err = c.Get(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	require.NoError(t, c.Del(ctx, "ids", "n"))
	_, err = c.Get(ctx, "ids")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheRepository_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCacheRepository(time.Minute)

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
