package memory

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/idempotency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewCache(time.Minute)

	_, err := c.Get(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewCache(time.Minute)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCache_Lock(t *testing.T) {
	ctx := context.Background()
	c := NewCache(time.Minute)

	ok, err := c.AcquireLock(ctx, "lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = c.AcquireLock(ctx, "lock", "b", time.Minute)
	assert.False(t, ok)

	// a foreign token does not release
	require.NoError(t, c.ReleaseLock(ctx, "lock", "b"))
	ok, _ = c.AcquireLock(ctx, "lock", "b", time.Minute)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, "lock", "a"))
	ok, _ = c.AcquireLock(ctx, "lock", "b", time.Minute)
	assert.True(t, ok)
}

func TestCache_Incr(t *testing.T) {
	ctx := context.Background()
	c := NewCache(time.Minute)
	for i := int64(1); i <= 3; i++ {
		n, err := c.Incr(ctx, "rl:ip", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
}

func TestIdempotency(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotency(NewCache(time.Minute))

	resp, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Nil(t, resp)

	require.NoError(t, store.Set(ctx, "key", idempotency.Response{Status: 200, Result: []byte(`{}`)}, time.Minute))
	resp, err = store.Get(ctx, "key")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 200, resp.Status)
}
