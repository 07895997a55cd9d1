package rateLimit

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/memory"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"github.com/stretchr/testify/assert"
)

func TestAllow(t *testing.T) {
	rl := NewRateLimiter(memory.NewCache(time.Minute), observability.NewNopLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(ctx, "ip:1.2.3.4", 3, time.Minute))
	}
	assert.False(t, rl.Allow(ctx, "ip:1.2.3.4", 3, time.Minute))
	assert.True(t, rl.Allow(ctx, "ip:5.6.7.8", 3, time.Minute))
}

type brokenCounter struct{}

func (brokenCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func TestAllow_FailsOpen(t *testing.T) {
	rl := NewRateLimiter(brokenCounter{}, observability.NewNopLogger())
	assert.True(t, rl.Allow(context.Background(), "ip:x", 1, time.Minute))
}
