package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/patrickmn/go-cache"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/idempotency"
)

// Cache is the single-process stand-in for the redis adapter.
type Cache struct {
	c *cache.Cache
	// go-cache has no compare-and-delete; mu makes lock release atomic.
	mu sync.Mutex
}

func NewCache(cleanup time.Duration) *Cache {
	return &Cache{c: cache.New(cache.NoExpiration, cleanup)}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := c.c.Get(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, errors.Newf("unexpected value type %T for %s", v, key)
	}
	return append([]byte(nil), b...), nil
}

func (c *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	c.c.Set(key, append([]byte(nil), val...), ttl)
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	c.c.Delete(key)
	return nil
}

func (c *Cache) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.c.Add(key, token, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *Cache) ReleaseLock(ctx context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.c.Get(key); ok && v == token {
		c.c.Delete(key)
	}
	return nil
}

// Incr counts hits in a fixed window that starts with the first hit.
func (c *Cache) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	_ = c.c.Add(key, int64(0), window)
	n, err := c.c.IncrementInt64(key, 1)
	if err != nil {
		return 0, errors.Wrapf(err, "increment %s", key)
	}
	return n, nil
}

// Idempotency adapts Cache to idempotency.Store.
type Idempotency struct {
	c *cache.Cache
}

func NewIdempotency(c *Cache) *Idempotency {
	return &Idempotency{c: c.c}
}

func (i *Idempotency) Get(ctx context.Context, key string) (*idempotency.Response, error) {
	v, ok := i.c.Get("idemp:" + key)
	if !ok {
		return nil, nil
	}
	resp, ok := v.(idempotency.Response)
	if !ok {
		return nil, errors.Newf("unexpected value type %T", v)
	}
	return &resp, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp idempotency.Response, ttl time.Duration) error {
	i.c.Set("idemp:"+key, resp, ttl)
	return nil
}
