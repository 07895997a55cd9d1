package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/yard-sale-vendors/internal/adapters/redis"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/idempotency"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("container test")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCache(t *testing.T) {
	client := startRedis(t)
	cache := redisadapter.NewCache(client)
	ctx := context.Background()

	t.Run("get set delete", func(t *testing.T) {
		if _, err := cache.Get(ctx, "session:missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		if err := cache.Set(ctx, "session:a", []byte(`{"id":"a"}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		got, err := cache.Get(ctx, "session:a")
		if err != nil || string(got) != `{"id":"a"}` {
			t.Fatalf("unexpected %q, %v", got, err)
		}
		if err := cache.Delete(ctx, "session:a"); err != nil {
			t.Fatal(err)
		}
		if _, err := cache.Get(ctx, "session:a"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found after delete, got %v", err)
		}
	})

	t.Run("lock release needs owner token", func(t *testing.T) {
		ok, err := cache.AcquireLock(ctx, "lock:a", "owner", time.Minute)
		if err != nil || !ok {
			t.Fatalf("expected lock, got %v %v", ok, err)
		}
		if ok, _ := cache.AcquireLock(ctx, "lock:a", "other", time.Minute); ok {
			t.Fatal("expected second acquire to fail")
		}
		if err := cache.ReleaseLock(ctx, "lock:a", "other"); err != nil {
			t.Fatal(err)
		}
		if ok, _ := cache.AcquireLock(ctx, "lock:a", "other", time.Minute); ok {
			t.Fatal("foreign release must not free the lock")
		}
		if err := cache.ReleaseLock(ctx, "lock:a", "owner"); err != nil {
			t.Fatal(err)
		}
		if ok, _ := cache.AcquireLock(ctx, "lock:a", "other", time.Minute); !ok {
			t.Fatal("expected lock after owner release")
		}
	})

	t.Run("incr keeps first window", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			n, err := cache.Incr(ctx, "rl:test", time.Minute)
			if err != nil || n != i {
				t.Fatalf("expected %d, got %d %v", i, n, err)
			}
		}
		ttl := client.TTL(ctx, "rl:test").Val()
		if ttl <= 0 || ttl > time.Minute {
			t.Errorf("unexpected ttl %v", ttl)
		}
	})
}

func TestIdempotency(t *testing.T) {
	client := startRedis(t)
	store := redisadapter.NewIdempotency(client)
	ctx := context.Background()

	resp, err := store.Get(ctx, "k1")
	if err != nil || resp != nil {
		t.Fatalf("expected miss, got %v %v", resp, err)
	}
	if err := store.Set(ctx, "k1", idempotency.Response{Status: 200, Result: []byte(`{"ok":true}`)}, time.Minute); err != nil {
		t.Fatal(err)
	}
	resp, err = store.Get(ctx, "k1")
	if err != nil || resp == nil || resp.Status != 200 || string(resp.Result) != `{"ok":true}` {
		t.Fatalf("unexpected replay %+v %v", resp, err)
	}
}
