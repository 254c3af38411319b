package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	scope := "scope-" + uuid.New().String()

	if err := c.Set(ctx, scope, "userA", "Alice", time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	v, found, err := c.Get(ctx, scope, "userA")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !found || v != "Alice" {
		t.Fatalf("Get() = (%q, %v), want (\"Alice\", true)", v, found)
	}
}

func TestCache_Miss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	scope := "scope-" + uuid.New().String()

	_, found, err := c.Get(ctx, scope, "nope")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if found {
		t.Error("expected a cache miss")
	}
}

func TestCache_ScopeIsolation(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	scopeA := "scope-a-" + uuid.New().String()
	scopeB := "scope-b-" + uuid.New().String()

	if err := c.Set(ctx, scopeA, "k", "v-a", time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	_, found, err := c.Get(ctx, scopeB, "k")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if found {
		t.Error("scopeB should not see scopeA's entry")
	}
}

func TestCache_ClearRemovesOnlyThatScope(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	scopeA := "scope-a-" + uuid.New().String()
	scopeB := "scope-b-" + uuid.New().String()

	if err := c.Set(ctx, scopeA, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Set(ctx, scopeB, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if err := c.Clear(ctx, scopeA); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	if _, found, _ := c.Get(ctx, scopeA, "k"); found {
		t.Error("scopeA should be cleared")
	}
	if _, found, _ := c.Get(ctx, scopeB, "k"); !found {
		t.Error("scopeB should be untouched by clearing scopeA")
	}
}
