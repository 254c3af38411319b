// Package cache implements a distributed, job-scoped key-value cache
// backed by Redis. spec.md §9 is explicit that caches such as chat-source's
// user-id -> display-name lookup and the web crawler's per-host robots
// rules "must be scoped per job, not per process, to avoid cross-tenant
// leakage under parallel workers" — those two stay in-process maps
// scoped to one connector run (internal/connector/chat.go,
// internal/connector/webcrawler.go). This package exists for the case
// those in-process caches don't cover: state that must survive past one
// goroutine's lifetime or be visible across controlplane replicas, while
// still being torn down per scope rather than shared globally.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin, scope-namespaced wrapper around a Redis client.
// Every key lives under a caller-supplied scope (e.g. a tenant ID or
// "tenant:<id>:sync:<connector_id>"), so Clear can drop exactly one
// job's state without touching any other tenant's.
type Cache struct {
	client *redis.Client
}

// New wraps an already-connected Redis client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func key(scope, k string) string {
	// {scope} hash-tags the key so every entry for one scope lands on
	// the same Redis Cluster slot, matching internal/ratelimit's key
	// scheme.
	return fmt.Sprintf("cache:{%s}:%s", scope, k)
}

// Get returns the cached value for k within scope. found is false on a
// cache miss, not an error.
func (c *Cache) Get(ctx context.Context, scope, k string) (value string, found bool, err error) {
	v, err := c.client.Get(ctx, key(scope, k)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache.Get: %w", err)
	}
	return v, true, nil
}

// Set stores value for k within scope with the given TTL. ttl <= 0
// means no expiry, which callers should only use for scopes they also
// explicitly Clear.
func (c *Cache) Set(ctx context.Context, scope, k, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key(scope, k), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache.Set: %w", err)
	}
	return nil
}

// Clear drops every key under scope. Used by the controlplane `reset`
// CLI verb (spec.md §6: "flush caches") and by callers that want a
// clean slate at the start of a new job run sharing a scope name with
// a prior one.
func (c *Cache) Clear(ctx context.Context, scope string) error {
	pattern := key(scope, "*")
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache.Clear: scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache.Clear: del: %w", err)
	}
	return nil
}
