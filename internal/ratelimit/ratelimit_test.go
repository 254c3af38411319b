package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lantern-ai/lantern-engine/internal/model"
)

func newTestLimiter(t *testing.T, limits map[model.Plan]PlanLimit) *Limiter {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return New(client, limits)
}

func TestLimiter_UnderLimit(t *testing.T) {
	rl := newTestLimiter(t, map[model.Plan]PlanLimit{model.PlanFree: {MaxRequests: 5, Window: time.Minute}})
	tenantID := "tenant-" + uuid.New().String()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, _, err := rl.Allow(ctx, tenantID, model.PlanFree, "llm_call")
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
}

func TestLimiter_OverLimit(t *testing.T) {
	rl := newTestLimiter(t, map[model.Plan]PlanLimit{model.PlanFree: {MaxRequests: 3, Window: time.Minute}})
	tenantID := "tenant-" + uuid.New().String()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := rl.Allow(ctx, tenantID, model.PlanFree, "llm_call")
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter, err := rl.Allow(ctx, tenantID, model.PlanFree, "llm_call")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if allowed {
		t.Error("4th request should be denied")
	}
	if retryAfter <= 0 {
		t.Errorf("retryAfter = %v, want > 0", retryAfter)
	}
}

func TestLimiter_PerTenantIsolation(t *testing.T) {
	rl := newTestLimiter(t, map[model.Plan]PlanLimit{model.PlanFree: {MaxRequests: 2, Window: time.Minute}})
	ctx := context.Background()
	tenantA := "tenant-a-" + uuid.New().String()
	tenantB := "tenant-b-" + uuid.New().String()

	for i := 0; i < 2; i++ {
		allowed, _, err := rl.Allow(ctx, tenantA, model.PlanFree, "llm_call")
		if err != nil || !allowed {
			t.Fatalf("tenantA request %d: allowed=%v err=%v", i+1, allowed, err)
		}
	}

	allowed, _, err := rl.Allow(ctx, tenantA, model.PlanFree, "llm_call")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if allowed {
		t.Error("tenantA's 3rd request should be denied")
	}

	allowed, _, err = rl.Allow(ctx, tenantB, model.PlanFree, "llm_call")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !allowed {
		t.Error("tenantB should be unaffected by tenantA's quota")
	}
}

func TestLimiter_ScopeIsolation(t *testing.T) {
	rl := newTestLimiter(t, map[model.Plan]PlanLimit{model.PlanFree: {MaxRequests: 1, Window: time.Minute}})
	ctx := context.Background()
	tenantID := "tenant-" + uuid.New().String()

	allowed, _, err := rl.Allow(ctx, tenantID, model.PlanFree, "llm_call")
	if err != nil || !allowed {
		t.Fatalf("first llm_call: allowed=%v err=%v", allowed, err)
	}

	allowed, _, err = rl.Allow(ctx, tenantID, model.PlanFree, "llm_call")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if allowed {
		t.Error("second llm_call in same scope should be denied")
	}

	allowed, _, err = rl.Allow(ctx, tenantID, model.PlanFree, "connector_sync")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !allowed {
		t.Error("a different scope should have its own independent quota")
	}
}

func TestLimiter_UnknownPlanFallsBackToFree(t *testing.T) {
	rl := newTestLimiter(t, nil)
	ctx := context.Background()
	tenantID := "tenant-" + uuid.New().String()

	allowed, _, err := rl.Allow(ctx, tenantID, model.Plan("UNKNOWN_PLAN"), "llm_call")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !allowed {
		t.Error("first request under fallback FREE quota should be allowed")
	}
}
