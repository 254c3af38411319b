// Package ratelimit implements the per-tenant sliding-window limiter
// described in spec.md §4's RateLimiter component (C12). Unlike the
// in-process sync.Map limiter this is grounded on, state lives in
// Redis so the limit is shared across every controlplane replica
// instead of being per-process.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lantern-ai/lantern-engine/internal/model"
)

// PlanLimit is the (max requests, window) pair enforced for one plan tier.
type PlanLimit struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultPlanLimits is the plan -> quota table from spec.md §4's
// RateLimiter design notes.
var DefaultPlanLimits = map[model.Plan]PlanLimit{
	model.PlanFree:         {MaxRequests: 60, Window: time.Minute},
	model.PlanStarter:      {MaxRequests: 300, Window: time.Minute},
	model.PlanProfessional: {MaxRequests: 1200, Window: time.Minute},
	model.PlanEnterprise:   {MaxRequests: 6000, Window: time.Minute},
}

// slidingWindowScript implements an atomic check-and-increment sliding
// window counter using a Redis sorted set keyed per tenant+scope: each
// request is a member scored by its arrival time (as a float), expired
// members are trimmed before counting, and ZCARD decides admission.
// Member uniqueness needs a nonce since two requests can arrive within
// the same millisecond.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

local cutoff = now - window_ms
redis.call("ZREMRANGEBYSCORE", key, "-inf", cutoff)

local count = redis.call("ZCARD", key)
if count >= limit then
	local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
	local retry_after_ms = window_ms
	if oldest[2] ~= nil then
		retry_after_ms = (tonumber(oldest[2]) + window_ms) - now
	end
	return {0, retry_after_ms}
end

redis.call("ZADD", key, now, member)
redis.call("PEXPIRE", key, window_ms)
return {1, 0}
`)

// Limiter enforces per-tenant sliding-window rate limits backed by Redis.
type Limiter struct {
	client *redis.Client
	limits map[model.Plan]PlanLimit
	nowFn  func() time.Time
	nonce  func() string
}

// New builds a Limiter against an already-connected Redis client. A nil
// limits map falls back to DefaultPlanLimits.
func New(client *redis.Client, limits map[model.Plan]PlanLimit) *Limiter {
	if limits == nil {
		limits = DefaultPlanLimits
	}
	return &Limiter{
		client: client,
		limits: limits,
		nowFn:  time.Now,
		nonce:  newNonce,
	}
}

// Allow reports whether tenantID may perform one more action of the
// given scope (e.g. "llm_call", "connector_sync") under its plan's
// quota, and if not, how long the caller should wait before retrying.
func (l *Limiter) Allow(ctx context.Context, tenantID string, plan model.Plan, scope string) (allowed bool, retryAfter time.Duration, err error) {
	limit, ok := l.limits[plan]
	if !ok {
		limit = DefaultPlanLimits[model.PlanFree]
	}

	key := fmt.Sprintf("ratelimit:{%s}:%s", tenantID, scope)
	now := l.nowFn().UnixMilli()
	windowMs := limit.Window.Milliseconds()

	res, err := slidingWindowScript.Run(ctx, l.client, []string{key}, now, windowMs, limit.MaxRequests, l.nonce()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit.Allow: %w", err)
	}

	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		return false, 0, fmt.Errorf("ratelimit.Allow: unexpected script result %v", res)
	}

	allowedInt, _ := pair[0].(int64)
	retryMs, _ := pair[1].(int64)

	return allowedInt == 1, time.Duration(retryMs) * time.Millisecond, nil
}

func newNonce() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Uint32())
}
