// Package connector implements C6: the polymorphic Connector capability
// shared by all five source kinds (email, chat, cloud-files, code-host,
// web-crawler). See spec.md §4.2.
package connector

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/lantern-ai/lantern-engine/internal/model"
)

// Document is the canonical item a connector yields during sync. Store
// upserts it keyed by (tenant_id, external_id); content is handed to
// DocumentParser first if RawBytes is set and Content is empty.
type Document struct {
	ExternalID      string
	Title           string
	Content         string
	RawBytes        []byte
	Extension       string
	ContentHash     string // provider-native hash, e.g. Box's sha1; falls back to sha1(Content)
	Author          string
	SourceCreatedAt time.Time
	SourceUpdatedAt time.Time
	Metadata        map[string]string
}

// Connector is the contract every source kind implements. Implementations
// must make sync idempotent per ExternalID and must never delete
// documents themselves — deletion is a separate tombstone event owned by
// the orchestrator.
type Connector interface {
	// AuthURL builds the provider's OAuth consent URL.
	AuthURL(redirect, state string) (string, error)

	// ExchangeCode trades an OAuth authorization code for credentials,
	// returned as an opaque blob the caller persists on the Connector row.
	ExchangeCode(ctx context.Context, code, redirect string) ([]byte, error)

	// Connect validates stored credentials, refreshing tokens as needed.
	Connect(ctx context.Context) error

	// Test is a cheap liveness probe distinct from Connect.
	Test(ctx context.Context) bool

	// Sync yields documents created or modified since the given cursor.
	// An empty cursor means full sync. onCursor is invoked exactly once,
	// just before the document channel closes, with the opaque cursor
	// value the caller should persist for the next incremental call — the
	// new cursor is only known once the stream has been fully produced,
	// so it cannot be returned synchronously alongside the channels; a
	// caller that has drained the document channel sees the value.
	Sync(ctx context.Context, since string, onCursor func(string)) (<-chan Document, <-chan error)

	// Fetch rehydrates a single document by external id.
	Fetch(ctx context.Context, externalID string) (*Document, error)

	// Disconnect best-effort revokes stored credentials.
	Disconnect(ctx context.Context) error
}

// Type returns the ConnectorType this package's registry key maps to;
// kept here rather than in model so connector implementations can
// self-report without importing each other.
type Type = model.ConnectorType

// backoffDelays mirrors the retry cadence used across the pack's
// reasoning-model clients (internal/llm, internal/embedding), applied
// here to provider HTTP calls instead of LLM calls.
var backoffDelays = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 4 * time.Second}

// withBackoff calls fn up to len(backoffDelays)+1 times with
// exponential backoff plus jitter, honoring retryAfter when a call
// reports one (e.g. a provider's Retry-After header).
func withBackoff(ctx context.Context, fn func() (retryAfter time.Duration, retry bool, err error)) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		retryAfter, retry, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt >= len(backoffDelays) {
			return lastErr
		}

		delay := backoffDelays[attempt]
		if retryAfter > 0 {
			delay = retryAfter
		}
		jitter := time.Duration(rand.Int64N(int64(delay) / 4))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
	}
}
