package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lantern-ai/lantern-engine/internal/connector"
	"github.com/lantern-ai/lantern-engine/internal/errs"
	"github.com/lantern-ai/lantern-engine/internal/model"
	"github.com/lantern-ai/lantern-engine/internal/vectorservice"
)

func marshalSummary(s *model.StructuredSummary) ([]byte, error) {
	return json.Marshal(s)
}

// SyncSummary is the job summary spec.md §4's propagation policy
// requires: {total, succeeded, skipped, errored}.
type SyncSummary struct {
	Total     int
	Succeeded int
	Skipped   int
	Errored   int
}

// Sync runs the C11 sync(tenant, connector) responsibility: admit
// through the rate limiter, pull everything new since the connector's
// last cursor, and push each document through
// upsert -> parse -> extract -> embed_and_upsert. A per-document
// failure is recorded on the summary and does not stop the sync; only
// a Fatal error aborts it, per spec.md §4's propagation policy.
func (o *Orchestrator) Sync(ctx context.Context, tenantID, connectorID string) (SyncSummary, error) {
	var summary SyncSummary

	c, err := o.deps.Store.Connectors.Get(ctx, tenantID, connectorID)
	if err != nil {
		return summary, fmt.Errorf("orchestrator.Sync: load connector: %w", err)
	}

	if err := o.admit(ctx, tenantID, "connector_sync"); err != nil {
		return summary, err
	}

	if c.Status.CanTransition(model.StatusSyncing) {
		if err := o.deps.Store.Connectors.UpdateStatus(ctx, tenantID, connectorID, c.Status, model.StatusSyncing, ""); err != nil {
			return summary, fmt.Errorf("orchestrator.Sync: transition to SYNCING: %w", err)
		}
	}

	conn, err := o.deps.Connectors.Build(ctx, c)
	if err != nil {
		o.failConnector(ctx, tenantID, connectorID, err)
		return summary, errs.Permanent("orchestrator.Sync", err)
	}

	var newCursor string
	docs, errCh := conn.Sync(ctx, c.LastSyncCur, func(cursor string) { newCursor = cursor })

	for docs != nil || errCh != nil {
		select {
		case d, ok := <-docs:
			if !ok {
				docs = nil
				continue
			}
			summary.Total++
			if err := o.ingestOne(ctx, tenantID, c.Type, d); err != nil {
				summary.Errored++
				continue
			}
			summary.Succeeded++

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if errs.IsFatal(err) {
				o.failConnector(ctx, tenantID, connectorID, err)
				return summary, err
			}
			summary.Errored++
		}
	}

	if newCursor != "" {
		if err := o.deps.Store.Connectors.UpdateCursor(ctx, tenantID, connectorID, newCursor); err != nil {
			return summary, fmt.Errorf("orchestrator.Sync: update cursor: %w", err)
		}
	}
	if err := o.deps.Store.Connectors.UpdateStatus(ctx, tenantID, connectorID, model.StatusSyncing, model.StatusConnected, ""); err != nil {
		return summary, fmt.Errorf("orchestrator.Sync: transition to CONNECTED: %w", err)
	}

	return summary, nil
}

func (o *Orchestrator) failConnector(ctx context.Context, tenantID, connectorID string, cause error) {
	_ = o.deps.Store.Connectors.UpdateStatus(ctx, tenantID, connectorID, model.StatusSyncing, model.StatusError, cause.Error())
}

// ingestOne runs one document through upsert -> parse -> extract ->
// embed_and_upsert. Each stage's failure is classified via internal/errs
// so the caller can tell a retryable stage from one that should simply
// leave the document at its current status for the next sync to retry
// by external_id.
func (o *Orchestrator) ingestOne(ctx context.Context, tenantID string, sourceType model.ConnectorType, d connector.Document) error {
	content := d.Content
	if content == "" && len(d.RawBytes) > 0 && o.deps.Parser != nil {
		res, err := o.deps.Parser.Parse(ctx, d.RawBytes, d.Extension)
		if err != nil {
			return errs.ParseError("orchestrator.ingestOne", err)
		}
		content = res.Text
	}

	doc := &model.Document{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		SourceType:      sourceType,
		ExternalID:      d.ExternalID,
		Title:           d.Title,
		Content:         content,
		Author:          d.Author,
		SourceCreatedAt: d.SourceCreatedAt,
		SourceUpdatedAt: d.SourceUpdatedAt,
		Status:          model.DocPending,
		Metadata:        d.Metadata,
	}
	if err := o.deps.Store.Documents.Upsert(ctx, doc); err != nil {
		return errs.Transient("orchestrator.ingestOne: upsert", err)
	}

	if o.deps.Extractor != nil {
		release := o.llmGate.acquire()
		summary, err := o.deps.Extractor.Extract(ctx, content)
		release()
		if err == nil && summary != nil {
			raw, _ := marshalSummary(summary)
			if err := o.deps.Store.Documents.SetStructuredSummary(ctx, tenantID, doc.ID, raw, time.Now()); err != nil {
				return errs.Transient("orchestrator.ingestOne: set summary", err)
			}
		}
	}

	if o.deps.Vector != nil {
		_, err := o.deps.Vector.EmbedAndUpsert(ctx, tenantID, []vectorservice.Document{{
			DocID:    doc.DocID(),
			Title:    doc.Title,
			Content:  content,
			Metadata: doc.Metadata,
		}})
		if err != nil {
			return err
		}
		if err := o.deps.Store.Documents.MarkEmbedded(ctx, tenantID, doc.ID); err != nil {
			return errs.Transient("orchestrator.ingestOne: mark embedded", err)
		}
	}

	return nil
}

// admit checks RateLimiter admission for tenantID's plan, mapping a
// rejection to a Permanent error so the caller treats it as skip, not
// retry-immediately.
func (o *Orchestrator) admit(ctx context.Context, tenantID, scope string) error {
	if o.deps.RateLimiter == nil || o.deps.Plans == nil {
		return nil
	}
	plan, err := o.deps.Plans(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("orchestrator.admit: %w", err)
	}
	allowed, retryAfter, err := o.deps.RateLimiter.Allow(ctx, tenantID, plan, scope)
	if err != nil {
		return errs.Transient("orchestrator.admit", err)
	}
	if !allowed {
		return errs.Permanent("orchestrator.admit", fmt.Errorf("rate limit exceeded, retry after %s", retryAfter))
	}
	return nil
}
