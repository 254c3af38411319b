package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"

	"cloud.google.com/go/pubsub"
)

// syncTrigger is the payload an external webhook relay (e.g. a Gmail
// history-update forwarder) publishes to the sync-trigger Pub/Sub topic.
type syncTrigger struct {
	TenantID    string `json:"tenant_id"`
	ConnectorID string `json:"connector_id"`
}

// RunPubSubIngress subscribes to sub and republishes every valid
// message as a sync Job onto the matching tenant's JetStream subject,
// realizing SPEC_FULL.md §8's "webhook trigger is: something outside
// this module publishes to Pub/Sub" design — the Orchestrator itself
// never runs an HTTP listener. Blocks until ctx is canceled.
func (o *Orchestrator) RunPubSubIngress(ctx context.Context, sub *pubsub.Subscription) error {
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var trig syncTrigger
		if err := json.Unmarshal(msg.Data, &trig); err != nil || trig.TenantID == "" || trig.ConnectorID == "" {
			slog.Warn("orchestrator: malformed pubsub sync trigger, nacking", "error", err)
			msg.Nack()
			return
		}

		if err := o.Publish(ctx, Job{Type: JobSync, TenantID: trig.TenantID, ConnectorID: trig.ConnectorID}); err != nil {
			slog.Error("orchestrator: failed to enqueue sync from pubsub trigger", "tenant_id", trig.TenantID, "error", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
