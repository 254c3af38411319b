// Package orchestrator implements C11, the per-tenant job coordinator
// that drives C6 (Connector) -> C7 (Extractor) -> C9 (VectorService) on
// sync, and runs C10 (GapAnalyzer) on demand. See spec.md §4.7 and
// SPEC_FULL.md §8.
//
// It is also the only package allowed to import both
// internal/gapanalysis and internal/gapanalysis/v3: the parent package
// cannot import its own v3 subpackage (v3 imports the parent for the
// shared Analyzer contract), so strategy selection by name lives here.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lantern-ai/lantern-engine/internal/connector"
	"github.com/lantern-ai/lantern-engine/internal/errs"
	"github.com/lantern-ai/lantern-engine/internal/extractor"
	"github.com/lantern-ai/lantern-engine/internal/gapanalysis"
	"github.com/lantern-ai/lantern-engine/internal/gapanalysis/v3"
	"github.com/lantern-ai/lantern-engine/internal/model"
	"github.com/lantern-ai/lantern-engine/internal/parser"
	"github.com/lantern-ai/lantern-engine/internal/ratelimit"
	"github.com/lantern-ai/lantern-engine/internal/store"
	"github.com/lantern-ai/lantern-engine/internal/telemetry"
	"github.com/lantern-ai/lantern-engine/internal/vectorservice"
)

// ConnectorBuilder constructs a live connector.Connector from a
// persisted model.Connector row, decoding its opaque Credentials and
// Settings. Kept as a caller-supplied dependency so this package never
// needs to import every connector's concrete OAuth/API client types.
type ConnectorBuilder interface {
	Build(ctx context.Context, c *model.Connector) (connector.Connector, error)
}

// Deps bundles every collaborator the Orchestrator drives.
type Deps struct {
	Store       *store.Store
	Connectors  ConnectorBuilder
	Parser      parser.Parser
	Extractor   *extractor.Extractor
	Vector      *vectorservice.Service
	RateLimiter *ratelimit.Limiter
	Plans       func(ctx context.Context, tenantID string) (model.Plan, error)
	Analyzers   map[string]gapanalysis.Analyzer
	// Feedback is the v3 strategy's FeedbackRecorder, if v3 is in use.
	// CompleteProcess feeds verified gap outcomes back into it. nil
	// disables the feedback loop without affecting gap generation.
	Feedback *v3.FeedbackRecorder
	// Metrics is optional; nil disables Prometheus recording without
	// affecting job processing.
	Metrics *telemetry.Metrics

	NATS             *nats.Conn
	JobStreamName    string
	WorkerPoolSize   int
	MaxConcurrentLLM int
}

// Orchestrator is C11. One instance per controlplane process; tenant
// FIFO and cross-tenant concurrency are both enforced in-process, with
// JetStream providing durability across restarts.
type Orchestrator struct {
	deps Deps
	js   nats.JetStreamContext

	workerGate *llmGate // reused shape: bounds concurrent tenant workers
	llmGate    *llmGate // bounds concurrent LLM calls across all tenants

	mu      sync.Mutex
	workers map[string]*tenantWorker
}

type tenantWorker struct {
	tenantID string
	cancel   context.CancelFunc
}

// New wires an Orchestrator. It does not start consuming jobs; call
// Start for that.
func New(deps Deps) (*Orchestrator, error) {
	if deps.JobStreamName == "" {
		deps.JobStreamName = "LANTERN_JOBS"
	}
	if deps.WorkerPoolSize <= 0 {
		deps.WorkerPoolSize = 8
	}
	if deps.MaxConcurrentLLM <= 0 {
		deps.MaxConcurrentLLM = 8
	}

	js, err := deps.NATS.JetStream()
	if err != nil {
		return nil, fmt.Errorf("orchestrator.New: %w", err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     deps.JobStreamName,
		Subjects: []string{"tenant.*.jobs"},
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("orchestrator.New: add stream: %w", err)
	}

	return &Orchestrator{
		deps:       deps,
		js:         js,
		workerGate: newLLMGate(deps.WorkerPoolSize),
		llmGate:    newLLMGate(deps.MaxConcurrentLLM),
		workers:    map[string]*tenantWorker{},
	}, nil
}

// Publish enqueues job onto its tenant's FIFO subject, starting that
// tenant's consumer loop if this is the first job seen for it.
func (o *Orchestrator) Publish(ctx context.Context, job Job) error {
	subject := jobSubject(job.TenantID)
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("orchestrator.Publish: %w", err)
	}
	if _, err := o.js.Publish(subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("orchestrator.Publish: %w", err)
	}
	o.ensureWorker(job.TenantID)
	return nil
}

// ensureWorker starts a durable pull-consumer loop for tenantID if one
// isn't already running. Each tenant's loop processes jobs serially
// (the FIFO guarantee); admission into that loop from the shared
// workerGate is what bounds how many tenants process concurrently.
func (o *Orchestrator) ensureWorker(tenantID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.workers[tenantID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &tenantWorker{tenantID: tenantID, cancel: cancel}
	o.workers[tenantID] = w
	go o.runTenantLoop(ctx, tenantID)
}

func (o *Orchestrator) runTenantLoop(ctx context.Context, tenantID string) {
	subject := jobSubject(tenantID)
	durable := "worker-" + tenantID

	sub, err := o.js.PullSubscribe(subject, durable, nats.AckExplicit())
	if err != nil {
		slog.Error("orchestrator: pull subscribe failed", "tenant_id", tenantID, "error", err)
		return
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			slog.Warn("orchestrator: fetch error", "tenant_id", tenantID, "error", err)
			continue
		}

		for _, msg := range msgs {
			o.processMessage(ctx, msg)
		}
	}
}

// processMessage admits through the global worker gate (bounding
// cross-tenant concurrency) before dispatching, and Acks only once the
// job has run to completion, so a crash mid-job leaves it redelivered.
func (o *Orchestrator) processMessage(ctx context.Context, msg *nats.Msg) {
	release := o.workerGate.acquire()
	defer release()

	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		slog.Error("orchestrator: malformed job, dropping", "error", err)
		msg.Ack()
		return
	}

	ctx, span := telemetry.Tracer().Start(ctx, "orchestrator.job."+string(job.Type))
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", job.TenantID),
		attribute.String("job_type", string(job.Type)),
	)

	start := time.Now()
	o.deps.Metrics.JobStarted()
	err := o.dispatch(ctx, job)
	o.deps.Metrics.JobFinished()

	if err != nil {
		span.RecordError(err)
		if errs.IsFatal(err) {
			o.deps.Metrics.ObserveJob(string(job.Type), "fatal", time.Since(start))
			slog.Error("orchestrator: fatal job error, dropping", "job", job.Type, "tenant_id", job.TenantID, "error", err)
			msg.Ack()
			return
		}
		o.deps.Metrics.ObserveJob(string(job.Type), "retry", time.Since(start))
		slog.Warn("orchestrator: job failed, will redeliver", "job", job.Type, "tenant_id", job.TenantID, "error", err)
		msg.Nak()
		return
	}
	o.deps.Metrics.ObserveJob(string(job.Type), "success", time.Since(start))
	msg.Ack()
}

func (o *Orchestrator) dispatch(ctx context.Context, job Job) error {
	switch job.Type {
	case JobSync:
		_, err := o.Sync(ctx, job.TenantID, job.ConnectorID)
		return err
	case JobAnalyze:
		_, err := o.Analyze(ctx, job.TenantID, job.Strategy, job.ProjectID, job.MaxDocs)
		return err
	case JobSubmitAnswer:
		var a model.GapAnswer
		if err := json.Unmarshal(job.Answer, &a); err != nil {
			return errs.ParseError("orchestrator.dispatch", err)
		}
		return o.SubmitAnswer(ctx, &a)
	case JobCompleteProcess:
		return o.CompleteProcess(ctx, job.TenantID)
	default:
		return errs.Permanent("orchestrator.dispatch", fmt.Errorf("unknown job type %q", job.Type))
	}
}

// Close stops every tenant loop. It does not drain in-flight jobs;
// JetStream redelivers anything left unacked.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, w := range o.workers {
		w.cancel()
	}
}
