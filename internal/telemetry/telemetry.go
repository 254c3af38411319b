// Package telemetry wires the Prometheus metrics and OpenTelemetry traces
// named in SPEC_FULL.md §5's domain-stack table into the two places that
// run suspending, per-tenant work: the Orchestrator's job loop and
// VectorService's embed/upsert/search calls. It follows the teacher's
// internal/middleware/monitoring.go shape (a Metrics struct holding
// pre-registered collectors, constructed once and passed around) rather
// than package-level globals, so tests can register against a private
// prometheus.Registry.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds every Prometheus collector the domain emits.
type Metrics struct {
	JobsTotal       *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	JobsInFlight    prometheus.Gauge
	EmbedBatches    *prometheus.CounterVec
	EmbedDuration   *prometheus.HistogramVec
	VectorsUpserted *prometheus.CounterVec
	SearchDuration  *prometheus.HistogramVec
	GapsGenerated   *prometheus.CounterVec
}

// NewMetrics builds and registers every collector against reg. Callers in
// cmd/controlplane register against prometheus.DefaultRegisterer and serve
// it via promhttp.Handler, matching the teacher's MetricsHandler pattern.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_jobs_total",
				Help: "Total orchestrator jobs processed, by type and outcome.",
			},
			[]string{"job_type", "outcome"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_job_duration_seconds",
				Help:    "Orchestrator job processing latency in seconds, by type.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"job_type"},
		),
		JobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_jobs_in_flight",
				Help: "Number of jobs currently being processed across all tenants.",
			},
		),
		EmbedBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorservice_embed_batches_total",
				Help: "Total embedding batches submitted, by outcome.",
			},
			[]string{"outcome"},
		),
		EmbedDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectorservice_embed_and_upsert_duration_seconds",
				Help:    "EmbedAndUpsert call latency in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		VectorsUpserted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vectorservice_vectors_upserted_total",
				Help: "Total vector chunks upserted, by tenant.",
			},
			[]string{"tenant_id"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vectorservice_search_duration_seconds",
				Help:    "Search/HybridSearch call latency in seconds, by kind.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"kind"},
		),
		GapsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gapanalysis_gaps_generated_total",
				Help: "Total knowledge gaps generated, by strategy.",
			},
			[]string{"strategy"},
		),
	}

	reg.MustRegister(
		m.JobsTotal, m.JobDuration, m.JobsInFlight,
		m.EmbedBatches, m.EmbedDuration, m.VectorsUpserted, m.SearchDuration,
		m.GapsGenerated,
	)
	return m
}

// ObserveJob records one orchestrator job's outcome and latency.
func (m *Metrics) ObserveJob(jobType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(jobType, outcome).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(elapsed.Seconds())
}

// ObserveEmbedBatch records one embedding batch call's outcome.
func (m *Metrics) ObserveEmbedBatch(outcome string) {
	if m == nil {
		return
	}
	m.EmbedBatches.WithLabelValues(outcome).Inc()
}

// ObserveEmbedAndUpsert records one full EmbedAndUpsert call's outcome and
// latency.
func (m *Metrics) ObserveEmbedAndUpsert(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EmbedDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// AddVectorsUpserted adds n to the running total of vectors upserted for
// tenantID.
func (m *Metrics) AddVectorsUpserted(tenantID string, n int) {
	if m == nil {
		return
	}
	m.VectorsUpserted.WithLabelValues(tenantID).Add(float64(n))
}

// ObserveSearch records one Search/HybridSearch call's latency, by kind
// ("dense" or "hybrid").
func (m *Metrics) ObserveSearch(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// AddGapsGenerated adds n to the running total of knowledge gaps generated
// by strategy.
func (m *Metrics) AddGapsGenerated(strategy string, n int) {
	if m == nil {
		return
	}
	m.GapsGenerated.WithLabelValues(strategy).Add(float64(n))
}

// JobStarted and JobFinished bracket one job's in-flight window.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsInFlight.Inc()
}

func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.JobsInFlight.Dec()
}

// tracerName is the package-wide tracer name every span in this domain is
// created under, matching how the teacher names its Prometheus metrics
// with a consistent subsystem prefix.
const tracerName = "github.com/lantern-ai/lantern-engine"

// Tracer returns the global OTel tracer for this module. No code in this
// module calls otel.SetTracerProvider, so unless an embedding program
// installs a provider, otel's no-op provider makes every span a zero-cost
// stub; either way this package never needs a nil check.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
