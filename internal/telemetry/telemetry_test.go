package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestNewMetrics_RegistersWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestObserveJob_IncrementsJobsTotal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveJob("sync", "success", 250*time.Millisecond)

	got := counterValue(t, m.JobsTotal.WithLabelValues("sync", "success"))
	if got != 1 {
		t.Errorf("JobsTotal = %v, want 1", got)
	}
}

func TestNilMetrics_MethodsAreNoOps(t *testing.T) {
	var m *Metrics
	m.ObserveJob("sync", "success", time.Second)
	m.ObserveEmbedBatch("success")
	m.ObserveEmbedAndUpsert("success", time.Second)
	m.AddVectorsUpserted("tenant-1", 10)
	m.ObserveSearch("dense", time.Millisecond)
	m.AddGapsGenerated("v3", 3)
	m.JobStarted()
	m.JobFinished()
}

func TestTracer_ReturnsNonNilTracer(t *testing.T) {
	if Tracer() == nil {
		t.Fatal("Tracer() returned nil")
	}
}
