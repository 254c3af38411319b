package orchestrator

import (
	"encoding/json"
	"testing"
)

func TestJobSubject(t *testing.T) {
	got := jobSubject("tenant-123")
	want := "tenant.tenant-123.jobs"
	if got != want {
		t.Errorf("jobSubject(%q) = %q, want %q", "tenant-123", got, want)
	}
}

func TestJob_RoundTripsThroughJSON(t *testing.T) {
	projectID := "proj-1"
	job := Job{
		Type:        JobAnalyze,
		TenantID:    "tenant-1",
		Strategy:    "v3",
		ProjectID:   &projectID,
		MaxDocs:     50,
		Answer:      json.RawMessage(`{"text":"hello"}`),
		ConnectorID: "conn-1",
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Job
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Type != job.Type || got.TenantID != job.TenantID || got.Strategy != job.Strategy {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, job)
	}
	if got.ProjectID == nil || *got.ProjectID != projectID {
		t.Errorf("ProjectID round trip = %v, want %q", got.ProjectID, projectID)
	}
	if string(got.Answer) != string(job.Answer) {
		t.Errorf("Answer round trip = %s, want %s", got.Answer, job.Answer)
	}
}

func TestJob_OmitsEmptyOptionalFields(t *testing.T) {
	job := Job{Type: JobSync, TenantID: "tenant-1"}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	for _, field := range []string{"connectorId", "strategy", "projectId", "maxDocuments", "answer"} {
		if _, ok := raw[field]; ok {
			t.Errorf("expected %q to be omitted for a bare sync job, got %v", field, raw[field])
		}
	}
}
