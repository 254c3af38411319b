package orchestrator

import (
	"encoding/json"
	"fmt"
)

// JobType names one of the four Orchestrator responsibilities from
// spec.md §4.7.
type JobType string

const (
	JobSync            JobType = "sync"
	JobAnalyze         JobType = "analyze"
	JobSubmitAnswer    JobType = "submit_answer"
	JobCompleteProcess JobType = "complete_process"
)

// Job is the envelope published onto a tenant's JetStream subject
// (tenant.<id>.jobs) and consumed FIFO by that tenant's worker.
type Job struct {
	Type        JobType         `json:"type"`
	TenantID    string          `json:"tenantId"`
	ConnectorID string          `json:"connectorId,omitempty"`
	Strategy    string          `json:"strategy,omitempty"`
	ProjectID   *string         `json:"projectId,omitempty"`
	MaxDocs     int             `json:"maxDocuments,omitempty"`
	Answer      json.RawMessage `json:"answer,omitempty"`
}

// jobSubject returns the per-tenant FIFO subject a sync/analyze/answer
// job for tenantID is published and consumed on.
func jobSubject(tenantID string) string {
	return fmt.Sprintf("tenant.%s.jobs", tenantID)
}
