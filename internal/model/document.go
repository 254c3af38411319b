package model

import (
	"encoding/json"
	"time"
)

// Classification is the document's triage bucket, assigned by the
// Extractor/classification step on first sync.
type Classification string

const (
	ClassWork     Classification = "WORK"
	ClassPersonal Classification = "PERSONAL"
	ClassSpam     Classification = "SPAM"
	ClassUnknown  Classification = "UNKNOWN"
)

// DocumentStatus tracks a Document through the ingestion pipeline.
type DocumentStatus string

const (
	DocPending    DocumentStatus = "PENDING"
	DocProcessing DocumentStatus = "PROCESSING"
	DocClassified DocumentStatus = "CLASSIFIED"
	DocConfirmed  DocumentStatus = "CONFIRMED"
	DocRejected   DocumentStatus = "REJECTED"
)

// Document is the canonical record derived from one item in a source
// system. (tenant_id, external_id) is unique; re-sync upserts by this key.
//
// The wire shape is keyword-style, matching spec.md §9's open-question
// resolution: callers always construct Document by field name, never by
// position, so adding a field never silently misassigns another.
type Document struct {
	ID                 string          `json:"id"`
	TenantID           string          `json:"tenantId"`
	SourceType         ConnectorType   `json:"sourceType"`
	ExternalID         string          `json:"externalId"`
	Title              string          `json:"title"`
	Content             string         `json:"content"`
	ContentSHA1          string        `json:"contentSha1"`
	SourceCreatedAt      time.Time     `json:"sourceCreatedAt"`
	SourceUpdatedAt      time.Time     `json:"sourceUpdatedAt"`
	Author               string        `json:"author"`
	Classification       Classification `json:"classification"`
	ClassificationConf   float64       `json:"classificationConfidence"`
	ClassificationBorder bool          `json:"classificationBorderline"`
	Status               DocumentStatus `json:"status"`
	UserConfirmed        bool          `json:"userConfirmed"`
	StructuredSummary    json.RawMessage `json:"structuredSummary,omitempty"`
	StructuredSummaryAt  *time.Time    `json:"structuredSummaryAt,omitempty"`
	EmbeddingGenerated   bool          `json:"embeddingGenerated"`
	IsDeleted            bool          `json:"isDeleted"`
	Metadata             map[string]string `json:"metadata,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// DocID returns the wire-level doc_id format required by spec.md §6:
// "<source>_<external_id>".
func (d *Document) DocID() string {
	return string(d.SourceType) + "_" + d.ExternalID
}

// DeletedDocument is a tombstone keyed by (tenant_id, external_id) that
// prevents a connector from resurrecting a user-deleted item on resync.
type DeletedDocument struct {
	TenantID   string    `json:"tenantId"`
	ExternalID string    `json:"externalId"`
	DeletedAt  time.Time `json:"deletedAt"`
}

// StructuredSummary is the fixed-shape JSON produced by the Extractor and
// used as the primary input to gap analysis. See spec.md §4.3.
type StructuredSummary struct {
	Summary           string       `json:"summary"`
	KeyTopics         []string     `json:"key_topics"`
	Entities          Entities     `json:"entities"`
	Decisions         []string     `json:"decisions"`
	Processes         []string     `json:"processes"`
	Dates             []DateEvent  `json:"dates"`
	ActionItems       []string     `json:"action_items"`
	TechnicalDetails  []string     `json:"technical_details"`
	WordCount         int          `json:"word_count"`
}

// Entities groups the named entities extracted from a document.
type Entities struct {
	People        []string `json:"people"`
	Systems       []string `json:"systems"`
	Organizations []string `json:"organizations"`
}

// DateEvent pairs a date string with the event it marks.
type DateEvent struct {
	Date  string `json:"date"`
	Event string `json:"event"`
}
