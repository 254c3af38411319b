// Package vectorindex abstracts the vector database behind VectorService,
// with two interchangeable backends: Postgres+pgvector (the teacher's
// native store) and Qdrant (a dedicated vector engine with true
// per-tenant collections). Both enforce namespace-level tenant
// isolation as the first of the three layers described in spec.md §4.5.
package vectorindex

import "context"

// Vector is one embedding with its tenant-scoped identity and metadata.
type Vector struct {
	ID       string
	TenantID string
	DocID    string
	ChunkIdx int
	Values   []float32
	Metadata map[string]string
}

// SearchResult is one ranked hit from a dense similarity query.
type SearchResult struct {
	VectorID       string
	Score          float64
	DocID          string
	ChunkIdx       int
	Title          string
	ContentPreview string
	Metadata       map[string]string
}

// Filter narrows a query beyond the mandatory tenant namespace; nil or
// empty means no additional constraint.
type Filter map[string]string

// Index is the contract every vector backend implements. Every method
// takes tenantID explicitly and backends MUST scope both namespace and
// query filter to it — the isolation contract from spec.md §4.5.
type Index interface {
	// Upsert writes or overwrites vectors, batched internally by the
	// backend. Upserting the same vector_id again is idempotent.
	Upsert(ctx context.Context, tenantID string, vectors []Vector) error

	// Query runs a dense similarity search within tenantID's namespace.
	Query(ctx context.Context, tenantID string, embedding []float32, topK int, filter Filter) ([]SearchResult, error)

	// DeleteVectors removes specific vector IDs from a tenant's namespace.
	DeleteVectors(ctx context.Context, tenantID string, vectorIDs []string) error

	// DeleteNamespace purges every vector belonging to tenantID.
	DeleteNamespace(ctx context.Context, tenantID string) error
}
