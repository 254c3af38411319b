package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// contentPreviewLen bounds how much chunk content a query result carries
// back for keyword-boost scoring in vectorservice's hybrid search.
const contentPreviewLen = 500

// PGVectorIndex implements Index on top of the document_chunks table,
// using pgvector's HNSW index for cosine similarity search. Every query
// and write is scoped by tenant_id, the namespace layer of the
// three-layer isolation contract.
type PGVectorIndex struct {
	pool *pgxpool.Pool
}

// NewPGVectorIndex creates a PGVectorIndex.
func NewPGVectorIndex(pool *pgxpool.Pool) *PGVectorIndex {
	return &PGVectorIndex{pool: pool}
}

var _ Index = (*PGVectorIndex)(nil)

// Upsert writes vectors with pgx batching. A vector_id collision
// overwrites the existing row, making repeated upserts idempotent.
func (idx *PGVectorIndex) Upsert(ctx context.Context, tenantID string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, v := range vectors {
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return fmt.Errorf("vectorindex.Upsert: marshal metadata for %s: %w", v.ID, err)
		}
		embedding := pgvector.NewVector(v.Values)
		batch.Queue(`
			INSERT INTO document_chunks (id, tenant_id, doc_id, chunk_idx, content, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				metadata = EXCLUDED.metadata`,
			v.ID, tenantID, v.DocID, v.ChunkIdx, metaContent(v), embedding, meta,
		)
	}

	br := idx.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(vectors); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("vectorindex.Upsert: vector %d: %w", i, err)
		}
	}
	return nil
}

// metaContent pulls the chunk text out of Metadata["content"], where
// vectorservice stashes it before handing the Vector to the index.
func metaContent(v Vector) string {
	return v.Metadata["content"]
}

// Query runs a cosine-similarity search within tenantID's namespace,
// joining documents for the title each hit belongs to. filter, when
// set, is applied as an additional metadata equality constraint.
func (idx *PGVectorIndex) Query(ctx context.Context, tenantID string, embedding []float32, topK int, filter Filter) ([]SearchResult, error) {
	vec := pgvector.NewVector(embedding)

	q := `
		SELECT
			dc.id, dc.doc_id, dc.chunk_idx, dc.content, dc.metadata,
			1 - (dc.embedding <=> $1::vector) AS score,
			COALESCE(d.title, '')
		FROM document_chunks dc
		LEFT JOIN documents d ON d.tenant_id = dc.tenant_id AND d.id = dc.doc_id
		WHERE dc.tenant_id = $2
			AND (d.id IS NULL OR d.is_deleted = false)`

	args := []any{vec, tenantID}
	argN := 3
	// metadata ->> takes its key as a value, not an identifier, so the
	// key is parameterized alongside the value rather than interpolated.
	for k, v := range filter {
		q += fmt.Sprintf(" AND dc.metadata ->> $%d = $%d", argN, argN+1)
		args = append(args, k, v)
		argN += 2
	}
	q += fmt.Sprintf(" ORDER BY dc.embedding <=> $1::vector LIMIT $%d", argN)
	args = append(args, topK)

	rows, err := idx.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorindex.Query: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r       SearchResult
			content string
			meta    []byte
		)
		if err := rows.Scan(&r.VectorID, &r.DocID, &r.ChunkIdx, &content, &meta, &r.Score, &r.Title); err != nil {
			return nil, fmt.Errorf("vectorindex.Query: scan: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &r.Metadata)
		}
		r.ContentPreview = truncate(content, contentPreviewLen)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorindex.Query: %w", err)
	}
	return results, nil
}

// DeleteVectors removes specific vector rows, still scoped to tenantID
// so a cross-tenant ID cannot be used to delete another tenant's data.
func (idx *PGVectorIndex) DeleteVectors(ctx context.Context, tenantID string, vectorIDs []string) error {
	if len(vectorIDs) == 0 {
		return nil
	}
	_, err := idx.pool.Exec(ctx, `DELETE FROM document_chunks WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, vectorIDs)
	if err != nil {
		return fmt.Errorf("vectorindex.DeleteVectors: %w", err)
	}
	return nil
}

// DeleteNamespace purges every chunk belonging to tenantID.
func (idx *PGVectorIndex) DeleteNamespace(ctx context.Context, tenantID string) error {
	_, err := idx.pool.Exec(ctx, `DELETE FROM document_chunks WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("vectorindex.DeleteNamespace: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
