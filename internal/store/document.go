package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lantern-ai/lantern-engine/internal/model"
)

// DocumentRepo persists model.Document rows and their delete tombstones.
// Upsert is keyed on (tenant_id, external_id), matching the re-sync
// contract in spec.md §4.1: a connector resyncing the same item updates
// it in place rather than creating a duplicate.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

func (r *DocumentRepo) Upsert(ctx context.Context, d *model.Document) error {
	const q = `
		INSERT INTO documents (
			id, tenant_id, source_type, external_id, title, content, content_sha1,
			source_created_at, source_updated_at, author, classification,
			classification_confidence, classification_borderline, status,
			user_confirmed, structured_summary, structured_summary_at,
			embedding_generated, is_deleted, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, now(), now()
		)
		ON CONFLICT (tenant_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			content_sha1 = EXCLUDED.content_sha1,
			source_updated_at = EXCLUDED.source_updated_at,
			author = EXCLUDED.author,
			metadata = EXCLUDED.metadata,
			updated_at = now()
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		d.ID, d.TenantID, d.SourceType, d.ExternalID, d.Title, d.Content, d.ContentSHA1,
		d.SourceCreatedAt, d.SourceUpdatedAt, d.Author, d.Classification,
		d.ClassificationConf, d.ClassificationBorder, d.Status,
		d.UserConfirmed, d.StructuredSummary, d.StructuredSummaryAt,
		d.EmbeddingGenerated, d.IsDeleted, d.Metadata,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *DocumentRepo) Get(ctx context.Context, tenantID, id string) (*model.Document, error) {
	const q = `
		SELECT id, tenant_id, source_type, external_id, title, content, content_sha1,
			source_created_at, source_updated_at, author, classification,
			classification_confidence, classification_borderline, status,
			user_confirmed, structured_summary, structured_summary_at,
			embedding_generated, is_deleted, metadata, created_at, updated_at
		FROM documents WHERE tenant_id = $1 AND id = $2`
	return scanDocument(r.pool.QueryRow(ctx, q, tenantID, id))
}

func (r *DocumentRepo) GetByExternalID(ctx context.Context, tenantID string, sourceType model.ConnectorType, externalID string) (*model.Document, error) {
	const q = `
		SELECT id, tenant_id, source_type, external_id, title, content, content_sha1,
			source_created_at, source_updated_at, author, classification,
			classification_confidence, classification_borderline, status,
			user_confirmed, structured_summary, structured_summary_at,
			embedding_generated, is_deleted, metadata, created_at, updated_at
		FROM documents WHERE tenant_id = $1 AND source_type = $2 AND external_id = $3`
	return scanDocument(r.pool.QueryRow(ctx, q, tenantID, sourceType, externalID))
}

func (r *DocumentRepo) ListPendingClassification(ctx context.Context, tenantID string, limit int) ([]*model.Document, error) {
	const q = `
		SELECT id, tenant_id, source_type, external_id, title, content, content_sha1,
			source_created_at, source_updated_at, author, classification,
			classification_confidence, classification_borderline, status,
			user_confirmed, structured_summary, structured_summary_at,
			embedding_generated, is_deleted, metadata, created_at, updated_at
		FROM documents
		WHERE tenant_id = $1 AND status = $2 AND is_deleted = false
		ORDER BY created_at
		LIMIT $3`
	rows, err := r.pool.Query(ctx, q, tenantID, model.DocPending, limit)
	if err != nil {
		return nil, fmt.Errorf("store.DocumentRepo.ListPendingClassification: %w", err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListForAnalysis returns the documents a gap-analysis run should
// consider for tenantID, most-recently-updated first, per spec.md §4.1's
// get_documents_for_analysis contract. Deleted documents are always
// excluded; includePending controls whether documents still in PENDING
// status (not yet classified) are included. limit <= 0 means no limit.
func (r *DocumentRepo) ListForAnalysis(ctx context.Context, tenantID string, includePending bool, limit int) ([]*model.Document, error) {
	q := `
		SELECT id, tenant_id, source_type, external_id, title, content, content_sha1,
			source_created_at, source_updated_at, author, classification,
			classification_confidence, classification_borderline, status,
			user_confirmed, structured_summary, structured_summary_at,
			embedding_generated, is_deleted, metadata, created_at, updated_at
		FROM documents
		WHERE tenant_id = $1 AND is_deleted = false`
	if !includePending {
		q += ` AND status != '` + string(model.DocPending) + `'`
	}
	q += ` ORDER BY updated_at DESC`

	args := []any{tenantID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store.DocumentRepo.ListForAnalysis: %w", err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListConfirmed returns every user-confirmed document for tenantID, the
// set complete_process re-embeds in full per spec.md §4.7.
func (r *DocumentRepo) ListConfirmed(ctx context.Context, tenantID string) ([]*model.Document, error) {
	const q = `
		SELECT id, tenant_id, source_type, external_id, title, content, content_sha1,
			source_created_at, source_updated_at, author, classification,
			classification_confidence, classification_borderline, status,
			user_confirmed, structured_summary, structured_summary_at,
			embedding_generated, is_deleted, metadata, created_at, updated_at
		FROM documents
		WHERE tenant_id = $1 AND is_deleted = false AND status = $2
		ORDER BY updated_at DESC`
	rows, err := r.pool.Query(ctx, q, tenantID, model.DocConfirmed)
	if err != nil {
		return nil, fmt.Errorf("store.DocumentRepo.ListConfirmed: %w", err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DocumentRepo) SetStructuredSummary(ctx context.Context, tenantID, id string, summary []byte, at time.Time) error {
	const q = `
		UPDATE documents SET structured_summary = $3, structured_summary_at = $4, status = $5, updated_at = now()
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, tenantID, id, summary, at, model.DocClassified)
	if err != nil {
		return fmt.Errorf("store.DocumentRepo.SetStructuredSummary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) MarkEmbedded(ctx context.Context, tenantID, id string) error {
	const q = `UPDATE documents SET embedding_generated = true, updated_at = now() WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, tenantID, id)
	if err != nil {
		return fmt.Errorf("store.DocumentRepo.MarkEmbedded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) ConfirmClassification(ctx context.Context, tenantID, id string, accepted model.Classification) error {
	const q = `
		UPDATE documents SET classification = $3, user_confirmed = true, status = $4, updated_at = now()
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, tenantID, id, accepted, model.DocConfirmed)
	if err != nil {
		return fmt.Errorf("store.DocumentRepo.ConfirmClassification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a document deleted and records a tombstone so a
// future resync of the same external_id does not resurrect it, per
// spec.md §4.1.
func (r *DocumentRepo) SoftDelete(ctx context.Context, tenantID, id, externalID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store.DocumentRepo.SoftDelete: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE documents SET is_deleted = true, updated_at = now() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id); err != nil {
		return fmt.Errorf("store.DocumentRepo.SoftDelete: update: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO deleted_documents (tenant_id, external_id, deleted_at) VALUES ($1, $2, now())
		 ON CONFLICT (tenant_id, external_id) DO UPDATE SET deleted_at = now()`,
		tenantID, externalID); err != nil {
		return fmt.Errorf("store.DocumentRepo.SoftDelete: tombstone: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *DocumentRepo) IsTombstoned(ctx context.Context, tenantID, externalID string) (bool, error) {
	const q = `SELECT 1 FROM deleted_documents WHERE tenant_id = $1 AND external_id = $2`
	var one int
	err := r.pool.QueryRow(ctx, q, tenantID, externalID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store.DocumentRepo.IsTombstoned: %w", err)
	}
	return true, nil
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	d := &model.Document{}
	err := row.Scan(
		&d.ID, &d.TenantID, &d.SourceType, &d.ExternalID, &d.Title, &d.Content, &d.ContentSHA1,
		&d.SourceCreatedAt, &d.SourceUpdatedAt, &d.Author, &d.Classification,
		&d.ClassificationConf, &d.ClassificationBorder, &d.Status,
		&d.UserConfirmed, &d.StructuredSummary, &d.StructuredSummaryAt,
		&d.EmbeddingGenerated, &d.IsDeleted, &d.Metadata, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan document: %w", err)
	}
	return d, nil
}

func scanDocumentRows(rows pgx.Rows) (*model.Document, error) {
	d := &model.Document{}
	err := rows.Scan(
		&d.ID, &d.TenantID, &d.SourceType, &d.ExternalID, &d.Title, &d.Content, &d.ContentSHA1,
		&d.SourceCreatedAt, &d.SourceUpdatedAt, &d.Author, &d.Classification,
		&d.ClassificationConf, &d.ClassificationBorder, &d.Status,
		&d.UserConfirmed, &d.StructuredSummary, &d.StructuredSummaryAt,
		&d.EmbeddingGenerated, &d.IsDeleted, &d.Metadata, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: scan document row: %w", err)
	}
	return d, nil
}
