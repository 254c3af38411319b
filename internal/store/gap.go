package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lantern-ai/lantern-engine/internal/model"
)

// GapRepo persists model.KnowledgeGap rows. Questions are stored as a
// JSONB array on the gap row rather than a child table: gap analysis
// always rewrites the whole question set for a gap, so there is no
// per-question lifecycle that would justify normalizing it out.
type GapRepo struct {
	pool *pgxpool.Pool
}

func (r *GapRepo) Create(ctx context.Context, g *model.KnowledgeGap) error {
	questions, err := json.Marshal(g.Questions)
	if err != nil {
		return fmt.Errorf("store.GapRepo.Create: marshal questions: %w", err)
	}
	const q = `
		INSERT INTO knowledge_gaps (id, tenant_id, project_id, title, description, category, priority, status, questions, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.pool.Exec(ctx, q, g.ID, g.TenantID, g.ProjectID, g.Title, g.Description, g.Category, g.Priority, g.Status, questions, g.Context)
	if err != nil {
		return fmt.Errorf("store.GapRepo.Create: %w", err)
	}
	return nil
}

func (r *GapRepo) Get(ctx context.Context, tenantID, id string) (*model.KnowledgeGap, error) {
	const q = `
		SELECT id, tenant_id, project_id, title, description, category, priority, status, questions, context
		FROM knowledge_gaps WHERE tenant_id = $1 AND id = $2`
	return scanGap(r.pool.QueryRow(ctx, q, tenantID, id))
}

func (r *GapRepo) ListByTenant(ctx context.Context, tenantID string, status *model.GapStatus) ([]*model.KnowledgeGap, error) {
	var rows pgx.Rows
	var err error
	if status != nil {
		rows, err = r.pool.Query(ctx, `
			SELECT id, tenant_id, project_id, title, description, category, priority, status, questions, context
			FROM knowledge_gaps WHERE tenant_id = $1 AND status = $2 ORDER BY priority DESC, id`, tenantID, *status)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT id, tenant_id, project_id, title, description, category, priority, status, questions, context
			FROM knowledge_gaps WHERE tenant_id = $1 ORDER BY priority DESC, id`, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("store.GapRepo.ListByTenant: %w", err)
	}
	defer rows.Close()

	var out []*model.KnowledgeGap
	for rows.Next() {
		g, err := scanGapRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Update rewrites the mutable fields of a gap, including its question
// set and status. Callers must call g.RecomputeStatus() before Update
// so the ANSWERED invariant in model.KnowledgeGap stays enforced.
func (r *GapRepo) Update(ctx context.Context, g *model.KnowledgeGap) error {
	questions, err := json.Marshal(g.Questions)
	if err != nil {
		return fmt.Errorf("store.GapRepo.Update: marshal questions: %w", err)
	}
	const q = `
		UPDATE knowledge_gaps SET status = $3, questions = $4
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, g.TenantID, g.ID, g.Status, questions)
	if err != nil {
		return fmt.Errorf("store.GapRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GapRepo) MarkVerified(ctx context.Context, tenantID, id string) error {
	const q = `UPDATE knowledge_gaps SET status = $3 WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, tenantID, id, model.GapVerified)
	if err != nil {
		return fmt.Errorf("store.GapRepo.MarkVerified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGap(row pgx.Row) (*model.KnowledgeGap, error) {
	g := &model.KnowledgeGap{}
	var questions []byte
	err := row.Scan(&g.ID, &g.TenantID, &g.ProjectID, &g.Title, &g.Description, &g.Category, &g.Priority, &g.Status, &questions, &g.Context)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan gap: %w", err)
	}
	if err := json.Unmarshal(questions, &g.Questions); err != nil {
		return nil, fmt.Errorf("store: scan gap: unmarshal questions: %w", err)
	}
	return g, nil
}

func scanGapRows(rows pgx.Rows) (*model.KnowledgeGap, error) {
	g := &model.KnowledgeGap{}
	var questions []byte
	err := rows.Scan(&g.ID, &g.TenantID, &g.ProjectID, &g.Title, &g.Description, &g.Category, &g.Priority, &g.Status, &questions, &g.Context)
	if err != nil {
		return nil, fmt.Errorf("store: scan gap row: %w", err)
	}
	if err := json.Unmarshal(questions, &g.Questions); err != nil {
		return nil, fmt.Errorf("store: scan gap row: unmarshal questions: %w", err)
	}
	return g, nil
}
