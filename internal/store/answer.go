package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lantern-ai/lantern-engine/internal/model"
)

// AnswerRepo persists model.GapAnswer rows, one per question answered.
type AnswerRepo struct {
	pool *pgxpool.Pool
}

func (r *AnswerRepo) Create(ctx context.Context, a *model.GapAnswer) error {
	const q = `
		INSERT INTO gap_answers (id, gap_id, tenant_id, user_id, question_index, question_text, answer_text, is_voice, transcription_confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, to_timestamp($10))`
	_, err := r.pool.Exec(ctx, q, a.ID, a.GapID, a.TenantID, a.UserID, a.QuestionIndex,
		a.QuestionText, a.AnswerText, a.IsVoice, a.TranscriptionConfidence, a.CreatedAtUnix)
	if err != nil {
		return fmt.Errorf("store.AnswerRepo.Create: %w", err)
	}
	return nil
}

// ListByTenant returns every answer recorded for tenantID across all
// gaps, the set complete_process re-embeds per spec.md §4.7.
func (r *AnswerRepo) ListByTenant(ctx context.Context, tenantID string) ([]*model.GapAnswer, error) {
	const q = `
		SELECT id, gap_id, tenant_id, user_id, question_index, question_text, answer_text, is_voice,
			transcription_confidence, extract(epoch from created_at)::bigint
		FROM gap_answers WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store.AnswerRepo.ListByTenant: %w", err)
	}
	defer rows.Close()

	var out []*model.GapAnswer
	for rows.Next() {
		a := &model.GapAnswer{}
		if err := rows.Scan(&a.ID, &a.GapID, &a.TenantID, &a.UserID, &a.QuestionIndex, &a.QuestionText,
			&a.AnswerText, &a.IsVoice, &a.TranscriptionConfidence, &a.CreatedAtUnix); err != nil {
			return nil, fmt.Errorf("store.AnswerRepo.ListByTenant: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AnswerRepo) ListByGap(ctx context.Context, tenantID, gapID string) ([]*model.GapAnswer, error) {
	const q = `
		SELECT id, gap_id, tenant_id, user_id, question_index, question_text, answer_text, is_voice,
			transcription_confidence, extract(epoch from created_at)::bigint
		FROM gap_answers WHERE tenant_id = $1 AND gap_id = $2 ORDER BY question_index`
	rows, err := r.pool.Query(ctx, q, tenantID, gapID)
	if err != nil {
		return nil, fmt.Errorf("store.AnswerRepo.ListByGap: %w", err)
	}
	defer rows.Close()

	var out []*model.GapAnswer
	for rows.Next() {
		a := &model.GapAnswer{}
		if err := rows.Scan(&a.ID, &a.GapID, &a.TenantID, &a.UserID, &a.QuestionIndex, &a.QuestionText,
			&a.AnswerText, &a.IsVoice, &a.TranscriptionConfidence, &a.CreatedAtUnix); err != nil {
			return nil, fmt.Errorf("store.AnswerRepo.ListByGap: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
