package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lantern-ai/lantern-engine/internal/model"
	"github.com/lantern-ai/lantern-engine/internal/vectorservice"
)

// analyzerFromContext extracts the v3 "analyzer" field a gap's Context
// was stamped with in questions.go. Gaps from non-v3 strategies don't
// carry this key and report ok=false.
func analyzerFromContext(raw json.RawMessage) (string, bool) {
	var fields struct {
		Analyzer string `json:"analyzer"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil || fields.Analyzer == "" {
		return "", false
	}
	return fields.Analyzer, true
}

// SubmitAnswer is the C11 submit_answer responsibility: persist the
// answer, mark its question answered on the owning gap, then embed the
// answer text as a synthetic Document under doc_id = gap:<gap_id> so
// it becomes searchable (spec.md §4.7).
func (o *Orchestrator) SubmitAnswer(ctx context.Context, a *model.GapAnswer) error {
	if err := o.deps.Store.Answers.Create(ctx, a); err != nil {
		return fmt.Errorf("orchestrator.SubmitAnswer: %w", err)
	}

	gap, err := o.deps.Store.Gaps.Get(ctx, a.TenantID, a.GapID)
	if err != nil {
		return fmt.Errorf("orchestrator.SubmitAnswer: load gap: %w", err)
	}
	if a.QuestionIndex >= 0 && a.QuestionIndex < len(gap.Questions) {
		gap.Questions[a.QuestionIndex].Answered = true
		answerID := a.ID
		gap.Questions[a.QuestionIndex].AnswerID = &answerID
	}
	gap.RecomputeStatus()
	if err := o.deps.Store.Gaps.Update(ctx, gap); err != nil {
		return fmt.Errorf("orchestrator.SubmitAnswer: update gap: %w", err)
	}

	if o.deps.Vector != nil {
		_, err := o.deps.Vector.EmbedAndUpsert(ctx, a.TenantID, []vectorservice.Document{{
			DocID:   model.SyntheticAnswerDocID(a.GapID),
			Title:   a.QuestionText,
			Content: a.AnswerText,
		}})
		if err != nil {
			return fmt.Errorf("orchestrator.SubmitAnswer: embed: %w", err)
		}
	}

	return nil
}

// CompleteProcess is the C11 complete_process(tenant) responsibility:
// force a full re-embed of every confirmed document and every answer,
// then mark every ANSWERED gap VERIFIED — the one-way transition
// model.KnowledgeGap.RecomputeStatus defers to this call.
func (o *Orchestrator) CompleteProcess(ctx context.Context, tenantID string) error {
	if o.deps.Vector != nil {
		confirmed, err := o.deps.Store.Documents.ListConfirmed(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("orchestrator.CompleteProcess: list confirmed: %w", err)
		}
		docs := make([]vectorservice.Document, len(confirmed))
		for i, d := range confirmed {
			docs[i] = vectorservice.Document{DocID: d.DocID(), Title: d.Title, Content: d.Content, Metadata: d.Metadata}
		}
		if len(docs) > 0 {
			if _, err := o.deps.Vector.EmbedAndUpsert(ctx, tenantID, docs); err != nil {
				return fmt.Errorf("orchestrator.CompleteProcess: re-embed documents: %w", err)
			}
		}

		answers, err := o.deps.Store.Answers.ListByTenant(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("orchestrator.CompleteProcess: list answers: %w", err)
		}
		answerDocs := make([]vectorservice.Document, len(answers))
		for i, a := range answers {
			answerDocs[i] = vectorservice.Document{
				DocID:   model.SyntheticAnswerDocID(a.GapID),
				Title:   a.QuestionText,
				Content: a.AnswerText,
			}
		}
		if len(answerDocs) > 0 {
			if _, err := o.deps.Vector.EmbedAndUpsert(ctx, tenantID, answerDocs); err != nil {
				return fmt.Errorf("orchestrator.CompleteProcess: re-embed answers: %w", err)
			}
		}
	}

	answered := model.GapAnswered
	gaps, err := o.deps.Store.Gaps.ListByTenant(ctx, tenantID, &answered)
	if err != nil {
		return fmt.Errorf("orchestrator.CompleteProcess: list answered gaps: %w", err)
	}
	for _, g := range gaps {
		if err := o.deps.Store.Gaps.MarkVerified(ctx, tenantID, g.ID); err != nil {
			return fmt.Errorf("orchestrator.CompleteProcess: mark verified: %w", err)
		}
		o.recordVerified(g)
	}

	return nil
}

// recordVerified feeds a verified gap's v3 analyzer name (the "analyzer"
// key of its Context) back into the v3 FeedbackRecorder, if this orchestrator was built with one, so its
// next run weights that analyzer's future findings accordingly. A gap
// from a non-v3 strategy has no analyzer-level feedback loop to feed.
func (o *Orchestrator) recordVerified(g *model.KnowledgeGap) {
	if o.deps.Feedback == nil {
		return
	}
	analyzer, ok := analyzerFromContext(g.Context)
	if !ok {
		return
	}
	o.deps.Feedback.RecordOutcome(analyzer, true)
}
