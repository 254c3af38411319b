package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lantern-ai/lantern-engine/internal/gapanalysis"
	"github.com/lantern-ai/lantern-engine/internal/model"
)

// Analyze runs the C11 analyze(tenant, strategy) responsibility: load
// documents for analysis from Store, run the named strategy, persist
// the gaps it produces (the strategies persist via their own GapStore
// dependency, so this just loads and delegates).
func (o *Orchestrator) Analyze(ctx context.Context, tenantID, strategy string, projectID *string, maxDocuments int) (*gapanalysis.AnalysisResult, error) {
	a, ok := o.deps.Analyzers[strategy]
	if !ok {
		return nil, fmt.Errorf("orchestrator.Analyze: unknown strategy %q", strategy)
	}

	includePending := false
	docs, err := o.deps.Store.Documents.ListForAnalysis(ctx, tenantID, includePending, maxDocuments)
	if err != nil {
		return nil, fmt.Errorf("orchestrator.Analyze: load documents: %w", err)
	}

	sourceDocs := make([]gapanalysis.SourceDocument, 0, len(docs))
	for _, d := range docs {
		sourceDocs = append(sourceDocs, gapanalysis.SourceDocument{
			DocID:             d.DocID(),
			Title:             d.Title,
			Content:           d.Content,
			StructuredSummary: unmarshalSummary(d.StructuredSummary),
			UpdatedAt:         d.UpdatedAt,
		})
	}

	release := o.llmGate.acquire()
	defer release()

	result, err := a.Analyze(ctx, gapanalysis.AnalyzeRequest{
		TenantID:       tenantID,
		ProjectID:      projectID,
		IncludePending: includePending,
		MaxDocuments:   maxDocuments,
		Documents:      sourceDocs,
	})
	if err != nil {
		return nil, err
	}
	o.deps.Metrics.AddGapsGenerated(strategy, len(result.Gaps))
	return result, nil
}

func unmarshalSummary(raw json.RawMessage) *model.StructuredSummary {
	if len(raw) == 0 {
		return nil
	}
	var s model.StructuredSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}
