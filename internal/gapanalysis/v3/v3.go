package v3

import (
	"context"
	"fmt"

	"github.com/lantern-ai/lantern-engine/internal/gapanalysis"
	"github.com/lantern-ai/lantern-engine/internal/llm"
)

// Analyzer is strategy 5 from spec.md §4.6, the default pipeline:
// deep extraction -> knowledge-graph assembly -> eight analyzers ->
// question synthesis -> persistence. GraphStore is optional; a nil
// store skips Neo4j persistence without affecting gap generation,
// since the analyzers only ever read the in-memory Graph.
type Analyzer struct {
	client     llm.Client
	store      gapanalysis.GapStore
	graphStore *GraphStore
	feedback   *FeedbackRecorder
}

// New creates a v3 Analyzer. graphStore may be nil.
func New(client llm.Client, store gapanalysis.GapStore, graphStore *GraphStore, feedback *FeedbackRecorder) *Analyzer {
	if feedback == nil {
		feedback = NewFeedbackRecorder()
	}
	return &Analyzer{client: client, store: store, graphStore: graphStore, feedback: feedback}
}

var _ gapanalysis.Analyzer = (*Analyzer)(nil)

// Feedback exposes the analyzer's FeedbackRecorder so the Orchestrator
// can call RecordOutcome when a gap later reaches model.GapVerified.
func (a *Analyzer) Feedback() *FeedbackRecorder {
	return a.feedback
}

func (a *Analyzer) Analyze(ctx context.Context, req gapanalysis.AnalyzeRequest) (*gapanalysis.AnalysisResult, error) {
	prepared, stats := gapanalysis.PrepareCorpus(req.Documents, gapanalysis.MaxCorpusChars)

	facts := ExtractAll(ctx, a.client, prepared)
	if a.graphStore != nil {
		if err := a.graphStore.Persist(ctx, req.TenantID, facts); err != nil {
			return nil, fmt.Errorf("v3.Analyzer.Analyze: graph persist: %w", err)
		}
	}

	graph := BuildGraph(facts)
	findings := RunAllAnalyzers(graph)

	gaps, err := SynthesizeQuestions(ctx, a.client, findings, a.feedback, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("v3.Analyzer.Analyze: %w", err)
	}

	for _, g := range gaps {
		g.TenantID = req.TenantID
		if err := a.store.Create(ctx, g); err != nil {
			return nil, fmt.Errorf("v3.Analyzer.Analyze: persist: %w", err)
		}
	}

	return &gapanalysis.AnalysisResult{Gaps: gaps, Stats: stats}, nil
}
