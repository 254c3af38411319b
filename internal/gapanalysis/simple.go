package gapanalysis

import (
	"context"
	"fmt"

	"github.com/lantern-ai/lantern-engine/internal/llm"
)

// SimpleAnalyzer is strategy 1 from spec.md §4.6: a single LLM pass over
// the prepared corpus, roughly one gap per topical cluster the model
// identifies. Grounded on the source platform's simple_gap_analyzer.py.
type SimpleAnalyzer struct {
	client llm.Client
	store  GapStore
}

// NewSimple creates a SimpleAnalyzer.
func NewSimple(client llm.Client, store GapStore) *SimpleAnalyzer {
	return &SimpleAnalyzer{client: client, store: store}
}

var _ Analyzer = (*SimpleAnalyzer)(nil)

const simpleSystemPrompt = `You analyze a corpus of summarized documents from an organization and identify knowledge gaps: things a new team member or the organization itself would need to know but that are not documented anywhere in the corpus.

Respond with a JSON array only, no commentary, each entry matching exactly:
{"title": "...", "description": "...", "category": "DECISION|TECHNICAL|PROCESS|CONTEXT|RELATIONSHIP|TIMELINE|OUTCOME|RATIONALE", "priority": 1-5, "questions": ["...", "..."]}

priority 5 means work halts without this knowledge, 1 means background nice-to-know. Group related missing knowledge into a single gap rather than one gap per tiny question.`

func (a *SimpleAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	prepared, stats := PrepareCorpus(req.Documents, MaxCorpusChars)

	raw, err := a.client.Generate(ctx, simpleSystemPrompt, renderCorpus(prepared))
	if err != nil {
		return nil, fmt.Errorf("gapanalysis.SimpleAnalyzer.Analyze: %w", err)
	}

	candidates, ok := parseCandidates(raw)
	if !ok {
		// Per spec.md §4.3's error model extended to gap analysis:
		// an unparseable LLM response yields zero gaps, not an error.
		return &AnalysisResult{Stats: stats}, nil
	}

	gaps := buildGaps(candidates, req.ProjectID, "simple", stats, docIDs(prepared))
	if err := persistAll(ctx, a.store, req.TenantID, gaps); err != nil {
		return nil, fmt.Errorf("gapanalysis.SimpleAnalyzer.Analyze: persist: %w", err)
	}

	return &AnalysisResult{Gaps: gaps, Stats: stats}, nil
}
