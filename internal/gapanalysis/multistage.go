package gapanalysis

import (
	"context"
	"fmt"

	"github.com/lantern-ai/lantern-engine/internal/llm"
)

// MultiStageAnalyzer is strategy 2 from spec.md §4.6: five sequential
// reasoning passes, each stage's output feeding the next. Grounded on
// the source platform's multistage_gap_analyzer.py.
type MultiStageAnalyzer struct {
	client llm.Client
	store  GapStore
}

// NewMultiStage creates a MultiStageAnalyzer.
func NewMultiStage(client llm.Client, store GapStore) *MultiStageAnalyzer {
	return &MultiStageAnalyzer{client: client, store: store}
}

var _ Analyzer = (*MultiStageAnalyzer)(nil)

var multiStageStagePrompts = []string{
	// (i) corpus understanding
	`Read this corpus and extract its structure: key entities, named projects, a rough timeline, and how entities/projects relate to each other. Respond in prose, be concrete, cite doc_ids.`,
	// (ii) expert-mind simulation
	`Given the corpus understanding above and the original corpus, simulate the mental model of the team's most senior expert: what tacit knowledge, tribal rules, and implicit decisions do they carry that nothing in the corpus states explicitly?`,
	// (iii) new-hire simulation
	`Given everything above, simulate a new hire reading only this corpus: what would block them, what vocabulary is used without definition, what process steps are assumed rather than written down?`,
	// (iv) failure-mode analysis
	`Given everything above, identify undocumented failure recoveries, edge cases, and workarounds implied by the corpus but never fully written down.`,
	// (v) question synthesis
	`Given all analysis above, synthesize knowledge gaps. Respond with a JSON array only, no commentary, each entry matching exactly:
{"title": "...", "description": "...", "category": "DECISION|TECHNICAL|PROCESS|CONTEXT|RELATIONSHIP|TIMELINE|OUTCOME|RATIONALE", "priority": 1-5, "questions": ["...", "..."]}
Group by category. Priority 5 means work halts without this knowledge.`,
}

func (a *MultiStageAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	prepared, stats := PrepareCorpus(req.Documents, MaxCorpusChars)
	corpus := renderCorpus(prepared)

	transcript := corpus
	var lastStage string
	for i, stagePrompt := range multiStageStagePrompts {
		out, err := a.client.Generate(ctx, stagePrompt, transcript)
		if err != nil {
			return nil, fmt.Errorf("gapanalysis.MultiStageAnalyzer.Analyze: stage %d: %w", i+1, err)
		}
		lastStage = out
		transcript = transcript + "\n\n--- stage " + fmt.Sprint(i+1) + " output ---\n" + out
	}

	candidates, ok := parseCandidates(lastStage)
	if !ok {
		return &AnalysisResult{Stats: stats}, nil
	}

	gaps := buildGaps(candidates, req.ProjectID, "multistage", stats, docIDs(prepared))
	if err := persistAll(ctx, a.store, req.TenantID, gaps); err != nil {
		return nil, fmt.Errorf("gapanalysis.MultiStageAnalyzer.Analyze: persist: %w", err)
	}

	return &AnalysisResult{Gaps: gaps, Stats: stats}, nil
}
