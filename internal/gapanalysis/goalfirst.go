package gapanalysis

import (
	"context"
	"fmt"

	"github.com/lantern-ai/lantern-engine/internal/llm"
)

// GoalFirstAnalyzer is strategy 3 from spec.md §4.6: four sequential
// technical-reasoning passes that explicitly forbid business/strategy/
// timeline questions, staying narrowly focused on "why X over Y"
// engineering decisions. Grounded on the source platform's
// goal_first_gap_analyzer.py.
type GoalFirstAnalyzer struct {
	client llm.Client
	store  GapStore
}

// NewGoalFirst creates a GoalFirstAnalyzer.
func NewGoalFirst(client llm.Client, store GapStore) *GoalFirstAnalyzer {
	return &GoalFirstAnalyzer{client: client, store: store}
}

var _ Analyzer = (*GoalFirstAnalyzer)(nil)

const goalFirstGuardrail = `Stay strictly technical. Never produce a question about business strategy, timelines, budgets, or personnel — only about technical decisions, their alternatives, and their rationale.`

var goalFirstStagePrompts = []string{
	`Extract the technical context of this corpus: what systems, languages, frameworks, and architectural boundaries are in play. ` + goalFirstGuardrail,
	`Given the technical context above, list the concrete technical decisions made (a choice of technology, pattern, or approach). ` + goalFirstGuardrail,
	`For each technical decision above, infer the alternatives that were plausibly considered but not chosen, based on what is conventional for this kind of system. ` + goalFirstGuardrail,
	`For each decision and its inferred alternatives, produce "why X over Y" knowledge gaps. Respond with a JSON array only, no commentary, each entry matching exactly:
{"title": "...", "description": "...", "category": "DECISION|TECHNICAL|PROCESS|CONTEXT|RELATIONSHIP|TIMELINE|OUTCOME|RATIONALE", "priority": 1-5, "questions": ["...", "..."]}
` + goalFirstGuardrail,
}

func (a *GoalFirstAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	prepared, stats := PrepareCorpus(req.Documents, MaxCorpusChars)
	transcript := renderCorpus(prepared)

	var lastStage string
	for i, stagePrompt := range goalFirstStagePrompts {
		out, err := a.client.Generate(ctx, stagePrompt, transcript)
		if err != nil {
			return nil, fmt.Errorf("gapanalysis.GoalFirstAnalyzer.Analyze: stage %d: %w", i+1, err)
		}
		lastStage = out
		transcript = transcript + "\n\n--- stage " + fmt.Sprint(i+1) + " output ---\n" + out
	}

	candidates, ok := parseCandidates(lastStage)
	if !ok {
		return &AnalysisResult{Stats: stats}, nil
	}

	gaps := buildGaps(candidates, req.ProjectID, "goal_first", stats, docIDs(prepared))
	if err := persistAll(ctx, a.store, req.TenantID, gaps); err != nil {
		return nil, fmt.Errorf("gapanalysis.GoalFirstAnalyzer.Analyze: persist: %w", err)
	}

	return &AnalysisResult{Gaps: gaps, Stats: stats}, nil
}
