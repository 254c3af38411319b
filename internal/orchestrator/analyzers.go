package orchestrator

import (
	"github.com/lantern-ai/lantern-engine/internal/gapanalysis"
	"github.com/lantern-ai/lantern-engine/internal/gapanalysis/v3"
	"github.com/lantern-ai/lantern-engine/internal/llm"
)

// NewAnalyzerSet builds the strategy -> gapanalysis.Analyzer map for
// Deps.Analyzers, covering all five strategies from spec.md §4.6.
// This is the only place in the module allowed to import both
// internal/gapanalysis and internal/gapanalysis/v3 in the same file,
// since v3 imports its parent package for the shared Analyzer contract
// and the parent must not import v3 back.
func NewAnalyzerSet(client llm.Client, store gapanalysis.GapStore, graphStore *v3.GraphStore, feedback *v3.FeedbackRecorder) map[string]gapanalysis.Analyzer {
	return map[string]gapanalysis.Analyzer{
		"simple":      gapanalysis.NewSimple(client, store),
		"multistage":  gapanalysis.NewMultiStage(client, store),
		"goal_first":  gapanalysis.NewGoalFirst(client, store),
		"intelligent": gapanalysis.NewIntelligent(client, store),
		"v3":          v3.New(client, store, graphStore, feedback),
	}
}
