package gapanalysis

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lantern-ai/lantern-engine/internal/llm"
)

// IntelligentAnalyzer is strategy 4 from spec.md §4.6: a pattern-based
// six-layer analysis (frame extraction, semantic-role gaps, discourse
// gaps, entity-graph gaps, cross-document verification, grounded
// question generation). The cross-document layer runs as a plain
// heuristic pass over doc-entity co-occurrence before handing the
// model a list of single-source entities to reason about, rather than
// asking the model to rediscover co-occurrence itself.
type IntelligentAnalyzer struct {
	client llm.Client
	store  GapStore
}

// NewIntelligent creates an IntelligentAnalyzer.
func NewIntelligent(client llm.Client, store GapStore) *IntelligentAnalyzer {
	return &IntelligentAnalyzer{client: client, store: store}
}

var _ Analyzer = (*IntelligentAnalyzer)(nil)

// capitalizedPhrase approximates a named-entity mention: one or more
// consecutive capitalized words. No NER dependency sits among the
// pack's libraries, so this stays a heuristic rather than a model call.
var capitalizedPhrase = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]+(?:\s+[A-Z][a-zA-Z0-9]+){0,2})\b`)

// singleSourceEntities returns entity mentions that appear in exactly
// one document of the prepared corpus — candidates for the
// cross-document verification layer's "single-source knowledge" gaps.
func singleSourceEntities(prepared []PreparedDoc) map[string]string {
	seenIn := map[string]map[string]bool{}
	for _, d := range prepared {
		for _, m := range capitalizedPhrase.FindAllString(d.Text, -1) {
			if seenIn[m] == nil {
				seenIn[m] = map[string]bool{}
			}
			seenIn[m][d.DocID] = true
		}
	}
	out := map[string]string{}
	for entity, docs := range seenIn {
		if len(docs) == 1 {
			for docID := range docs {
				out[entity] = docID
			}
		}
	}
	return out
}

const intelligentLayer1to4Prompt = `Analyze this corpus across four layers:
1. Frame extraction: what situational frames (e.g. incident response, release process, onboarding) recur in the corpus?
2. Semantic-role gaps: for each frame, which roles (who does what, to what, for whom) are left unfilled?
3. Discourse gaps: which claims in the corpus are asserted without supporting evidence?
4. Entity-graph gaps: which entities are referenced but never explained (undefined acronyms, unnamed systems, vague "the team")?
Respond in prose, concrete, citing doc_ids.`

const intelligentLayer5to6Prompt = `Given the layer 1-4 analysis above and this list of entities that appear in only one document in the corpus (cross-document verification: single-source knowledge is a gap, and any contradiction between documents about the same entity is a gap), produce grounded knowledge gaps.

Respond with a JSON array only, no commentary, each entry matching exactly:
{"title": "...", "description": "...", "category": "DECISION|TECHNICAL|PROCESS|CONTEXT|RELATIONSHIP|TIMELINE|OUTCOME|RATIONALE", "priority": 1-5, "questions": ["...", "..."]}`

func (a *IntelligentAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	prepared, stats := PrepareCorpus(req.Documents, MaxCorpusChars)
	corpus := renderCorpus(prepared)

	layers14, err := a.client.Generate(ctx, intelligentLayer1to4Prompt, corpus)
	if err != nil {
		return nil, fmt.Errorf("gapanalysis.IntelligentAnalyzer.Analyze: layers 1-4: %w", err)
	}

	singleSource := singleSourceEntities(prepared)
	var entityLines strings.Builder
	for entity, docID := range singleSource {
		entityLines.WriteString(fmt.Sprintf("- %q (only in %s)\n", entity, docID))
	}

	userPrompt := layers14 + "\n\nSingle-source entities:\n" + entityLines.String()
	raw, err := a.client.Generate(ctx, intelligentLayer5to6Prompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("gapanalysis.IntelligentAnalyzer.Analyze: layers 5-6: %w", err)
	}

	candidates, ok := parseCandidates(raw)
	if !ok {
		return &AnalysisResult{Stats: stats}, nil
	}

	gaps := buildGaps(candidates, req.ProjectID, "intelligent", stats, docIDs(prepared))
	if err := persistAll(ctx, a.store, req.TenantID, gaps); err != nil {
		return nil, fmt.Errorf("gapanalysis.IntelligentAnalyzer.Analyze: persist: %w", err)
	}

	return &AnalysisResult{Gaps: gaps, Stats: stats}, nil
}
