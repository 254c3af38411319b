// Package v3 implements strategy 5 from spec.md §4.6, the default
// GapAnalyzer pipeline: deep extraction -> knowledge-graph assembly ->
// eight specialized analyzers -> LLM question synthesis -> multi-factor
// prioritization -> feedback/learning hooks. Grounded on the source
// platform's knowledge_gap_v3/deep_extractor.py and its sibling graph
// and analyzer modules (SPEC_FULL.md §7).
package v3

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lantern-ai/lantern-engine/internal/gapanalysis"
	"github.com/lantern-ai/lantern-engine/internal/llm"
)

// Entity is one named thing (person, system, organization) mentioned in
// a document.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"` // person | system | organization
}

// Relationship is a directed edge between two entities, e.g. "Alice"
// --owns--> "billing-service".
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Decision is a choice the corpus records having been made, with
// whatever rationale the document captured (often none — the absence
// itself is gap-analyzer signal).
type Decision struct {
	What      string `json:"what"`
	Rationale string `json:"rationale"`
	DecidedBy string `json:"decidedBy"`
}

// TemporalEvent anchors a fact to a point in the corpus's timeline.
type TemporalEvent struct {
	At   string `json:"at"`
	What string `json:"what"`
}

// ExtractedFacts is the deep-extraction output for one document.
type ExtractedFacts struct {
	DocID         string
	Entities      []Entity
	Relationships []Relationship
	Decisions     []Decision
	Events        []TemporalEvent
}

const extractSystemPrompt = `You perform deep structured extraction on a single document for a knowledge graph. Respond with JSON only, no commentary, matching exactly:
{"entities": [{"name": "...", "type": "person|system|organization"}], "relationships": [{"from": "...", "to": "...", "type": "..."}], "decisions": [{"what": "...", "rationale": "...", "decidedBy": "..."}], "events": [{"at": "...", "what": "..."}]}
Leave rationale empty when the document does not state one — do not invent one. Only extract entities/relationships/decisions/events actually present in the text.`

// ExtractAll runs deep extraction over every prepared document. A
// document whose extraction fails (LLM error or unparseable JSON) is
// skipped without logging —
// consistent with spec.md §4.3's "never crash the job" error model —
// rather than aborting the whole pipeline.
func ExtractAll(ctx context.Context, client llm.Client, prepared []gapanalysis.PreparedDoc) []ExtractedFacts {
	var out []ExtractedFacts
	for _, d := range prepared {
		facts, ok := extractOne(ctx, client, d)
		if !ok {
			continue
		}
		out = append(out, facts)
	}
	return out
}

func extractOne(ctx context.Context, client llm.Client, d gapanalysis.PreparedDoc) (ExtractedFacts, bool) {
	raw, err := client.Generate(ctx, extractSystemPrompt, d.Text)
	if err != nil {
		return ExtractedFacts{}, false
	}

	var parsed struct {
		Entities      []Entity       `json:"entities"`
		Relationships []Relationship `json:"relationships"`
		Decisions     []Decision     `json:"decisions"`
		Events        []TemporalEvent `json:"events"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return ExtractedFacts{}, false
	}

	return ExtractedFacts{
		DocID:         d.DocID,
		Entities:      parsed.Entities,
		Relationships: parsed.Relationships,
		Decisions:     parsed.Decisions,
		Events:        parsed.Events,
	}, true
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 3 {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}
