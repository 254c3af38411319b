// Package extractor implements C7: per-document structured summarization,
// the primary input to gap analysis. See spec.md §4.3.
package extractor

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/lantern-ai/lantern-engine/internal/llm"
	"github.com/lantern-ai/lantern-engine/internal/model"
)

// maxInputChars is the hard cap on document content handed to the
// model, per spec.md §4.3.
const maxInputChars = 50000

// Extractor turns a document's raw content into a StructuredSummary.
// Invocation is idempotent by (doc_id, content_sha1): callers should
// skip re-extraction when the document's sha1 hasn't changed since its
// last StructuredSummaryAt.
type Extractor struct {
	client llm.Client
}

// New creates an Extractor.
func New(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract produces a StructuredSummary for content. On an LLM error or
// JSON-parse failure it returns (nil, nil) rather than an error — per
// spec.md §4.3 the document is simply left without a summary and the
// analyzer falls back to truncated raw text; this is not a failure the
// caller needs to retry.
func (e *Extractor) Extract(ctx context.Context, content string) (*model.StructuredSummary, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	input := content
	if len(input) > maxInputChars {
		input = input[:maxInputChars]
	}

	raw, err := e.client.Generate(ctx, systemPrompt, input)
	if err != nil {
		return nil, nil
	}

	summary, ok := parseSummary(raw)
	if !ok {
		return nil, nil
	}

	summary.WordCount = len(strings.Fields(content))
	return summary, nil
}

const systemPrompt = `You extract structured knowledge from a single document for a knowledge-transfer platform.
Respond with JSON only, no commentary, matching exactly this shape:
{"summary": "...", "key_topics": ["..."], "entities": {"people": ["..."], "systems": ["..."], "organizations": ["..."]}, "decisions": ["..."], "processes": ["..."], "dates": [{"date": "...", "event": "..."}], "action_items": ["..."], "technical_details": ["..."]}
Be concise and factual. Never invent information not present in the document.`

// parseSummary decodes the model's JSON response, tolerating a
// surrounding markdown code fence, a common model habit.
func parseSummary(raw string) (*model.StructuredSummary, bool) {
	cleaned := stripCodeFence(raw)

	var summary model.StructuredSummary
	if err := json.Unmarshal([]byte(cleaned), &summary); err != nil {
		return nil, false
	}
	return &summary, true
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

// ContentSHA1Changed reports whether content's current hash differs
// from the previously recorded one, the idempotency check spec.md §4.3
// requires before re-running extraction.
func ContentSHA1Changed(current, previous string) bool {
	return current != previous && current != ""
}
