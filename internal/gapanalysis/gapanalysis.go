// Package gapanalysis implements C10: the strategy-selectable pipeline
// that turns a tenant's summarized corpus into prioritized knowledge
// gaps and questions. See spec.md §4.6. Every strategy (Simple,
// MultiStage, GoalFirst, Intelligent, and v3 in the sibling
// internal/gapanalysis/v3 package) shares the Analyzer contract and the
// token-budget corpus preparation in this file.
package gapanalysis

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lantern-ai/lantern-engine/internal/model"
)

// MaxCorpusChars is the hard char budget for the assembled corpus view
// every strategy must respect, per spec.md §4.6 ("≈400,000 characters
// ≈100K tokens").
const MaxCorpusChars = 400000

const (
	rawFallbackChars = 4000
	rawRetryChars    = 2000
)

// SourceDocument is the subset of a Document and its structured summary
// that analysis needs. The Orchestrator populates this from
// Store.Documents.ListForAnalysis; gapanalysis never touches Store
// directly.
type SourceDocument struct {
	DocID             string
	Title             string
	Content           string
	StructuredSummary *model.StructuredSummary
	UpdatedAt         time.Time
}

// PreparedDoc is one document after token-budget preparation.
type PreparedDoc struct {
	DocID        string
	Title        string
	Text         string
	UsedSummary  bool
	UsedFallback bool
}

// PrepStats summarizes one PrepareCorpus call. Returned alongside every
// AnalysisResult per spec.md §4.6's "prep stats" requirement.
type PrepStats struct {
	Total        int
	Included     int
	WithSummary  int
	WithFallback int
	Skipped      int
	TotalChars   int
	EstTokens    int
}

// PrepareCorpus assembles a budget-bounded view of docs: most-recent
// first, structured summary preferred, falling back to raw content
// truncated at 4,000 chars, retried at 2,000 chars if still over
// budget, else skipped. maxChars <= 0 defaults to MaxCorpusChars.
func PrepareCorpus(docs []SourceDocument, maxChars int) ([]PreparedDoc, PrepStats) {
	if maxChars <= 0 {
		maxChars = MaxCorpusChars
	}

	ordered := make([]SourceDocument, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].UpdatedAt.After(ordered[j].UpdatedAt) })

	stats := PrepStats{Total: len(ordered)}
	var prepared []PreparedDoc
	budget := maxChars

	for _, d := range ordered {
		if budget <= 0 {
			stats.Skipped++
			continue
		}
		text, usedSummary, usedFallback, ok := prepareOne(d, budget)
		if !ok {
			stats.Skipped++
			continue
		}
		prepared = append(prepared, PreparedDoc{
			DocID: d.DocID, Title: d.Title, Text: text,
			UsedSummary: usedSummary, UsedFallback: usedFallback,
		})
		stats.Included++
		if usedSummary {
			stats.WithSummary++
		}
		if usedFallback {
			stats.WithFallback++
		}
		stats.TotalChars += len(text)
		budget -= len(text)
	}
	stats.EstTokens = stats.TotalChars / 4
	return prepared, stats
}

func prepareOne(d SourceDocument, budget int) (text string, usedSummary, usedFallback bool, ok bool) {
	if d.StructuredSummary != nil {
		if s := summaryToText(d.StructuredSummary); s != "" && len(s) <= budget {
			return s, true, false, true
		}
	}
	if d.Content == "" {
		return "", false, false, false
	}
	if candidate := truncate(d.Content, rawFallbackChars); len(candidate) <= budget {
		return candidate, false, true, true
	}
	if candidate := truncate(d.Content, rawRetryChars); len(candidate) <= budget {
		return candidate, false, true, true
	}
	return "", false, false, false
}

func summaryToText(s *model.StructuredSummary) string {
	var b strings.Builder
	b.WriteString(s.Summary)
	if len(s.KeyTopics) > 0 {
		b.WriteString("\nTopics: ")
		b.WriteString(strings.Join(s.KeyTopics, ", "))
	}
	if len(s.Decisions) > 0 {
		b.WriteString("\nDecisions: ")
		b.WriteString(strings.Join(s.Decisions, "; "))
	}
	if len(s.Processes) > 0 {
		b.WriteString("\nProcesses: ")
		b.WriteString(strings.Join(s.Processes, "; "))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// AnalyzeRequest bundles the parameters every strategy's
// analyze(tenant_id, project_id?, include_pending, max_documents)
// contract (spec.md §4.6) needs, plus the already-loaded documents.
type AnalyzeRequest struct {
	TenantID       string
	ProjectID      *string
	IncludePending bool
	MaxDocuments   int
	Documents      []SourceDocument
}

// AnalysisResult is what every strategy returns.
type AnalysisResult struct {
	Gaps  []*model.KnowledgeGap
	Stats PrepStats
}

// Analyzer is the contract every gap-analysis strategy implements.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error)
}

// GapStore is the persistence dependency every strategy needs, narrowed
// from *store.GapRepo so tests can supply a fake without a database.
type GapStore interface {
	Create(ctx context.Context, g *model.KnowledgeGap) error
}

// gapCandidate is the JSON shape every prompt in this package asks the
// LLM to respond with: one entry per gap, questions as plain strings.
type gapCandidate struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Priority    int      `json:"priority"`
	Questions   []string `json:"questions"`
}

// parseCandidates decodes a JSON array of gapCandidate, tolerating a
// markdown code fence around it (a common model habit, same tolerance
// as internal/extractor).
func parseCandidates(raw string) ([]gapCandidate, bool) {
	cleaned := stripCodeFence(raw)
	var candidates []gapCandidate
	if err := json.Unmarshal([]byte(cleaned), &candidates); err != nil {
		return nil, false
	}
	return candidates, true
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

// buildGaps turns parsed candidates into persistable KnowledgeGap rows,
// all OPEN with unanswered questions, per spec.md §4.6's persisted
// object shape.
func buildGaps(candidates []gapCandidate, projectID *string, analysisType string, stats PrepStats, sourceDocIDs []string) []*model.KnowledgeGap {
	gaps := make([]*model.KnowledgeGap, 0, len(candidates))
	for _, c := range candidates {
		questions := make([]model.GapQuestion, len(c.Questions))
		for i, q := range c.Questions {
			questions[i] = model.GapQuestion{Text: q}
		}
		priority := c.Priority
		if priority < 1 || priority > 5 {
			priority = 3
		}
		context, _ := json.Marshal(map[string]any{
			"analysis_type": analysisType,
			"stats":         stats,
			"source_docs":   sourceDocIDs,
		})
		gaps = append(gaps, &model.KnowledgeGap{
			ID:          uuid.NewString(),
			ProjectID:   projectID,
			Title:       c.Title,
			Description: c.Description,
			Category:    model.NormalizeGapCategory(c.Category),
			Priority:    priority,
			Status:      model.GapOpen,
			Questions:   questions,
			Context:     context,
		})
	}
	return gaps
}

// persistAll saves every gap under tenantID and stamps TenantID before
// the write, since buildGaps constructs gaps without a store round trip.
func persistAll(ctx context.Context, store GapStore, tenantID string, gaps []*model.KnowledgeGap) error {
	for _, g := range gaps {
		g.TenantID = tenantID
		if err := store.Create(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// renderCorpus joins prepared documents into one prompt-ready block,
// each document delimited so the model can attribute claims to a
// specific doc_id.
func renderCorpus(prepared []PreparedDoc) string {
	var b strings.Builder
	for _, d := range prepared {
		b.WriteString("=== doc_id: ")
		b.WriteString(d.DocID)
		b.WriteString(" | title: ")
		b.WriteString(d.Title)
		b.WriteString(" ===\n")
		b.WriteString(d.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func docIDs(prepared []PreparedDoc) []string {
	ids := make([]string, len(prepared))
	for i, d := range prepared {
		ids[i] = d.DocID
	}
	return ids
}
