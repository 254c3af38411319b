package gapanalysis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lantern-ai/lantern-engine/internal/llm"
	"github.com/lantern-ai/lantern-engine/internal/model"
)

type fakeGapStore struct {
	created []*model.KnowledgeGap
}

func (f *fakeGapStore) Create(ctx context.Context, g *model.KnowledgeGap) error {
	f.created = append(f.created, g)
	return nil
}

func docsWithSummary(n int, summaryChars int) []SourceDocument {
	summary := strings.Repeat("a", summaryChars)
	docs := make([]SourceDocument, n)
	base := time.Now()
	for i := 0; i < n; i++ {
		docs[i] = SourceDocument{
			DocID:             "doc-" + string(rune('a'+i%26)) + string(rune('0'+i/26)),
			StructuredSummary: &model.StructuredSummary{Summary: summary},
			UpdatedAt:         base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return docs
}

// TestPrepareCorpus_RespectsCharBudget is testable property 7 from
// spec.md §8: prepared-document char count <= 400,000 for every
// analyzer invocation.
func TestPrepareCorpus_RespectsCharBudget(t *testing.T) {
	docs := docsWithSummary(1000, 3000)
	_, stats := PrepareCorpus(docs, MaxCorpusChars)
	if stats.TotalChars > MaxCorpusChars {
		t.Fatalf("TotalChars = %d, want <= %d", stats.TotalChars, MaxCorpusChars)
	}
}

// TestPrepareCorpus_S5Scenario is scenario S5 from spec.md §8: 300 docs
// x 3,000-char summaries -> documents_included <= 133,
// documents_skipped >= 167, total_chars <= 400,000.
func TestPrepareCorpus_S5Scenario(t *testing.T) {
	docs := docsWithSummary(300, 3000)
	prepared, stats := PrepareCorpus(docs, MaxCorpusChars)

	if stats.Included > 133 {
		t.Errorf("Included = %d, want <= 133", stats.Included)
	}
	if stats.Skipped < 167 {
		t.Errorf("Skipped = %d, want >= 167", stats.Skipped)
	}
	if stats.TotalChars > MaxCorpusChars {
		t.Errorf("TotalChars = %d, want <= %d", stats.TotalChars, MaxCorpusChars)
	}
	if len(prepared) != stats.Included {
		t.Errorf("len(prepared) = %d, want %d", len(prepared), stats.Included)
	}
}

func TestPrepareCorpus_MostRecentFirst(t *testing.T) {
	docs := docsWithSummary(5, 3000)
	prepared, _ := PrepareCorpus(docs, MaxCorpusChars)
	if prepared[0].DocID != "doc-a0" {
		t.Errorf("expected most-recent doc first, got %s", prepared[0].DocID)
	}
}

func TestPrepareCorpus_FallsBackToRawContentAndRetriesShorter(t *testing.T) {
	docs := []SourceDocument{
		{DocID: "no-summary-small", Content: "short body", UpdatedAt: time.Now()},
		{DocID: "no-summary-huge", Content: strings.Repeat("x", 10000), UpdatedAt: time.Now().Add(-time.Minute)},
	}
	prepared, stats := PrepareCorpus(docs, 3000)
	if stats.Included != 2 {
		t.Fatalf("Included = %d, want 2", stats.Included)
	}
	for _, p := range prepared {
		if !p.UsedFallback {
			t.Errorf("doc %s: expected raw-content fallback, got UsedSummary=%v", p.DocID, p.UsedSummary)
		}
	}
}

func TestSimpleAnalyzer_Analyze_PersistsParsedGaps(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`[{"title": "Deploy process", "description": "no runbook", "category": "PROCESS", "priority": 4, "questions": ["How do we roll back?"]}]`,
	}}
	store := &fakeGapStore{}
	a := NewSimple(client, store)

	result, err := a.Analyze(context.Background(), AnalyzeRequest{
		TenantID:  "tenant-a",
		Documents: docsWithSummary(3, 500),
	})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(result.Gaps) != 1 || result.Gaps[0].Title != "Deploy process" {
		t.Fatalf("got %+v", result.Gaps)
	}
	if len(store.created) != 1 || store.created[0].TenantID != "tenant-a" {
		t.Fatalf("store.created = %+v", store.created)
	}
	if store.created[0].Status != model.GapOpen {
		t.Errorf("Status = %v, want OPEN", store.created[0].Status)
	}
}

func TestSimpleAnalyzer_Analyze_MalformedLLMResponseYieldsNoGaps(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{"not json"}}
	store := &fakeGapStore{}
	a := NewSimple(client, store)

	result, err := a.Analyze(context.Background(), AnalyzeRequest{TenantID: "tenant-a", Documents: docsWithSummary(1, 100)})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(result.Gaps) != 0 || len(store.created) != 0 {
		t.Fatalf("expected no gaps persisted, got %+v", result.Gaps)
	}
}

func TestGapCategory_UnknownFallsBackToContext(t *testing.T) {
	client := &llm.FakeClient{Responses: []string{
		`[{"title": "t", "description": "d", "category": "BOGUS", "priority": 9, "questions": []}]`,
	}}
	store := &fakeGapStore{}
	a := NewSimple(client, store)

	result, err := a.Analyze(context.Background(), AnalyzeRequest{TenantID: "t", Documents: docsWithSummary(1, 100)})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if result.Gaps[0].Category != model.GapCategoryContext {
		t.Errorf("Category = %v, want CONTEXT", result.Gaps[0].Category)
	}
	if result.Gaps[0].Priority != 3 {
		t.Errorf("Priority = %d, want clamped default 3", result.Gaps[0].Priority)
	}
}
