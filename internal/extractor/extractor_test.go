package extractor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/lantern-ai/lantern-engine/internal/llm"
)

func TestExtract_ParsesWellFormedJSON(t *testing.T) {
	fake := &llm.FakeClient{Responses: []string{
		`{"summary": "Q3 planning doc", "key_topics": ["roadmap", "budget"], ` +
			`"entities": {"people": ["Alice"], "systems": ["Jira"], "organizations": []}, ` +
			`"decisions": ["Ship v2 in Q3"], "processes": [], "dates": [{"date": "2026-07-01", "event": "kickoff"}], ` +
			`"action_items": ["file ticket"], "technical_details": []}`,
	}}
	e := New(fake)

	summary, err := e.Extract(context.Background(), "some document content about Q3 planning")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if summary == nil {
		t.Fatal("expected a summary, got nil")
	}
	if summary.Summary != "Q3 planning doc" {
		t.Errorf("Summary = %q, want %q", summary.Summary, "Q3 planning doc")
	}
	if len(summary.Entities.People) != 1 || summary.Entities.People[0] != "Alice" {
		t.Errorf("Entities.People = %v", summary.Entities.People)
	}
	if summary.WordCount == 0 {
		t.Error("expected WordCount to be set from the original content")
	}
}

func TestExtract_StripsMarkdownCodeFence(t *testing.T) {
	fake := &llm.FakeClient{Responses: []string{
		"```json\n{\"summary\": \"fenced\", \"key_topics\": [], \"entities\": {\"people\": [], \"systems\": [], \"organizations\": []}, " +
			"\"decisions\": [], \"processes\": [], \"dates\": [], \"action_items\": [], \"technical_details\": []}\n```",
	}}
	e := New(fake)

	summary, err := e.Extract(context.Background(), "doc text")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if summary == nil || summary.Summary != "fenced" {
		t.Fatalf("got %+v", summary)
	}
}

func TestExtract_MalformedJSONReturnsNilNotError(t *testing.T) {
	fake := &llm.FakeClient{Responses: []string{"not json at all"}}
	e := New(fake)

	summary, err := e.Extract(context.Background(), "doc text")
	if err != nil {
		t.Fatalf("expected no error on parse failure, got %v", err)
	}
	if summary != nil {
		t.Error("expected nil summary on parse failure")
	}
}

func TestExtract_LLMErrorReturnsNilNotError(t *testing.T) {
	fake := &llm.FakeClient{Err: fmt.Errorf("quota exceeded")}
	e := New(fake)

	summary, err := e.Extract(context.Background(), "doc text")
	if err != nil {
		t.Fatalf("expected no error surfaced from LLM failure, got %v", err)
	}
	if summary != nil {
		t.Error("expected nil summary on LLM error")
	}
}

func TestExtract_EmptyContentSkipsLLMCall(t *testing.T) {
	fake := &llm.FakeClient{}
	e := New(fake)

	summary, err := e.Extract(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if summary != nil {
		t.Error("expected nil summary for empty content")
	}
	if len(fake.Calls) != 0 {
		t.Error("expected no LLM call for empty content")
	}
}

func TestExtract_TruncatesInputAtMaxChars(t *testing.T) {
	fake := &llm.FakeClient{Responses: []string{
		`{"summary": "ok", "key_topics": [], "entities": {"people": [], "systems": [], "organizations": []}, ` +
			`"decisions": [], "processes": [], "dates": [], "action_items": [], "technical_details": []}`,
	}}
	e := New(fake)

	longContent := strings.Repeat("x", maxInputChars+5000)
	if _, err := e.Extract(context.Background(), longContent); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(fake.Calls) != 1 {
		t.Fatalf("expected exactly one LLM call, got %d", len(fake.Calls))
	}
	if len(fake.Calls[0].UserPrompt) != maxInputChars {
		t.Errorf("prompt length = %d, want %d", len(fake.Calls[0].UserPrompt), maxInputChars)
	}
}

func TestContentSHA1Changed(t *testing.T) {
	if ContentSHA1Changed("abc", "abc") {
		t.Error("identical hashes should not count as changed")
	}
	if !ContentSHA1Changed("abc", "def") {
		t.Error("different hashes should count as changed")
	}
	if !ContentSHA1Changed("abc", "") {
		t.Error("first-time extraction (empty previous) should count as changed")
	}
}
