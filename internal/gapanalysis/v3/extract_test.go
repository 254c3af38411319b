package v3

import (
	"context"
	"testing"

	"github.com/lantern-ai/lantern-engine/internal/gapanalysis"
)

func TestExtractAll_SkipsFailedDocumentsWithoutAborting(t *testing.T) {
	client := &sequencedLLM{
		responses: []string{
			`{"entities":[{"name":"alice","type":"person"}],"relationships":[],"decisions":[],"events":[]}`,
			"not json",
			`{"entities":[{"name":"bob","type":"person"}],"relationships":[],"decisions":[],"events":[]}`,
		},
	}
	prepared := []gapanalysis.PreparedDoc{
		{DocID: "doc-1", Text: "a"},
		{DocID: "doc-2", Text: "b"},
		{DocID: "doc-3", Text: "c"},
	}

	got := ExtractAll(context.Background(), client, prepared)
	if len(got) != 2 {
		t.Fatalf("len(facts) = %d, want 2 (one skipped)", len(got))
	}
	if got[0].DocID != "doc-1" || got[1].DocID != "doc-3" {
		t.Errorf("got docIDs %q, %q, want doc-1, doc-3", got[0].DocID, got[1].DocID)
	}
}

func TestExtractAll_GenerateErrorSkipsDocument(t *testing.T) {
	client := &fakeLLM{err: context.DeadlineExceeded}
	prepared := []gapanalysis.PreparedDoc{{DocID: "doc-1", Text: "a"}}

	got := ExtractAll(context.Background(), client, prepared)
	if len(got) != 0 {
		t.Errorf("len(facts) = %d, want 0 when Generate errors", len(got))
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripCodeFence(c.in); got != c.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBuildGraph_DeduplicatesEntitiesAndMergesDocs(t *testing.T) {
	facts := []ExtractedFacts{
		{
			DocID:         "doc-1",
			Entities:      []Entity{{Name: "alice", Type: "person"}},
			Relationships: []Relationship{{From: "alice", To: "billing-service", Type: "owns"}},
			Decisions:     []Decision{{What: "use pgvector"}},
			Events:        []TemporalEvent{{At: "2024-01-01", What: "kickoff"}},
		},
		{
			DocID:    "doc-2",
			Entities: []Entity{{Name: "alice", Type: "lead"}},
		},
	}

	g := BuildGraph(facts)

	if len(g.Entities) != 1 {
		t.Fatalf("len(Entities) = %d, want 1", len(g.Entities))
	}
	if g.Entities["alice"].Type != "lead" {
		t.Errorf("Entities[alice].Type = %q, want the later document's type to win", g.Entities["alice"].Type)
	}
	if docs := g.EntityDocs["alice"]; len(docs) != 2 || docs[0] != "doc-1" || docs[1] != "doc-2" {
		t.Errorf("EntityDocs[alice] = %v, want [doc-1 doc-2]", docs)
	}
	if len(g.Relationships) != 1 || len(g.Decisions) != 1 || len(g.Events) != 1 {
		t.Errorf("expected one relationship, decision, and event to carry through, got %d/%d/%d",
			len(g.Relationships), len(g.Decisions), len(g.Events))
	}
}

// sequencedLLM returns its responses in order, one per Generate call,
// so ExtractAll's per-document skip behavior can be exercised
// deterministically.
type sequencedLLM struct {
	responses []string
	calls     int
}

func (s *sequencedLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func (s *sequencedLLM) GenerateStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error) {
	ch := make(chan string)
	errCh := make(chan error)
	close(ch)
	close(errCh)
	return ch, errCh
}

func (s *sequencedLLM) HealthCheck(ctx context.Context) error { return nil }
func (s *sequencedLLM) Close()                                {}
