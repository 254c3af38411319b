package v3

import (
	"context"
	"testing"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) GenerateStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error) {
	ch := make(chan string)
	errCh := make(chan error)
	close(ch)
	close(errCh)
	return ch, errCh
}

func (f *fakeLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeLLM) Close()                                {}

func TestSynthesizeQuestions_EmptyFindingsReturnsNil(t *testing.T) {
	gaps, err := SynthesizeQuestions(context.Background(), &fakeLLM{}, nil, NewFeedbackRecorder(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gaps != nil {
		t.Errorf("gaps = %v, want nil", gaps)
	}
}

func TestSynthesizeQuestions_BuildsGapsFromFindings(t *testing.T) {
	findings := []Finding{
		{Analyzer: "bus_factor", Title: "Alice is a single point of knowledge", Description: "desc", Category: "RELATIONSHIP", Severity: 0.8, SourceDocIDs: []string{"doc-1"}},
		{Analyzer: "contradiction", Title: "Conflicting description", Description: "desc2", Category: "CONTEXT", Severity: 0.3, SourceDocIDs: []string{"doc-2"}},
	}
	client := &fakeLLM{response: `[{"questions":["Who owns billing-service?"]},{"questions":["Which description is correct?","Who maintains it now?"]}]`}

	gaps, err := SynthesizeQuestions(context.Background(), client, findings, NewFeedbackRecorder(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gaps) != 2 {
		t.Fatalf("len(gaps) = %d, want 2", len(gaps))
	}

	// higher severity should sort first after priority-descending sort.
	if gaps[0].Title != "Alice is a single point of knowledge" {
		t.Errorf("gaps[0].Title = %q, want highest-severity finding first", gaps[0].Title)
	}
	if len(gaps[0].Questions) != 1 || gaps[0].Questions[0].Text != "Who owns billing-service?" {
		t.Errorf("gaps[0].Questions = %v", gaps[0].Questions)
	}
}

func TestSynthesizeQuestions_FallsBackToDescriptionOnUnparsableResponse(t *testing.T) {
	findings := []Finding{
		{Analyzer: "bus_factor", Title: "t", Description: "fallback description", Category: "RELATIONSHIP", Severity: 0.5},
	}
	client := &fakeLLM{response: "not json at all"}

	gaps, err := SynthesizeQuestions(context.Background(), client, findings, NewFeedbackRecorder(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gaps) != 1 {
		t.Fatalf("len(gaps) = %d, want 1", len(gaps))
	}
	if len(gaps[0].Questions) != 1 || gaps[0].Questions[0].Text != "fallback description" {
		t.Errorf("gaps[0].Questions = %v, want fallback to description", gaps[0].Questions)
	}
}

func TestSynthesizeQuestions_PropagatesLLMError(t *testing.T) {
	findings := []Finding{{Analyzer: "bus_factor", Title: "t", Severity: 0.5}}
	wantErr := context.DeadlineExceeded
	client := &fakeLLM{err: wantErr}

	_, err := SynthesizeQuestions(context.Background(), client, findings, NewFeedbackRecorder(), nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPriorityFromSeverity_ClampsToOneFive(t *testing.T) {
	cases := []struct {
		severity, precision float64
		wantMin, wantMax     int
	}{
		{0, 0, 1, 1},
		{1, 1, 5, 5},
		{0.5, 0.5, 1, 5},
	}
	for _, c := range cases {
		got := priorityFromSeverity(c.severity, c.precision)
		if got < c.wantMin || got > c.wantMax || got < 1 || got > 5 {
			t.Errorf("priorityFromSeverity(%v, %v) = %d, want in [1,5]", c.severity, c.precision, got)
		}
	}
}
