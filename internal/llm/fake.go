package llm

import "context"

// FakeClient is a scriptable Client used by other packages' unit tests
// so gap analysis and extraction logic can be exercised without a live
// Vertex AI project.
type FakeClient struct {
	// Responses is consumed in order, one per Generate call. If it runs
	// out, the last entry is reused.
	Responses []string
	Err       error
	Calls     []FakeCall
}

// FakeCall records one invocation for assertions in tests.
type FakeCall struct {
	SystemPrompt string
	UserPrompt   string
}

var _ Client = (*FakeClient)(nil)

func (f *FakeClient) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.Calls = append(f.Calls, FakeCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	idx := len(f.Calls) - 1
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	return f.Responses[idx], nil
}

func (f *FakeClient) GenerateStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error) {
	textCh := make(chan string, 1)
	errCh := make(chan error, 1)
	resp, err := f.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		errCh <- err
	} else if resp != "" {
		textCh <- resp
	}
	close(textCh)
	close(errCh)
	return textCh, errCh
}

func (f *FakeClient) HealthCheck(context.Context) error { return f.Err }

func (f *FakeClient) Close() {}
