// Package llm abstracts the reasoning model behind the GapAnalyzer
// strategies and the Extractor's summarization step, so both can be
// exercised against a fake in tests without a live Vertex AI project.
package llm

import "context"

// Client is the minimal reasoning-model surface every gap-analysis
// strategy and the extractor depend on.
type Client interface {
	// Generate sends systemPrompt+userPrompt to the model and returns its
	// full text response. Implementations retry transient 429s internally.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// GenerateStream behaves like Generate but streams text chunks as
	// they arrive; the error channel carries at most one error and is
	// closed alongside the text channel when generation finishes.
	GenerateStream(ctx context.Context, systemPrompt, userPrompt string) (<-chan string, <-chan error)

	// HealthCheck verifies connectivity and model availability.
	HealthCheck(ctx context.Context) error

	Close()
}
