package parser

import (
	"context"
	"fmt"
	"log/slog"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DocAIAdapter implements DocAIClient using the Document AI API,
// processing bytes inline rather than staging them in Cloud Storage
// first — connectors already hold the document in memory.
type DocAIAdapter struct {
	client    *documentai.DocumentProcessorClient
	processor string // full resource name: projects/{p}/locations/{l}/processors/{id}
	project   string
	location  string
}

// NewDocAIAdapter creates a DocAIAdapter. location is typically "us" or
// "eu" (Document AI multi-region).
func NewDocAIAdapter(ctx context.Context, project, location, processor string) (*DocAIAdapter, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("parser.NewDocAIAdapter: %w", err)
	}
	return &DocAIAdapter{client: client, processor: processor, project: project, location: location}, nil
}

var _ DocAIClient = (*DocAIAdapter)(nil)

// ProcessBytes sends data directly to Document AI as a RawDocument.
func (a *DocAIAdapter) ProcessBytes(ctx context.Context, data []byte, mimeType string) (Result, error) {
	req := &documentaipb.ProcessRequest{
		Name: a.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	}

	resp, err := a.client.ProcessDocument(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("parser.ProcessBytes: %w", err)
	}
	if resp.Document == nil {
		return Result{}, fmt.Errorf("parser.ProcessBytes: nil document in response")
	}

	pageCount := len(resp.Document.Pages)
	slog.Info("document AI extracted text", "pages", pageCount, "chars", len(resp.Document.Text), "mime_type", mimeType)

	return Result{Text: resp.Document.Text, Pages: pageCount}, nil
}

// HealthCheck verifies the Document AI connection by listing processors.
func (a *DocAIAdapter) HealthCheck(ctx context.Context) error {
	parent := fmt.Sprintf("projects/%s/locations/%s", a.project, a.location)
	iter := a.client.ListProcessors(ctx, &documentaipb.ListProcessorsRequest{Parent: parent})
	_, err := iter.Next()
	if err != nil && err != iterator.Done {
		return fmt.Errorf("parser.DocAIAdapter.HealthCheck: %w", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (a *DocAIAdapter) Close() {
	a.client.Close()
}
