// Package embedding generates normalized vector embeddings for document
// chunks and search queries, batching requests to stay under the Vertex
// AI embedding API's per-call instance limit.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"golang.org/x/oauth2/google"
)

const (
	maxBatchSize = 250
)

// taskType selects the asymmetric retrieval mode: text-embedding-004
// places document and query embeddings in slightly different vector
// spaces so each side of a dense search is embedded with the task type
// it was tuned for.
type taskType string

const (
	taskRetrievalDocument taskType = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    taskType = "RETRIEVAL_QUERY"
)

// Client generates embeddings for document chunks (EmbedDocuments) and
// for search queries (EmbedQuery), each using Vertex AI's asymmetric
// retrieval task types.
type Client struct {
	project    string
	location   string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewClient creates a Client using Application Default Credentials.
func NewClient(ctx context.Context, project, location, model string, dimensions int) (*Client, error) {
	httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("embedding.NewClient: %w", err)
	}
	return &Client{project: project, location: location, model: model, dimensions: dimensions, httpClient: httpClient}, nil
}

// EmbedDocuments returns one L2-normalized, dimensions-length vector per
// input text, batching requests at maxBatchSize.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, taskRetrievalDocument)
}

// EmbedQuery embeds a single search query for dense retrieval.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) embed(ctx context.Context, texts []string, tt taskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embedding.embed: no texts provided")
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		vectors, err := withRetry(ctx, "Embed", func() ([][]float32, error) {
			return c.doEmbed(ctx, batch, tt)
		})
		if err != nil {
			return nil, fmt.Errorf("embedding.embed: batch %d-%d: %w", i, end, err)
		}

		for j, vec := range vectors {
			if len(vec) != c.dimensions {
				return nil, fmt.Errorf("embedding.embed: vector %d has %d dimensions, want %d", i+j, len(vec), c.dimensions)
			}
			vectors[j] = l2Normalize(vec)
		}
		all = append(all, vectors...)
	}

	if len(all) != len(texts) {
		return nil, fmt.Errorf("embedding.embed: got %d vectors for %d texts", len(all), len(texts))
	}
	return all, nil
}

type embedRequest struct {
	Instances []embedInstance `json:"instances"`
}

type embedInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embedResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

func (c *Client) doEmbed(ctx context.Context, texts []string, tt taskType) ([][]float32, error) {
	instances := make([]embedInstance, len(texts))
	for i, t := range texts {
		instances[i] = embedInstance{Content: t, TaskType: string(tt)}
	}

	body, err := json.Marshal(embedRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("embedding.doEmbed: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding.doEmbed: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding.doEmbed: call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding.doEmbed: status %d: %s", resp.StatusCode, b)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embedding.doEmbed: decode: %w", err)
	}

	out := make([][]float32, len(parsed.Predictions))
	for i, p := range parsed.Predictions {
		out[i] = p.Embeddings.Values
	}
	return out, nil
}

func (c *Client) endpointURL() string {
	if c.location == "global" {
		return fmt.Sprintf(
			"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict",
			c.project, c.model)
	}
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		c.location, c.project, c.location, c.model)
}

// HealthCheck validates connectivity to the embedding service.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.EmbedQuery(ctx, "health check"); err != nil {
		return fmt.Errorf("embedding health check failed: %w", err)
	}
	return nil
}

// l2Normalize scales vec to unit length.
func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
