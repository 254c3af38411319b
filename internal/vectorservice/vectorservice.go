// Package vectorservice is the only caller of internal/vectorindex: it
// chunks and embeds documents, upserts their vectors, and runs dense and
// hybrid search, enforcing the three-layer tenant isolation contract of
// spec.md §4.5 at every public operation.
package vectorservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/lantern-ai/lantern-engine/internal/chunker"
	"github.com/lantern-ai/lantern-engine/internal/errs"
	"github.com/lantern-ai/lantern-engine/internal/telemetry"
	"github.com/lantern-ai/lantern-engine/internal/vectorindex"
)

// Embedder is the subset of *embedding.Client that Service depends on,
// narrowed to an interface so tests can supply a fake without a network
// round trip.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

const (
	embedBatchSize    = 50
	upsertBatchSize   = 500
	maxParallelUpsert = 3
	safeTextLimit     = 30000
	titleMetaLimit    = 200
	previewMetaLimit  = 500
	upsertRetries     = 3

	// deletionChunkBound is the fixed exclusive upper limit on chunk_idx
	// that DeleteDocuments addresses per document. Vectors of chunks at
	// or above this index are not deleted.
	deletionChunkBound = 100
)

// Document is the subset of a document's fields vectorservice needs to
// chunk, embed, and upsert it.
type Document struct {
	DocID    string
	Title    string
	From     string
	Content  string
	Metadata map[string]string
}

// Stats summarizes one embed_and_upsert call.
type Stats struct {
	DocsEmbedded   int
	ChunksCreated  int
	ChunksUpserted int
	Elapsed        time.Duration
	ThroughputPerS float64
}

// SearchResult is one ranked hit returned to callers.
type SearchResult struct {
	VectorID       string
	Score          float64
	DocID          string
	ChunkIdx       int
	Title          string
	ContentPreview string
	Metadata       map[string]string
}

// Service wires the chunker and embedding client to a vectorindex.Index
// backend. Every method validates tenantID before issuing any network
// call: the application-gate layer of the isolation contract.
type Service struct {
	index   vectorindex.Index
	embed   Embedder
	chunker *chunker.Chunker
	metrics *telemetry.Metrics
}

// New creates a Service.
func New(index vectorindex.Index, embed Embedder, chunkSize, chunkOverlap int) *Service {
	return &Service{index: index, embed: embed, chunker: chunker.New(chunkSize, chunkOverlap)}
}

// WithMetrics attaches Prometheus/OTel instrumentation. Optional: a Service
// with no metrics attached behaves identically, just unobserved.
func (s *Service) WithMetrics(m *telemetry.Metrics) *Service {
	s.metrics = m
	return s
}

func checkTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return errs.New(errs.ClassTenantIsolation, "vectorservice", errs.ErrTenantIsolationBreach)
	}
	return nil
}

// EmbedAndUpsert chunks, embeds, and upserts every document for tenantID.
func (s *Service) EmbedAndUpsert(ctx context.Context, tenantID string, docs []Document) (Stats, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "vectorservice.EmbedAndUpsert")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", tenantID), attribute.Int("doc_count", len(docs)))

	start := time.Now()
	if err := checkTenant(tenantID); err != nil {
		return Stats{}, err
	}

	var allChunks []chunker.Chunk
	var allVectors []vectorindex.Vector
	var allTexts []string

	type pending struct {
		doc   Document
		chunk chunker.Chunk
	}
	var queue []pending

	for _, d := range docs {
		chunks, err := s.chunker.Chunk(d.Content, d.Title, d.From)
		if err != nil {
			slog.Warn("vectorservice: skipping document with no chunkable content", "doc_id", d.DocID, "error", err)
			continue
		}
		allChunks = append(allChunks, chunks...)
		for _, c := range chunks {
			queue = append(queue, pending{doc: d, chunk: c})
		}
	}

	for _, p := range queue {
		text := p.chunk.Text
		if len(text) > safeTextLimit {
			slog.Warn("vectorservice: truncating oversized chunk before embedding", "doc_id", p.doc.DocID, "chunk_idx", p.chunk.Index, "len", len(text))
			text = text[:safeTextLimit]
		}
		allTexts = append(allTexts, text)
	}

	embedded := 0
	docsSeen := map[string]bool{}
	for i := 0; i < len(allTexts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(allTexts) {
			end = len(allTexts)
		}
		vectors, err := s.embed.EmbedDocuments(ctx, allTexts[i:end])
		if err != nil {
			s.metrics.ObserveEmbedBatch("error")
			return Stats{}, errs.Transient("vectorservice.EmbedAndUpsert", fmt.Errorf("embed batch %d-%d: %w", i, end, err))
		}
		s.metrics.ObserveEmbedBatch("success")

		for j, vec := range vectors {
			p := queue[i+j]
			vecID := deterministicVectorID(p.doc.DocID, p.chunk.Index)
			meta := map[string]string{
				"tenant_id":       tenantID,
				"doc_id":          p.doc.DocID,
				"chunk_idx":       fmt.Sprintf("%d", p.chunk.Index),
				"title":           truncate(p.doc.Title, titleMetaLimit),
				"content_preview": truncate(p.chunk.Text, previewMetaLimit),
				"content":         p.chunk.Text,
			}
			for k, v := range p.doc.Metadata {
				meta[k] = truncate(v, previewMetaLimit)
			}
			allVectors = append(allVectors, vectorindex.Vector{
				ID:       vecID,
				TenantID: tenantID,
				DocID:    p.doc.DocID,
				ChunkIdx: p.chunk.Index,
				Values:   vec,
				Metadata: meta,
			})
			docsSeen[p.doc.DocID] = true
		}
		embedded += len(vectors)
	}

	upserted, err := s.upsertBatched(ctx, tenantID, allVectors)
	if err != nil {
		s.metrics.ObserveEmbedAndUpsert("error", time.Since(start))
		return Stats{}, err
	}
	s.metrics.ObserveEmbedAndUpsert("success", time.Since(start))
	s.metrics.AddVectorsUpserted(tenantID, upserted)

	elapsed := time.Since(start)
	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(upserted) / elapsed.Seconds()
	}

	return Stats{
		DocsEmbedded:   len(docsSeen),
		ChunksCreated:  len(allChunks),
		ChunksUpserted: upserted,
		Elapsed:        elapsed,
		ThroughputPerS: throughput,
	}, nil
}

// upsertBatched writes vectors in batches of upsertBatchSize, with up to
// maxParallelUpsert batches in flight and per-batch retry.
func (s *Service) upsertBatched(ctx context.Context, tenantID string, vectors []vectorindex.Vector) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}

	var batches [][]vectorindex.Vector
	for i := 0; i < len(vectors); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		batches = append(batches, vectors[i:end])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUpsert)

	upserted := make([]int, len(batches))
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			n, err := s.upsertWithRetry(gctx, tenantID, batch)
			upserted[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, errs.Transient("vectorservice.upsertBatched", err)
	}

	total := 0
	for _, n := range upserted {
		total += n
	}
	return total, nil
}

func (s *Service) upsertWithRetry(ctx context.Context, tenantID string, batch []vectorindex.Vector) (int, error) {
	delays := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
	var lastErr error
	for attempt := 0; attempt < upsertRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delays[attempt-1]):
			}
		}
		if err := s.index.Upsert(ctx, tenantID, batch); err != nil {
			lastErr = err
			continue
		}
		return len(batch), nil
	}
	return 0, fmt.Errorf("upsert batch of %d failed after %d attempts: %w", len(batch), upsertRetries, lastErr)
}

// Search runs a dense similarity search scoped to tenantID.
func (s *Service) Search(ctx context.Context, tenantID, query string, topK int, filter vectorindex.Filter) ([]SearchResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "vectorservice.Search")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveSearch("dense", time.Since(start)) }()

	if err := checkTenant(tenantID); err != nil {
		return nil, err
	}
	vec, err := s.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, errs.Transient("vectorservice.Search", err)
	}
	hits, err := s.queryScoped(ctx, tenantID, vec, topK, filter)
	if err != nil {
		return nil, err
	}
	return toSearchResults(hits), nil
}

// queryScoped adds the metadata-filter isolation layer on top of
// vectorindex.Index.Query's namespace layer, then discards any result
// whose own tenant_id metadata doesn't match — defense in depth against
// a backend that ignores the namespace argument.
func (s *Service) queryScoped(ctx context.Context, tenantID string, vec []float32, topK int, filter vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	combined := vectorindex.Filter{}
	for k, v := range filter {
		combined[k] = v
	}
	combined["tenant_id"] = tenantID

	hits, err := s.index.Query(ctx, tenantID, vec, topK, combined)
	if err != nil {
		return nil, errs.Transient("vectorservice.queryScoped", err)
	}

	scoped := make([]vectorindex.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Metadata != nil {
			if tid, ok := h.Metadata["tenant_id"]; ok && tid != tenantID {
				continue
			}
		}
		scoped = append(scoped, h)
	}
	return scoped, nil
}

// HybridSearch blends dense similarity with a keyword-overlap boost.
// See spec.md §4.5 for the exact scoring formula.
func (s *Service) HybridSearch(ctx context.Context, tenantID, query string, topK int, wDense, wSparse float64) ([]SearchResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "vectorservice.HybridSearch")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveSearch("hybrid", time.Since(start)) }()

	if err := checkTenant(tenantID); err != nil {
		return nil, err
	}
	if wDense == 0 && wSparse == 0 {
		wDense, wSparse = 0.7, 0.3
	}

	vec, err := s.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, errs.Transient("vectorservice.HybridSearch", err)
	}

	hits, err := s.queryScoped(ctx, tenantID, vec, topK*2, nil)
	if err != nil {
		return nil, err
	}

	terms := keywordTerms(query)
	type scored struct {
		hit     vectorindex.SearchResult
		combined float64
	}
	scoredHits := make([]scored, len(hits))
	for i, h := range hits {
		contentMatches := countMatches(h.ContentPreview, terms)
		titleMatches := countMatches(h.Title, terms)
		boost := 0.05*float64(contentMatches) + 0.15*float64(titleMatches)
		if boost > 0.3 {
			boost = 0.3
		}
		scoredHits[i] = scored{hit: h, combined: wDense*h.Score + wSparse*boost}
	}

	sort.SliceStable(scoredHits, func(i, j int) bool { return scoredHits[i].combined > scoredHits[j].combined })

	if len(scoredHits) > topK {
		scoredHits = scoredHits[:topK]
	}

	out := make([]SearchResult, len(scoredHits))
	for i, sh := range scoredHits {
		out[i] = toSearchResult(sh.hit)
		out[i].Score = sh.combined
	}
	return out, nil
}

// DeleteDocuments removes vectors for docIDs, addressing chunk_idx in
// [0, deletionChunkBound) per document. The bound is a constant that
// callers cannot change; vectors of chunks at index deletionChunkBound
// or above stay in the index.
func (s *Service) DeleteDocuments(ctx context.Context, tenantID string, docIDs []string) error {
	if err := checkTenant(tenantID); err != nil {
		return err
	}
	var ids []string
	for _, docID := range docIDs {
		for idx := 0; idx < deletionChunkBound; idx++ {
			ids = append(ids, deterministicVectorID(docID, idx))
		}
	}
	if err := s.index.DeleteVectors(ctx, tenantID, ids); err != nil {
		return errs.Transient("vectorservice.DeleteDocuments", err)
	}
	return nil
}

// DeleteTenant purges every vector in tenantID's namespace.
func (s *Service) DeleteTenant(ctx context.Context, tenantID string) error {
	if err := checkTenant(tenantID); err != nil {
		return err
	}
	if err := s.index.DeleteNamespace(ctx, tenantID); err != nil {
		return errs.Transient("vectorservice.DeleteTenant", err)
	}
	return nil
}

func deterministicVectorID(docID string, chunkIdx int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s||%d", docID, chunkIdx)))
	return hex.EncodeToString(h[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func keywordTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

func countMatches(text string, terms []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, t := range terms {
		count += strings.Count(lower, t)
	}
	return count
}

func toSearchResult(h vectorindex.SearchResult) SearchResult {
	return SearchResult{
		VectorID:       h.VectorID,
		Score:          h.Score,
		DocID:          h.DocID,
		ChunkIdx:       h.ChunkIdx,
		Title:          h.Title,
		ContentPreview: h.ContentPreview,
		Metadata:       h.Metadata,
	}
}

func toSearchResults(hits []vectorindex.SearchResult) []SearchResult {
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = toSearchResult(h)
	}
	return out
}
