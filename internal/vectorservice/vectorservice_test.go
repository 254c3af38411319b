package vectorservice

import (
	"context"
	"testing"

	"github.com/lantern-ai/lantern-engine/internal/vectorindex"
)

type fakeEmbedder struct {
	dims int
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
		out[i][0] = 1
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dims)
	v[0] = 1
	return v, nil
}

type fakeIndex struct {
	vectors map[string][]vectorindex.Vector // tenantID -> vectors
	results []vectorindex.SearchResult
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{vectors: make(map[string][]vectorindex.Vector)}
}

func (f *fakeIndex) Upsert(ctx context.Context, tenantID string, vectors []vectorindex.Vector) error {
	byID := make(map[string]vectorindex.Vector, len(f.vectors[tenantID]))
	for _, v := range f.vectors[tenantID] {
		byID[v.ID] = v
	}
	for _, v := range vectors {
		byID[v.ID] = v
	}
	out := make([]vectorindex.Vector, 0, len(byID))
	for _, v := range byID {
		out = append(out, v)
	}
	f.vectors[tenantID] = out
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, tenantID string, embedding []float32, topK int, filter vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	if f.results != nil {
		return f.results, nil
	}
	var out []vectorindex.SearchResult
	for _, v := range f.vectors[tenantID] {
		out = append(out, vectorindex.SearchResult{
			VectorID:       v.ID,
			Score:          0.9,
			DocID:          v.DocID,
			ChunkIdx:       v.ChunkIdx,
			Title:          v.Metadata["title"],
			ContentPreview: v.Metadata["content_preview"],
			Metadata:       v.Metadata,
		})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

func (f *fakeIndex) DeleteVectors(ctx context.Context, tenantID string, vectorIDs []string) error {
	want := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		want[id] = true
	}
	var kept []vectorindex.Vector
	for _, v := range f.vectors[tenantID] {
		if !want[v.ID] {
			kept = append(kept, v)
		}
	}
	f.vectors[tenantID] = kept
	return nil
}

func (f *fakeIndex) DeleteNamespace(ctx context.Context, tenantID string) error {
	delete(f.vectors, tenantID)
	return nil
}

func TestEmbedAndUpsert_ProducesDeterministicIDs(t *testing.T) {
	idx := newFakeIndex()
	svc := New(idx, &fakeEmbedder{dims: 8}, 100, 20)

	docs := []Document{
		{DocID: "doc-1", Title: "Quarterly Plan", Content: "Alpha beta gamma delta epsilon zeta eta theta iota kappa. " +
			"Lambda mu nu xi omicron pi rho sigma tau upsilon phi chi psi omega."},
	}

	stats, err := svc.EmbedAndUpsert(context.Background(), "tenant-a", docs)
	if err != nil {
		t.Fatalf("EmbedAndUpsert() error: %v", err)
	}
	if stats.ChunksUpserted == 0 {
		t.Fatal("expected at least one chunk upserted")
	}

	stats2, err := svc.EmbedAndUpsert(context.Background(), "tenant-a", docs)
	if err != nil {
		t.Fatalf("second EmbedAndUpsert() error: %v", err)
	}
	if stats2.ChunksCreated != stats.ChunksCreated {
		t.Errorf("re-run produced a different chunk count: %d vs %d", stats2.ChunksCreated, stats.ChunksCreated)
	}

	// Re-running should overwrite, not duplicate, vectors for the same doc.
	if got := len(idx.vectors["tenant-a"]); got != stats.ChunksUpserted {
		t.Errorf("expected idempotent upsert to keep %d vectors, got %d", stats.ChunksUpserted, got)
	}
}

func TestEmbedAndUpsert_RejectsEmptyTenant(t *testing.T) {
	idx := newFakeIndex()
	svc := New(idx, &fakeEmbedder{dims: 8}, 100, 20)

	_, err := svc.EmbedAndUpsert(context.Background(), "", []Document{{DocID: "d", Content: "text"}})
	if err == nil {
		t.Fatal("expected tenant isolation error for empty tenant id")
	}
}

func TestSearch_FiltersCrossTenantMetadata(t *testing.T) {
	idx := newFakeIndex()
	idx.results = []vectorindex.SearchResult{
		{VectorID: "v1", Score: 0.9, DocID: "d1", Metadata: map[string]string{"tenant_id": "tenant-b"}},
	}
	svc := New(idx, &fakeEmbedder{dims: 8}, 100, 20)

	results, err := svc.Search(context.Background(), "tenant-a", "query", 10, nil)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected cross-tenant result to be filtered out, got %d results", len(results))
	}
}

func TestHybridSearch_TitleBoostOutranksContentBoost(t *testing.T) {
	idx := newFakeIndex()
	idx.results = []vectorindex.SearchResult{
		{VectorID: "title-hit", Score: 0.5, DocID: "doc-x", Title: "widget rollout", ContentPreview: "nothing relevant here",
			Metadata: map[string]string{"tenant_id": "tenant-a"}},
		{VectorID: "content-hit", Score: 0.5, DocID: "doc-y", Title: "unrelated", ContentPreview: "the widget rollout happened last week",
			Metadata: map[string]string{"tenant_id": "tenant-a"}},
	}
	svc := New(idx, &fakeEmbedder{dims: 8}, 100, 20)

	results, err := svc.HybridSearch(context.Background(), "tenant-a", "widget rollout", 2, 0.7, 0.3)
	if err != nil {
		t.Fatalf("HybridSearch() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].DocID != "doc-x" {
		t.Errorf("expected title match to rank first, got %s first", results[0].DocID)
	}
}

func TestDeleteDocuments_BoundsChunkIdx(t *testing.T) {
	idx := newFakeIndex()
	svc := New(idx, &fakeEmbedder{dims: 8}, 100, 20)

	var vecs []vectorindex.Vector
	for i := 0; i < deletionChunkBound+5; i++ {
		vecs = append(vecs, vectorindex.Vector{ID: deterministicVectorID("doc-1", i), DocID: "doc-1", ChunkIdx: i})
	}
	idx.vectors["tenant-a"] = vecs

	if err := svc.DeleteDocuments(context.Background(), "tenant-a", []string{"doc-1"}); err != nil {
		t.Fatalf("DeleteDocuments() error: %v", err)
	}

	remaining := len(idx.vectors["tenant-a"])
	if remaining != 5 {
		t.Errorf("expected 5 vectors beyond the policy bound to survive, got %d", remaining)
	}
}

func TestDeterministicVectorID_StableAcrossCalls(t *testing.T) {
	a := deterministicVectorID("doc-1", 3)
	b := deterministicVectorID("doc-1", 3)
	if a != b {
		t.Error("deterministicVectorID should be stable for the same inputs")
	}
	c := deterministicVectorID("doc-1", 4)
	if a == c {
		t.Error("different chunk indexes should not collide")
	}
}

func TestCountMatches(t *testing.T) {
	got := countMatches("The Widget Rollout happened.", keywordTerms("widget rollout"))
	if got != 2 {
		t.Errorf("countMatches() = %d, want 2", got)
	}
}
