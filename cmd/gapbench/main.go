// Command gapbench compares the five GapAnalyzer strategies (simple,
// multistage, goal_first, intelligent, v3) on a real tenant's document
// corpus: wall-clock latency, gaps produced, and token-budget prep
// stats. Grounded on the teacher's cmd/benchmark-model-routing/main.go
// markdown-report pattern. Results never touch the Gaps table — a
// discarding GapStore is used so running this against production data
// is safe.
//
// Usage:
//
//	DATABASE_URL=... GOOGLE_CLOUD_PROJECT=... \
//	  go run ./cmd/gapbench -tenant <tenant-id> -runs 3
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/lantern-ai/lantern-engine/internal/config"
	"github.com/lantern-ai/lantern-engine/internal/gapanalysis"
	"github.com/lantern-ai/lantern-engine/internal/gapanalysis/v3"
	"github.com/lantern-ai/lantern-engine/internal/llm"
	"github.com/lantern-ai/lantern-engine/internal/model"
	"github.com/lantern-ai/lantern-engine/internal/orchestrator"
	"github.com/lantern-ai/lantern-engine/internal/store"
)

// discardGapStore implements gapanalysis.GapStore without writing
// anything, so benchmark runs never pollute a tenant's real gap table.
type discardGapStore struct {
	created int
}

func (s *discardGapStore) Create(ctx context.Context, g *model.KnowledgeGap) error {
	s.created++
	return nil
}

type runResult struct {
	Strategy string
	Elapsed  time.Duration
	Gaps     int
	Stats    gapanalysis.PrepStats
	Err      error
}

func main() {
	tenantID := flag.String("tenant", "", "tenant ID to benchmark (required)")
	projectID := flag.String("project", "", "optional project_id scope")
	maxDocs := flag.Int("max-documents", 50, "max documents to pull into the analysis window")
	runs := flag.Int("runs", 1, "number of runs per strategy")
	strategiesFlag := flag.String("strategies", "simple,multistage,goal_first,intelligent,v3", "comma-separated strategy names")
	flag.Parse()

	if *tenantID == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -tenant is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: config.Load: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: store.NewPool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	st := store.New(pool)

	vertexClient, err := llm.NewVertexClient(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: llm.NewVertexClient: %v\n", err)
		os.Exit(1)
	}
	defer vertexClient.Close()

	docs, err := st.Documents.ListForAnalysis(ctx, *tenantID, false, *maxDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: load documents: %v\n", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: tenant has no non-pending documents to analyze")
		os.Exit(1)
	}
	sourceDocs := make([]gapanalysis.SourceDocument, len(docs))
	for i, d := range docs {
		sourceDocs[i] = gapanalysis.SourceDocument{
			DocID:     d.DocID(),
			Title:     d.Title,
			Content:   d.Content,
			UpdatedAt: d.UpdatedAt,
		}
	}

	var graphStore *v3.GraphStore
	if cfg.Neo4jURI != "" {
		graphStore, err = v3.NewGraphStore(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARN: v3 strategy unavailable, no Neo4j: %v\n", err)
		}
	}

	gapStore := &discardGapStore{}
	analyzers := orchestrator.NewAnalyzerSet(vertexClient, gapStore, graphStore, v3.NewFeedbackRecorder())

	strategies := splitNonEmpty(*strategiesFlag)

	var results []runResult
	for _, name := range strategies {
		a, ok := analyzers[name]
		if !ok {
			fmt.Fprintf(os.Stderr, "WARN: unknown strategy %q, skipping\n", name)
			continue
		}
		if name == "v3" && graphStore == nil {
			fmt.Fprintln(os.Stderr, "WARN: skipping v3, no Neo4j configured")
			continue
		}

		for i := 0; i < *runs; i++ {
			fmt.Fprintf(os.Stderr, "  [%s] run %d/%d ...\n", name, i+1, *runs)
			start := time.Now()
			res, err := a.Analyze(ctx, gapanalysis.AnalyzeRequest{
				TenantID:       *tenantID,
				ProjectID:      projectID,
				IncludePending: false,
				MaxDocuments:   *maxDocs,
				Documents:      sourceDocs,
			})
			elapsed := time.Since(start)
			if err != nil {
				results = append(results, runResult{Strategy: name, Elapsed: elapsed, Err: err})
				fmt.Fprintf(os.Stderr, "    ERROR: %v\n", err)
				continue
			}
			results = append(results, runResult{Strategy: name, Elapsed: elapsed, Gaps: len(res.Gaps), Stats: res.Stats})
			fmt.Fprintf(os.Stderr, "    %dms, %d gaps, ~%d tokens\n", elapsed.Milliseconds(), len(res.Gaps), res.Stats.EstTokens)
		}
	}

	printReport(strategies, results, *tenantID, len(docs))
}

func splitNonEmpty(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ',' {
			if cur != "" {
				out = append(out, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func printReport(strategies []string, results []runResult, tenantID string, docCount int) {
	now := time.Now().Format("2006-01-02 15:04 MST")

	fmt.Println("# Gap Analysis Strategy Benchmark")
	fmt.Println()
	fmt.Printf("**Date:** %s\n", now)
	fmt.Printf("**Tenant:** %s\n", tenantID)
	fmt.Printf("**Documents in window:** %d\n", docCount)
	fmt.Println()
	fmt.Println("---")
	fmt.Println()

	fmt.Println("## Per-Strategy Results")
	fmt.Println()
	fmt.Println("| Strategy | Runs | Avg Latency | P95 Latency | Avg Gaps | Avg Tokens | Errors |")
	fmt.Println("|---|---|---|---|---|---|---|")

	for _, name := range strategies {
		var latencies []int64
		var gapCounts []int64
		var tokenCounts []int64
		var errCount int
		var total int

		for _, r := range results {
			if r.Strategy != name {
				continue
			}
			total++
			if r.Err != nil {
				errCount++
				continue
			}
			latencies = append(latencies, r.Elapsed.Milliseconds())
			gapCounts = append(gapCounts, int64(r.Gaps))
			tokenCounts = append(tokenCounts, int64(r.Stats.EstTokens))
		}
		if total == 0 {
			continue
		}

		fmt.Printf("| %s | %d | %dms | %dms | %d | %d | %d/%d |\n",
			name, total, avg(latencies), percentile(latencies, 95), avg(gapCounts), avg(tokenCounts), errCount, total)
	}

	fmt.Println()
	fmt.Println("---")
	fmt.Println()
	fmt.Println("Token counts are estimates from gapanalysis.PrepareCorpus, not a billed count.")
}

func avg(vals []int64) int64 {
	if len(vals) == 0 {
		return 0
	}
	var sum int64
	for _, v := range vals {
		sum += v
	}
	return sum / int64(len(vals))
}

func percentile(vals []int64, p float64) int64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]int64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
