// Command controlplane is C11's host process: it wires every
// collaborator (Store, Connectors, Parser, Extractor, VectorService,
// RateLimiter, gap analyzers) into an Orchestrator, runs its NATS JetStream job loop and
// Pub/Sub ingress bridge, and serves /healthz and /metrics. It also
// exposes the migrate/seed/reset CLI verbs from spec.md §6.
//
// Usage:
//
//	controlplane serve
//	controlplane migrate
//	controlplane seed
//	controlplane reset
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lantern-ai/lantern-engine/internal/cache"
	"github.com/lantern-ai/lantern-engine/internal/config"
	"github.com/lantern-ai/lantern-engine/internal/embedding"
	"github.com/lantern-ai/lantern-engine/internal/extractor"
	"github.com/lantern-ai/lantern-engine/internal/gapanalysis/v3"
	"github.com/lantern-ai/lantern-engine/internal/llm"
	"github.com/lantern-ai/lantern-engine/internal/model"
	"github.com/lantern-ai/lantern-engine/internal/orchestrator"
	"github.com/lantern-ai/lantern-engine/internal/parser"
	"github.com/lantern-ai/lantern-engine/internal/ratelimit"
	"github.com/lantern-ai/lantern-engine/internal/store"
	"github.com/lantern-ai/lantern-engine/internal/telemetry"
	"github.com/lantern-ai/lantern-engine/internal/vectorindex"
	"github.com/lantern-ai/lantern-engine/internal/vectorservice"

	"github.com/lantern-ai/lantern-engine/migrations"
)

func main() {
	verb := "serve"
	if len(os.Args) > 1 {
		verb = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("config.Load", err)
	}

	switch verb {
	case "migrate":
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			fatal("migrations.Up", err)
		}
	case "reset":
		if err := runReset(cfg); err != nil {
			fatal("reset", err)
		}
	case "seed":
		if err := runSeed(cfg); err != nil {
			fatal("seed", err)
		}
	case "serve":
		if err := run(cfg); err != nil {
			fatal("run", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown verb %q (want serve|migrate|seed|reset)\n", verb)
		os.Exit(2)
	}
}

func fatal(op string, err error) {
	slog.Error("controlplane: fatal", "op", op, "error", err)
	os.Exit(1)
}

func runReset(cfg *config.Config) error {
	if err := migrations.Reset(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrations.Reset: %w", err)
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	c := cache.New(redisClient)
	if err := c.Clear(context.Background(), "controlplane"); err != nil {
		return fmt.Errorf("cache.Clear: %w", err)
	}
	slog.Info("controlplane: reset complete", "database", true, "cache", true)
	return nil
}

func runSeed(cfg *config.Config) error {
	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return fmt.Errorf("store.NewPool: %w", err)
	}
	defer pool.Close()
	if err := migrations.Seed(ctx, pool); err != nil {
		return fmt.Errorf("migrations.Seed: %w", err)
	}
	slog.Info("controlplane: seed complete")
	return nil
}

// deps bundles everything run() constructs so it can be torn down in
// reverse order on shutdown.
type deps struct {
	pool    *pgxpool.Pool
	nc      *nats.Conn
	redis   *redis.Client
	orch    *orchestrator.Orchestrator
	metrics *telemetry.Metrics
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := wire(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wire: %w", err)
	}
	defer teardown(d)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + envOr("PORT", "8080"),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("controlplane: starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	if cfg.PubSubSubID != "" {
		go func() {
			if err := runPubSubIngress(ctx, cfg, d.orch); err != nil && ctx.Err() == nil {
				slog.Error("controlplane: pubsub ingress stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("controlplane: shutting down gracefully")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	d.orch.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("controlplane: stopped")
	return nil
}

func runPubSubIngress(ctx context.Context, cfg *config.Config, orch *orchestrator.Orchestrator) error {
	client, err := pubsub.NewClient(ctx, cfg.GCPProject)
	if err != nil {
		return fmt.Errorf("pubsub.NewClient: %w", err)
	}
	defer client.Close()
	sub := client.Subscription(cfg.PubSubSubID)
	return orch.RunPubSubIngress(ctx, sub)
}

func wire(ctx context.Context, cfg *config.Config) (*deps, error) {
	pool, err := store.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return nil, fmt.Errorf("store.NewPool: %w", err)
	}
	st := store.New(pool)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	limiter := ratelimit.New(redisClient, ratelimit.DefaultPlanLimits)

	vertexClient, err := llm.NewVertexClient(ctx, cfg.GCPProject, cfg.VertexAILocation, cfg.VertexAIModel)
	if err != nil {
		return nil, fmt.Errorf("llm.NewVertexClient: %w", err)
	}

	embedClient, err := embedding.NewClient(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	if err != nil {
		return nil, fmt.Errorf("embedding.NewClient: %w", err)
	}

	index, err := newVectorIndex(cfg, pool)
	if err != nil {
		return nil, err
	}

	reg := prometheus.DefaultRegisterer
	metrics := telemetry.NewMetrics(reg)
	vector := vectorservice.New(index, embedClient, cfg.ChunkSizeChars, cfg.ChunkOverlapChars).WithMetrics(metrics)

	var docAI parser.DocAIClient
	if cfg.DocAIProcessorID != "" {
		docAI, err = parser.NewDocAIAdapter(ctx, cfg.GCPProject, cfg.DocAILocation, cfg.DocAIProcessorID)
		if err != nil {
			return nil, fmt.Errorf("parser.NewDocAIAdapter: %w", err)
		}
	}
	docParser := parser.NewRouter(docAI)

	ext := extractor.New(vertexClient)

	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("nats.Connect: %w", err)
	}

	feedback := v3.NewFeedbackRecorder()
	var graphStore *v3.GraphStore
	if cfg.Neo4jURI != "" {
		graphStore, err = v3.NewGraphStore(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, fmt.Errorf("v3.NewGraphStore: %w", err)
		}
	}
	analyzers := orchestrator.NewAnalyzerSet(vertexClient, st.Gaps, graphStore, feedback)

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:       st,
		Connectors:  newConnectorBuilder(nil),
		Parser:      docParser,
		Extractor:   ext,
		Vector:      vector,
		RateLimiter: limiter,
		Plans: func(ctx context.Context, tenantID string) (model.Plan, error) {
			t, err := st.Tenants.Get(ctx, tenantID)
			if err != nil {
				return "", err
			}
			return t.Plan, nil
		},
		Analyzers:        analyzers,
		Feedback:         feedback,
		Metrics:          metrics,
		NATS:             nc,
		JobStreamName:    cfg.OrchestratorJobStreamName,
		WorkerPoolSize:   cfg.OrchestratorWorkerPoolSize,
		MaxConcurrentLLM: cfg.OrchestratorMaxConcurrentLLM,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator.New: %w", err)
	}

	return &deps{pool: pool, nc: nc, redis: redisClient, orch: orch, metrics: metrics}, nil
}

func newVectorIndex(cfg *config.Config, pool *pgxpool.Pool) (vectorindex.Index, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		return vectorindex.NewQdrantIndex(cfg.QdrantAddr, cfg.EmbeddingDimensions)
	default:
		return vectorindex.NewPGVectorIndex(pool), nil
	}
}

func teardown(d *deps) {
	if d.nc != nil {
		d.nc.Close()
	}
	if d.redis != nil {
		d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
