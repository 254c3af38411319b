// Package config loads the engine's configuration from environment
// variables, following the fail-fast-on-required-var pattern used
// throughout this codebase's ambient stack.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// VectorBackend selects which VectorIndex implementation to construct.
type VectorBackend string

const (
	VectorBackendPGVector VectorBackend = "pgvector"
	VectorBackendQdrant   VectorBackend = "qdrant"
)

// Config holds all application configuration loaded from environment
// variables. It is immutable after Load() returns.
type Config struct {
	Environment string

	// Relational store
	DatabaseURL      string
	DatabaseMaxConns int

	// GCP / Vertex AI
	GCPProject          string
	GCPRegion           string
	VertexAILocation    string
	VertexAIModel       string
	EmbeddingLocation   string
	EmbeddingModel      string
	EmbeddingDimensions int
	DocAILocation       string
	DocAIProcessorID    string
	GCSBucketName       string

	// Vector index
	VectorBackend VectorBackend
	QdrantAddr    string

	// Knowledge graph
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Caches / rate limiter backing store
	RedisAddr string

	// Messaging
	NATSURL        string
	PubSubTopicID  string
	PubSubSubID    string

	// Chunking (spec.md §4.4)
	ChunkSizeChars    int
	ChunkOverlapChars int

	// Gap analysis (spec.md §4.6)
	GapAnalyzerStrategy string
	GapTokenBudgetChars int

	// Crawler politeness defaults (spec.md §4.2)
	CrawlerMaxDepth       int
	CrawlerMaxPages       int
	CrawlerMinContentLen  int
	CrawlerPoliteDelayMS  int
	CrawlerUserAgent      string

	// Orchestrator (spec.md §4.7, SPEC_FULL.md §8)
	OrchestratorWorkerPoolSize  int
	OrchestratorMaxConcurrentLLM int
	OrchestratorJobStreamName   string
}

// Load reads configuration from environment variables.
// Required variables (DATABASE_URL, GOOGLE_CLOUD_PROJECT) cause an error
// if missing. Optional variables use sensible defaults.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	gcpProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if gcpProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required")
	}

	cfg := &Config{
		Environment:         envStr("ENVIRONMENT", "development"),
		DatabaseURL:         dbURL,
		DatabaseMaxConns:    envInt("DATABASE_MAX_CONNS", 25),
		GCPProject:          gcpProject,
		GCPRegion:           envStr("GCP_REGION", "us-east4"),
		VertexAILocation:    envStr("VERTEX_AI_LOCATION", "global"),
		VertexAIModel:       envStr("VERTEX_AI_MODEL", "gemini-3-pro-preview"),
		EmbeddingLocation:   envStr("VERTEX_AI_EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingModel:      envStr("VERTEX_AI_EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 768),
		DocAILocation:       envStr("DOCUMENT_AI_LOCATION", "us"),
		DocAIProcessorID:    envStr("DOCUMENT_AI_PROCESSOR_ID", ""),
		GCSBucketName:       envStr("GCS_BUCKET_NAME", ""),

		VectorBackend: VectorBackend(envStr("VECTOR_BACKEND", string(VectorBackendPGVector))),
		QdrantAddr:    envStr("QDRANT_ADDR", "localhost:6334"),

		Neo4jURI:      envStr("NEO4J_URI", ""),
		Neo4jUser:     envStr("NEO4J_USER", "neo4j"),
		Neo4jPassword: envStr("NEO4J_PASSWORD", ""),

		RedisAddr: envStr("REDIS_ADDR", "localhost:6379"),

		NATSURL:       envStr("NATS_URL", "nats://localhost:4222"),
		PubSubTopicID: envStr("PUBSUB_TOPIC_ID", "lantern-sync-triggers"),
		PubSubSubID:   envStr("PUBSUB_SUB_ID", "lantern-sync-triggers-sub"),

		ChunkSizeChars:    envInt("CHUNK_SIZE_CHARS", 2000),
		ChunkOverlapChars: envInt("CHUNK_OVERLAP_CHARS", 400),

		GapAnalyzerStrategy: envStr("GAP_ANALYZER_STRATEGY", "v3"),
		GapTokenBudgetChars: envInt("GAP_TOKEN_BUDGET_CHARS", 400000),

		CrawlerMaxDepth:      envInt("CRAWLER_MAX_DEPTH", 3),
		CrawlerMaxPages:      envInt("CRAWLER_MAX_PAGES", 200),
		CrawlerMinContentLen: envInt("CRAWLER_MIN_CONTENT_LEN", 100),
		CrawlerPoliteDelayMS: envInt("CRAWLER_POLITE_DELAY_MS", 500),
		CrawlerUserAgent:     envStr("CRAWLER_USER_AGENT", "LanternBot/1.0 (+https://lantern.example/bot)"),

		OrchestratorWorkerPoolSize:   envInt("ORCHESTRATOR_WORKER_POOL_SIZE", runtime.GOMAXPROCS(0)*4),
		OrchestratorMaxConcurrentLLM: envInt("ORCHESTRATOR_MAX_CONCURRENT_LLM", 8),
		OrchestratorJobStreamName:    envStr("ORCHESTRATOR_JOB_STREAM", "LANTERN_JOBS"),
	}

	if cfg.VectorBackend != VectorBackendPGVector && cfg.VectorBackend != VectorBackendQdrant {
		return nil, fmt.Errorf("config.Load: VECTOR_BACKEND must be %q or %q, got %q",
			VectorBackendPGVector, VectorBackendQdrant, cfg.VectorBackend)
	}

	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
