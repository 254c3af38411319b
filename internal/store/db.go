// Package store is the relational persistence layer: a pgxpool-backed
// Postgres connection plus one repository type per entity in
// internal/model. Every query that reads or writes tenant-scoped rows
// takes tenant_id as an explicit parameter and includes it in the WHERE
// clause — the first of the three tenant-isolation layers described in
// spec.md §3.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// NewPool creates a PostgreSQL connection pool with pgvector type
// registration, mirroring the pooling defaults used elsewhere in this
// codebase's Postgres-backed services.
func NewPool(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store.NewPool: parse config: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MinConns = 2
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	cfg.AfterConnect = pgxvector.RegisterTypes

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store.NewPool: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store.NewPool: ping: %w", err)
	}

	return pool, nil
}

// Store bundles every repository against a shared pool, the unit that
// cmd/controlplane constructs once at startup and injects into every
// component that needs persistence.
type Store struct {
	Pool       *pgxpool.Pool
	Tenants    *TenantRepo
	Users      *UserRepo
	Connectors *ConnectorRepo
	Documents  *DocumentRepo
	Gaps       *GapRepo
	Answers    *AnswerRepo
}

// New wires a Store from an already-connected pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Pool:       pool,
		Tenants:    &TenantRepo{pool: pool},
		Users:      &UserRepo{pool: pool},
		Connectors: &ConnectorRepo{pool: pool},
		Documents:  &DocumentRepo{pool: pool},
		Gaps:       &GapRepo{pool: pool},
		Answers:    &AnswerRepo{pool: pool},
	}
}
