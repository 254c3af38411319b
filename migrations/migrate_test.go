package migrations

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getTestPool(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping migration integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return pool, dbURL
}

func TestUpCreatesAllTables(t *testing.T) {
	pool, dbURL := getTestPool(t)
	defer pool.Close()

	if err := Up(dbURL); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	ctx := context.Background()
	expectedTables := []string{
		"tenants", "users", "connectors", "documents",
		"deleted_documents", "document_chunks", "knowledge_gaps", "gap_answers",
	}
	for _, table := range expectedTables {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table,
		).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s does not exist after Up()", table)
		}
	}
}

func TestUpIsIdempotent(t *testing.T) {
	_, dbURL := getTestPool(t)

	if err := Up(dbURL); err != nil {
		t.Fatalf("first Up() failed: %v", err)
	}
	if err := Up(dbURL); err != nil {
		t.Fatalf("second Up() failed: %v", err)
	}
}

func TestResetCycle(t *testing.T) {
	pool, dbURL := getTestPool(t)
	defer pool.Close()

	if err := Reset(dbURL); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}

	ctx := context.Background()
	var exists bool
	err := pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'tenants')",
	).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check tenants table: %v", err)
	}
	if !exists {
		t.Error("tenants table does not exist after Reset()")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	pool, dbURL := getTestPool(t)
	defer pool.Close()

	if err := Up(dbURL); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	ctx := context.Background()
	if err := Seed(ctx, pool); err != nil {
		t.Fatalf("first Seed() failed: %v", err)
	}
	if err := Seed(ctx, pool); err != nil {
		t.Fatalf("second Seed() failed: %v", err)
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM tenants WHERE id = 'demo-tenant'").Scan(&count); err != nil {
		t.Fatalf("failed to count demo tenant: %v", err)
	}
	if count != 1 {
		t.Errorf("demo-tenant count = %d, want 1", count)
	}
}

func TestVectorColumnExists(t *testing.T) {
	pool, dbURL := getTestPool(t)
	defer pool.Close()

	if err := Up(dbURL); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	ctx := context.Background()
	var dataType string
	err := pool.QueryRow(ctx, `
		SELECT udt_name FROM information_schema.columns
		WHERE table_name = 'document_chunks' AND column_name = 'embedding'
	`).Scan(&dataType)
	if err != nil {
		t.Fatalf("failed to check embedding column: %v", err)
	}
	if dataType != "vector" {
		t.Errorf("embedding column type = %q, want %q", dataType, "vector")
	}
}
