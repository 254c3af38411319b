// Package migrations wraps golang-migrate/v4 around the SQL files in
// sql/, and provides Reset/Seed helpers for local development and
// integration tests, mirroring the scripts/reset_database.py and
// scripts/seed_database.py verbs of the original implementation.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed sql/*.sql
var sqlFS embed.FS

// Up applies every pending migration in sql/.
func Up(databaseURL string) error {
	m, err := newMigrate(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations.Up: %w", err)
	}
	return nil
}

// Down reverts every applied migration.
func Down(databaseURL string) error {
	m, err := newMigrate(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations.Down: %w", err)
	}
	return nil
}

// Reset drops and recreates the schema. Used by the `controlplane
// migrate reset` CLI verb and by integration tests that need a clean
// database between runs.
func Reset(databaseURL string) error {
	if err := Down(databaseURL); err != nil {
		return fmt.Errorf("migrations.Reset: down: %w", err)
	}
	if err := Up(databaseURL); err != nil {
		return fmt.Errorf("migrations.Reset: up: %w", err)
	}
	return nil
}

func newMigrate(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(sqlFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: load embedded sql: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("migrations: new migrate instance: %w", err)
	}
	return m, nil
}

// Seed inserts a demo tenant and an admin user, for local development
// against `controlplane migrate seed`.
// It is idempotent: rerunning it against an already-seeded database
// is a no-op because every insert is ON CONFLICT DO NOTHING.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	const seedSQL = `
		INSERT INTO tenants (id, slug, plan, data_dir)
		VALUES ('demo-tenant', 'demo', 'PROFESSIONAL', '/var/lib/lantern/demo')
		ON CONFLICT (id) DO NOTHING;

		INSERT INTO users (id, tenant_id, email, password_hash, role)
		VALUES ('demo-admin', 'demo-tenant', 'admin@demo.local', 'not-a-real-hash', 'ADMIN')
		ON CONFLICT (tenant_id, email) DO NOTHING;
	`
	if _, err := pool.Exec(ctx, seedSQL); err != nil {
		return fmt.Errorf("migrations.Seed: %w", err)
	}
	return nil
}

// Files returns the embedded migration filenames, for diagnostics.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(sqlFS, "sql")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
