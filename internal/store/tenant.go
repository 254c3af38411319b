package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lantern-ai/lantern-engine/internal/model"
)

// ErrNotFound is returned by any repository Get when no row matches.
var ErrNotFound = errors.New("store: not found")

// TenantRepo persists model.Tenant rows.
type TenantRepo struct {
	pool *pgxpool.Pool
}

func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	const q = `
		INSERT INTO tenants (id, slug, plan, data_dir, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q, t.ID, t.Slug, t.Plan, t.DataDir).Scan(&t.CreatedAt)
}

func (r *TenantRepo) Get(ctx context.Context, id string) (*model.Tenant, error) {
	const q = `SELECT id, slug, plan, data_dir, created_at FROM tenants WHERE id = $1`
	t := &model.Tenant{}
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Slug, &t.Plan, &t.DataDir, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.TenantRepo.Get: %w", err)
	}
	return t, nil
}

func (r *TenantRepo) GetBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	const q = `SELECT id, slug, plan, data_dir, created_at FROM tenants WHERE slug = $1`
	t := &model.Tenant{}
	err := r.pool.QueryRow(ctx, q, slug).Scan(&t.ID, &t.Slug, &t.Plan, &t.DataDir, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.TenantRepo.GetBySlug: %w", err)
	}
	return t, nil
}

func (r *TenantRepo) UpdatePlan(ctx context.Context, id string, plan model.Plan) error {
	const q = `UPDATE tenants SET plan = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, plan)
	if err != nil {
		return fmt.Errorf("store.TenantRepo.UpdatePlan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UserRepo persists model.User rows, scoped by tenant.
type UserRepo struct {
	pool *pgxpool.Pool
}

func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
		INSERT INTO users (id, tenant_id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q, u.ID, u.TenantID, u.Email, u.PasswordHash, u.Role).Scan(&u.CreatedAt)
}

func (r *UserRepo) GetByEmail(ctx context.Context, tenantID, email string) (*model.User, error) {
	const q = `
		SELECT id, tenant_id, email, password_hash, role, created_at
		FROM users WHERE tenant_id = $1 AND email = $2`
	u := &model.User{}
	err := r.pool.QueryRow(ctx, q, tenantID, email).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.UserRepo.GetByEmail: %w", err)
	}
	return u, nil
}

func (r *UserRepo) ListByTenant(ctx context.Context, tenantID string) ([]*model.User, error) {
	const q = `
		SELECT id, tenant_id, email, password_hash, role, created_at
		FROM users WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store.UserRepo.ListByTenant: %w", err)
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("store.UserRepo.ListByTenant: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
