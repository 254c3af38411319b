package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lantern-ai/lantern-engine/internal/model"
)

// ConnectorRepo persists model.Connector rows. Every query is scoped by
// tenant_id; the unique partial index on (tenant_id, type) WHERE status
// != 'DISCONNECTED' enforces "exactly one active connector per type"
// at the database layer so a race between two API calls cannot create
// two live connectors of the same kind for one tenant.
type ConnectorRepo struct {
	pool *pgxpool.Pool
}

func (r *ConnectorRepo) Create(ctx context.Context, c *model.Connector) error {
	const q = `
		INSERT INTO connectors (id, tenant_id, type, credentials, settings, status, last_sync_cursor, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, q, c.ID, c.TenantID, c.Type, c.Credentials, c.Settings, c.Status, c.LastSyncCur).
		Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *ConnectorRepo) Get(ctx context.Context, tenantID, id string) (*model.Connector, error) {
	const q = `
		SELECT id, tenant_id, type, credentials, settings, status, last_sync_cursor, last_error, created_at, updated_at
		FROM connectors WHERE tenant_id = $1 AND id = $2`
	c := &model.Connector{}
	var lastErr *string
	err := r.pool.QueryRow(ctx, q, tenantID, id).Scan(
		&c.ID, &c.TenantID, &c.Type, &c.Credentials, &c.Settings, &c.Status, &c.LastSyncCur, &lastErr,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.ConnectorRepo.Get: %w", err)
	}
	if lastErr != nil {
		c.LastError = *lastErr
	}
	return c, nil
}

func (r *ConnectorRepo) ListByTenant(ctx context.Context, tenantID string) ([]*model.Connector, error) {
	const q = `
		SELECT id, tenant_id, type, credentials, settings, status, last_sync_cursor, last_error, created_at, updated_at
		FROM connectors WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store.ConnectorRepo.ListByTenant: %w", err)
	}
	defer rows.Close()

	var out []*model.Connector
	for rows.Next() {
		c := &model.Connector{}
		var lastErr *string
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Type, &c.Credentials, &c.Settings, &c.Status,
			&c.LastSyncCur, &lastErr, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store.ConnectorRepo.ListByTenant: scan: %w", err)
		}
		if lastErr != nil {
			c.LastError = *lastErr
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus performs a CAS-style transition: it only applies if the
// row's current status equals from, so two concurrent sync triggers
// can't both flip CONNECTED -> SYNCING. model.ConnectorStatus.CanTransition
// must be checked by the caller before calling this.
func (r *ConnectorRepo) UpdateStatus(ctx context.Context, tenantID, id string, from, to model.ConnectorStatus, lastErr string) error {
	const q = `
		UPDATE connectors
		SET status = $4, last_error = NULLIF($5, ''), updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = $3`
	tag, err := r.pool.Exec(ctx, q, tenantID, id, from, to, lastErr)
	if err != nil {
		return fmt.Errorf("store.ConnectorRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store.ConnectorRepo.UpdateStatus: no row matched tenant=%s id=%s status=%s", tenantID, id, from)
	}
	return nil
}

func (r *ConnectorRepo) UpdateCursor(ctx context.Context, tenantID, id, cursor string) error {
	const q = `UPDATE connectors SET last_sync_cursor = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, tenantID, id, cursor)
	if err != nil {
		return fmt.Errorf("store.ConnectorRepo.UpdateCursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConnectorRepo) Delete(ctx context.Context, tenantID, id string) error {
	const q = `DELETE FROM connectors WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, tenantID, id)
	if err != nil {
		return fmt.Errorf("store.ConnectorRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
