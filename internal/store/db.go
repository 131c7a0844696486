package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/dbsync-orchestrator/internal/db"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// dbStore keeps tasks and tenants in PostgreSQL
type dbStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a PostgreSQL-backed store. The store owns the pool.
func NewDBStore(pool *pgxpool.Pool) Store {
	return &dbStore{pool: pool}
}

func (d *dbStore) queries() *db.Queries {
	return db.New(d.pool)
}

// translate maps driver errors to store sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrDuplicate
	}
	return err
}

func (d *dbStore) CreateTask(ctx context.Context, t *task.SyncTask) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	q := d.queries().WithTx(tx)
	exists, err := q.TaskCodeExists(ctx, t.TenantID, t.TaskCode)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicate
	}
	if err := q.InsertTask(ctx, t); err != nil {
		return translate(err)
	}
	return tx.Commit(ctx)
}

func (d *dbStore) GetTask(ctx context.Context, id uuid.UUID) (*task.SyncTask, error) {
	t, err := d.queries().GetTask(ctx, id)
	return t, translate(err)
}

func (d *dbStore) GetTaskByCode(ctx context.Context, tenantID uuid.UUID, code string) (*task.SyncTask, error) {
	t, err := d.queries().GetTaskByCode(ctx, tenantID, code)
	return t, translate(err)
}

func (d *dbStore) FindByConnectorName(ctx context.Context, name string) (*task.SyncTask, error) {
	t, err := d.queries().GetTaskByConnectorName(ctx, name)
	return t, translate(err)
}

func listParams(filter TaskFilter) db.ListTasksParams {
	limit, offset := filter.pageBounds()
	p := db.ListTasksParams{
		TenantID: filter.TenantID,
		Limit:    int32(limit),  //nolint:gosec // bounded by MaxPageSize
		Offset:   int32(offset), //nolint:gosec // offsets beyond int32 are not supported
	}
	if filter.Status != nil {
		s := string(*filter.Status)
		p.Status = &s
	}
	if filter.Health != nil {
		h := string(*filter.Health)
		p.Health = &h
	}
	return p
}

func (d *dbStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*task.SyncTask, error) {
	items, err := d.queries().ListTasks(ctx, listParams(filter))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*task.SyncTask{}
	}
	return items, nil
}

func (d *dbStore) CountTasks(ctx context.Context, filter TaskFilter) (int64, error) {
	return d.queries().CountTasks(ctx, listParams(filter))
}

func (d *dbStore) UpdateAtomically(
	ctx context.Context, id uuid.UUID, expectedVersion int64, fn UpdateFunc,
) (*task.SyncTask, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	q := d.queries().WithTx(tx)
	current, err := q.GetTaskForUpdate(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Version = current.Version + 1
	next.UpdatedAt = db.Now()

	n, err := q.UpdateTask(ctx, next, expectedVersion)
	if err != nil {
		return nil, translate(err)
	}
	if n != 1 {
		return nil, ErrVersionConflict
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit task update: %w", err)
	}
	return next, nil
}

func (d *dbStore) CreateTenant(ctx context.Context, t *task.Tenant) error {
	return translate(d.queries().InsertTenant(ctx, t))
}

func (d *dbStore) GetTenant(ctx context.Context, id uuid.UUID) (*task.Tenant, error) {
	t, err := d.queries().GetTenant(ctx, id)
	return t, translate(err)
}

func (d *dbStore) GetTenantByCode(ctx context.Context, code string) (*task.Tenant, error) {
	t, err := d.queries().GetTenantByCode(ctx, code)
	return t, translate(err)
}

func (d *dbStore) ListTenants(ctx context.Context, limit, offset int) ([]*task.Tenant, error) {
	limit, offset = clampPage(limit, offset)
	items, err := d.queries().ListTenants(ctx, int32(limit), int32(offset)) //nolint:gosec // bounded
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*task.Tenant{}
	}
	return items, nil
}

func (d *dbStore) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *dbStore) Close() {
	d.pool.Close()
}
