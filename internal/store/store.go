// Package store persists sync tasks and tenants. Every read excludes soft-deleted rows,
// and task updates are guarded by an optimistic version check.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

var (
	// ErrNotFound is returned when a live record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when the stored version differs from the expected version
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicate is returned when a unique key is already used by a live record
	ErrDuplicate = errors.New("duplicate record")
)

const (
	// DefaultPageSize is used when a filter sets no limit
	DefaultPageSize = 50

	// MaxPageSize caps the limit of a filter
	MaxPageSize = 500
)

// TaskFilter selects live tasks. Zero-valued fields match everything.
type TaskFilter struct {
	TenantID *uuid.UUID
	Status   *task.Status
	Health   *task.HealthStatus
	Limit    int
	Offset   int
}

// pageBounds returns the effective limit and offset
func (f TaskFilter) pageBounds() (int, int) {
	return clampPage(f.Limit, f.Offset)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// UpdateFunc mutates a copy of the stored task inside a guarded update
type UpdateFunc func(t *task.SyncTask) error

// TaskStore persists sync tasks
type TaskStore interface {
	// CreateTask stores a new task. ErrDuplicate when its (tenant, code) is used by a live task.
	CreateTask(ctx context.Context, t *task.SyncTask) error

	// GetTask returns a live task by id, ErrNotFound otherwise
	GetTask(ctx context.Context, id uuid.UUID) (*task.SyncTask, error)

	// GetTaskByCode returns the live task with code in the tenant
	GetTaskByCode(ctx context.Context, tenantID uuid.UUID, code string) (*task.SyncTask, error)

	// FindByConnectorName returns the live task referencing the connector
	FindByConnectorName(ctx context.Context, name string) (*task.SyncTask, error)

	// ListTasks returns live tasks matching the filter, oldest first
	ListTasks(ctx context.Context, filter TaskFilter) ([]*task.SyncTask, error)

	// CountTasks counts live tasks matching the filter, ignoring paging
	CountTasks(ctx context.Context, filter TaskFilter) (int64, error)

	// UpdateAtomically applies fn to the stored task if its version equals expectedVersion,
	// then persists it with the version incremented. ErrVersionConflict when the version moved.
	// Returning an error from fn aborts the update.
	UpdateAtomically(ctx context.Context, id uuid.UUID, expectedVersion int64, fn UpdateFunc) (*task.SyncTask, error)
}

// TenantStore persists tenants
type TenantStore interface {
	// CreateTenant stores a new tenant. ErrDuplicate when its code is used by a live tenant.
	CreateTenant(ctx context.Context, t *task.Tenant) error

	// GetTenant returns a live tenant by id
	GetTenant(ctx context.Context, id uuid.UUID) (*task.Tenant, error)

	// GetTenantByCode returns a live tenant by code
	GetTenantByCode(ctx context.Context, code string) (*task.Tenant, error)

	// ListTenants returns live tenants, oldest first
	ListTenants(ctx context.Context, limit, offset int) ([]*task.Tenant, error)
}

// Store is the full persistence collaborator
type Store interface {
	TaskStore
	TenantStore

	// Ping verifies the backing storage is reachable
	Ping(ctx context.Context) error

	// Close releases the backing storage
	Close()
}
