package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// memoryStore keeps tasks and tenants in process memory
type memoryStore struct {
	mu      sync.RWMutex
	tasks   map[uuid.UUID]*task.SyncTask
	tenants map[uuid.UUID]*task.Tenant
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() Store {
	return &memoryStore{
		tasks:   make(map[uuid.UUID]*task.SyncTask),
		tenants: make(map[uuid.UUID]*task.Tenant),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *memoryStore) CreateTask(_ context.Context, t *task.SyncTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[t.ID]; exists {
		return ErrDuplicate
	}
	if m.liveTaskByCode(t.TenantID, t.TaskCode) != nil {
		return ErrDuplicate
	}
	m.tasks[t.ID] = t.Clone()
	return nil
}

func (m *memoryStore) GetTask(_ context.Context, id uuid.UUID) (*task.SyncTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok || t.IsDeleted() {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *memoryStore) GetTaskByCode(_ context.Context, tenantID uuid.UUID, code string) (*task.SyncTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.liveTaskByCode(tenantID, code)
	if t == nil {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *memoryStore) FindByConnectorName(_ context.Context, name string) (*task.SyncTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tasks {
		if !t.IsDeleted() && t.ConnectorRef() == name {
			return t.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) ListTasks(_ context.Context, filter TaskFilter) ([]*task.SyncTask, error) {
	m.mu.RLock()
	matched := m.matching(filter)
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	limit, offset := filter.pageBounds()
	if offset >= len(matched) {
		return []*task.SyncTask{}, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

func (m *memoryStore) CountTasks(_ context.Context, filter TaskFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.matching(filter))), nil
}

func (m *memoryStore) UpdateAtomically(
	_ context.Context, id uuid.UUID, expectedVersion int64, fn UpdateFunc,
) (*task.SyncTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.tasks[id]
	if !ok || current.IsDeleted() {
		return nil, ErrNotFound
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
	next.UpdatedAt = m.now()
	m.tasks[id] = next
	return next.Clone(), nil
}

// matching returns clones of live tasks matching the filter; callers hold the lock
func (m *memoryStore) matching(filter TaskFilter) []*task.SyncTask {
	var out []*task.SyncTask
	for _, t := range m.tasks {
		if t.IsDeleted() {
			continue
		}
		if filter.TenantID != nil && t.TenantID != *filter.TenantID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Health != nil && t.HealthStatus != *filter.Health {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

func (m *memoryStore) liveTaskByCode(tenantID uuid.UUID, code string) *task.SyncTask {
	for _, t := range m.tasks {
		if !t.IsDeleted() && t.TenantID == tenantID && t.TaskCode == code {
			return t
		}
	}
	return nil
}

func (m *memoryStore) CreateTenant(_ context.Context, t *task.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tenants[t.ID]; exists {
		return ErrDuplicate
	}
	for _, existing := range m.tenants {
		if existing.DeletedAt == nil && existing.TenantCode == t.TenantCode {
			return ErrDuplicate
		}
	}
	m.tenants[t.ID] = t.Clone()
	return nil
}

func (m *memoryStore) GetTenant(_ context.Context, id uuid.UUID) (*task.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[id]
	if !ok || t.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *memoryStore) GetTenantByCode(_ context.Context, code string) (*task.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tenants {
		if t.DeletedAt == nil && t.TenantCode == code {
			return t.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) ListTenants(_ context.Context, limit, offset int) ([]*task.Tenant, error) {
	m.mu.RLock()
	out := make([]*task.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		if t.DeletedAt == nil {
			out = append(out, t.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	limit, offset = clampPage(limit, offset)
	if offset >= len(out) {
		return []*task.Tenant{}, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (*memoryStore) Ping(context.Context) error { return nil }

func (*memoryStore) Close() {}
