package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/otel"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// codePattern restricts codes to characters that are safe in connector and topic names
var codePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,99}$`)

// Create validates and registers a new task in CREATED status with UNKNOWN health
func (s *service) Create(ctx context.Context, in *task.SyncTask) (_ *task.SyncTask, err error) {
	ctx, finish := s.startSpan(ctx, OpCreate)
	defer finish(&err)

	t := in.Clone()
	if err := normalizeNewTask(t); err != nil {
		return nil, err
	}
	if _, err := s.GetTenant(ctx, t.TenantID); err != nil {
		return nil, err
	}

	now := s.now()
	t.ID = uuid.New()
	t.Status = task.StatusCreated
	t.HealthStatus = task.HealthUnknown
	t.ConnectorName = nil
	t.LastError = nil
	t.ErrorCount = 0
	t.TotalRecordsSynced = 0
	t.LastSyncTime = nil
	t.CreatedAt = now
	t.UpdatedAt = now
	t.UpdatedBy = t.CreatedBy
	t.DeletedAt = nil
	t.Version = 1
	if t.SyncMode == "" {
		t.SyncMode = task.SyncModeFullIncremental
	}

	if err := s.store.CreateTask(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, task.NewDuplicateTaskCode(t.TenantID, t.TaskCode)
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	logger.FromContext(ctx).Infow("Sync task created",
		"task_id", t.ID, "task_code", t.TaskCode, "tenant_id", t.TenantID)
	return t.Clone(), nil
}

// normalizeNewTask validates a new task and rewrites its enum fields to their canonical spelling
func normalizeNewTask(t *task.SyncTask) error {
	if t == nil {
		return task.NewInvalidArgument("task is required")
	}
	if t.TenantID == uuid.Nil {
		return task.NewInvalidArgument("tenantId is required")
	}
	if strings.TrimSpace(t.TaskName) == "" {
		return task.NewInvalidArgument("taskName is required")
	}
	if !codePattern.MatchString(t.TaskCode) {
		return task.NewInvalidArgument("taskCode %q must match %s", t.TaskCode, codePattern)
	}
	source, err := task.ParseDatabaseKind(string(t.SourceDBType))
	if err != nil {
		return task.NewInvalidArgument("sourceDbType: %v", err)
	}
	t.SourceDBType = source
	if t.TargetDBType != "" {
		target, err := task.ParseDatabaseKind(string(t.TargetDBType))
		if err != nil {
			return task.NewInvalidArgument("targetDbType: %v", err)
		}
		t.TargetDBType = target
	}
	if t.SyncMode != "" {
		mode, err := task.ParseSyncMode(string(t.SyncMode))
		if err != nil {
			return task.NewInvalidArgument("syncMode: %v", err)
		}
		t.SyncMode = mode
	}
	for name, doc := range map[string]json.RawMessage{
		"sourceConnectionConfig": t.SourceConnectionConfig,
		"targetConnectionConfig": t.TargetConnectionConfig,
		"connectorConfig":        t.ConnectorConfig,
		"alertConfig":            t.AlertConfig,
		"scheduleConfig":         t.ScheduleConfig,
	} {
		if len(doc) > 0 && !json.Valid(doc) {
			return task.NewInvalidArgument("%s is not valid JSON", name)
		}
	}
	return nil
}

func validatePatch(p task.Patch) error {
	if p.TaskName != nil && strings.TrimSpace(*p.TaskName) == "" {
		return task.NewInvalidArgument("taskName cannot be empty")
	}
	if len(p.AlertConfig) > 0 && !json.Valid(p.AlertConfig) {
		return task.NewInvalidArgument("alertConfig is not valid JSON")
	}
	if len(p.ScheduleConfig) > 0 && !json.Valid(p.ScheduleConfig) {
		return task.NewInvalidArgument("scheduleConfig is not valid JSON")
	}
	return nil
}

// RecomputeHealth refreshes the health of a task that has a connector. Status is never changed.
// Connector and persistence failures are logged and the last known health is returned.
func (s *service) RecomputeHealth(ctx context.Context, id uuid.UUID) (_ task.HealthStatus, err error) {
	ctx, finish := s.startSpan(ctx, OpRecomputeHealth, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	var last task.HealthStatus
	updated, err := s.execute(ctx, OpRecomputeHealth, id, func(ctx context.Context, current *task.SyncTask) (mutation, error) {
		last = current.HealthStatus
		if !current.HasConnector() {
			return nil, nil
		}
		h, err := s.lifecycle.Health(ctx, current.ConnectorRef())
		if err != nil {
			logger.FromContext(ctx).Warnw("Failed to read connector health",
				"task_id", current.ID, "connector", current.ConnectorRef(), "error", err)
			return nil, nil
		}
		if h.Status == current.HealthStatus && h.Status != task.HealthUnhealthy {
			return nil, nil
		}
		return func(t *task.SyncTask) {
			t.HealthStatus = h.Status
			if h.Status == task.HealthUnhealthy {
				msg := h.Message
				t.LastError = &msg
				t.ErrorCount++
			}
		}, nil
	})
	switch {
	case err == nil:
		return updated.HealthStatus, nil
	case errors.Is(err, task.ErrTaskNotFound):
		return "", err
	default:
		logger.FromContext(ctx).Warnw("Health recomputation failed", "task_id", id, "error", err)
		return last, nil
	}
}

// RecordProgress adds records to the synced total and stamps the last sync time
func (s *service) RecordProgress(ctx context.Context, id uuid.UUID, records int64) (_ *task.SyncTask, err error) {
	ctx, finish := s.startSpan(ctx, OpRecordProgress, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	if records < 0 {
		return nil, task.NewInvalidArgument("recordsSynced must not be negative, got %d", records)
	}
	return s.execute(ctx, OpRecordProgress, id, func(context.Context, *task.SyncTask) (mutation, error) {
		syncedAt := s.now()
		return func(t *task.SyncTask) {
			t.TotalRecordsSynced += records
			t.LastSyncTime = &syncedAt
		}, nil
	})
}

// GetByID returns a live task
func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*task.SyncTask, error) {
	return s.load(ctx, "get", id)
}

// GetByCode returns the live task with the code inside the tenant
func (s *service) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*task.SyncTask, error) {
	t, err := s.store.GetTaskByCode(ctx, tenantID, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, task.NewTaskCodeNotFound(code)
	}
	return t, err
}

// ListByTenant lists the live tasks of a tenant, oldest first
func (s *service) ListByTenant(ctx context.Context, tenantID uuid.UUID, page Page) ([]*task.SyncTask, error) {
	return s.list(ctx, store.TaskFilter{TenantID: &tenantID}, page)
}

// ListByStatus lists live tasks in the given status
func (s *service) ListByStatus(ctx context.Context, status task.Status, page Page) ([]*task.SyncTask, error) {
	if !status.Valid() {
		return nil, task.NewInvalidArgument("unknown status %q", status)
	}
	return s.list(ctx, store.TaskFilter{Status: &status}, page)
}

// ListByHealth lists live tasks with the given health
func (s *service) ListByHealth(ctx context.Context, health task.HealthStatus, page Page) ([]*task.SyncTask, error) {
	if !health.Valid() {
		return nil, task.NewInvalidArgument("unknown health status %q", health)
	}
	return s.list(ctx, store.TaskFilter{Health: &health}, page)
}

func (s *service) list(ctx context.Context, filter store.TaskFilter, page Page) ([]*task.SyncTask, error) {
	filter.Limit, filter.Offset = page.Limit, page.Offset
	items, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return items, nil
}

// CountByTenant counts the live tasks of a tenant
func (s *service) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.store.CountTasks(ctx, store.TaskFilter{TenantID: &tenantID})
}

// CountByTenantAndStatus counts the live tasks of a tenant in one status
func (s *service) CountByTenantAndStatus(ctx context.Context, tenantID uuid.UUID, status task.Status) (int64, error) {
	if !status.Valid() {
		return 0, task.NewInvalidArgument("unknown status %q", status)
	}
	return s.store.CountTasks(ctx, store.TaskFilter{TenantID: &tenantID, Status: &status})
}
