package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Queries runs the task and tenant statements against a DBTX
type Queries struct {
	db DBTX
}

// New creates Queries bound to db
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const taskColumns = `id, tenant_id, task_name, task_code, description,
	source_db_type, source_connection_config, target_db_type, target_connection_config,
	connector_config, sync_mode, alert_config, schedule_config,
	status, health_status, connector_name, last_error, error_count,
	total_records_synced, last_sync_time,
	created_at, created_by, updated_at, updated_by, deleted_at, version`

const insertTask = `INSERT INTO sync_tasks (` + taskColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
	$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`

// InsertTask inserts a new task row
func (q *Queries) InsertTask(ctx context.Context, t *task.SyncTask) error {
	_, err := q.db.Exec(ctx, insertTask, taskArgs(t)...)
	return err
}

const getTask = `SELECT ` + taskColumns + ` FROM sync_tasks
WHERE id = $1 AND deleted_at IS NULL`

// GetTask returns a live task by id
func (q *Queries) GetTask(ctx context.Context, id uuid.UUID) (*task.SyncTask, error) {
	return scanTask(q.db.QueryRow(ctx, getTask, id))
}

const getTaskForUpdate = getTask + ` FOR UPDATE`

// GetTaskForUpdate returns a live task by id and locks its row until the transaction ends
func (q *Queries) GetTaskForUpdate(ctx context.Context, id uuid.UUID) (*task.SyncTask, error) {
	return scanTask(q.db.QueryRow(ctx, getTaskForUpdate, id))
}

const getTaskByCode = `SELECT ` + taskColumns + ` FROM sync_tasks
WHERE tenant_id = $1 AND task_code = $2 AND deleted_at IS NULL`

// GetTaskByCode returns the live task with the given code in a tenant
func (q *Queries) GetTaskByCode(ctx context.Context, tenantID uuid.UUID, code string) (*task.SyncTask, error) {
	return scanTask(q.db.QueryRow(ctx, getTaskByCode, tenantID, code))
}

const getTaskByConnectorName = `SELECT ` + taskColumns + ` FROM sync_tasks
WHERE connector_name = $1 AND deleted_at IS NULL
ORDER BY created_at DESC LIMIT 1`

// GetTaskByConnectorName returns the live task referencing a connector
func (q *Queries) GetTaskByConnectorName(ctx context.Context, name string) (*task.SyncTask, error) {
	return scanTask(q.db.QueryRow(ctx, getTaskByConnectorName, name))
}

const taskCodeExists = `SELECT EXISTS (
	SELECT 1 FROM sync_tasks WHERE tenant_id = $1 AND task_code = $2 AND deleted_at IS NULL
)`

// TaskCodeExists reports whether a live task uses code in the tenant
func (q *Queries) TaskCodeExists(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, taskCodeExists, tenantID, code).Scan(&exists)
	return exists, err
}

// ListTasksParams filters live tasks. Nil filters match everything.
type ListTasksParams struct {
	TenantID *uuid.UUID
	Status   *string
	Health   *string
	Limit    int32
	Offset   int32
}

const taskFilter = `deleted_at IS NULL
	AND ($1::uuid IS NULL OR tenant_id = $1)
	AND ($2::text IS NULL OR status = $2)
	AND ($3::text IS NULL OR health_status = $3)`

const listTasks = `SELECT ` + taskColumns + ` FROM sync_tasks
WHERE ` + taskFilter + `
ORDER BY created_at, id
LIMIT $4 OFFSET $5`

// ListTasks returns live tasks matching the filter, oldest first
func (q *Queries) ListTasks(ctx context.Context, arg ListTasksParams) ([]*task.SyncTask, error) {
	rows, err := q.db.Query(ctx, listTasks, arg.TenantID, arg.Status, arg.Health, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*task.SyncTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const countTasks = `SELECT COUNT(*) FROM sync_tasks WHERE ` + taskFilter

// CountTasks counts live tasks matching the filter; Limit and Offset are ignored
func (q *Queries) CountTasks(ctx context.Context, arg ListTasksParams) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countTasks, arg.TenantID, arg.Status, arg.Health).Scan(&n)
	return n, err
}

const updateTask = `UPDATE sync_tasks SET
	task_name = $3, description = $4,
	source_db_type = $5, source_connection_config = $6,
	target_db_type = $7, target_connection_config = $8,
	connector_config = $9, sync_mode = $10, alert_config = $11, schedule_config = $12,
	status = $13, health_status = $14, connector_name = $15, last_error = $16,
	error_count = $17, total_records_synced = $18, last_sync_time = $19,
	updated_at = $20, updated_by = $21, deleted_at = $22, version = $23
WHERE id = $1 AND version = $2`

// UpdateTask overwrites the mutable columns of a task whose stored version is expectedVersion.
// It returns the number of rows updated.
func (q *Queries) UpdateTask(ctx context.Context, t *task.SyncTask, expectedVersion int64) (int64, error) {
	tag, err := q.db.Exec(ctx, updateTask,
		t.ID, expectedVersion,
		t.TaskName, text(t.Description),
		string(t.SourceDBType), jsonb(t.SourceConnectionConfig),
		text(string(t.TargetDBType)), jsonb(t.TargetConnectionConfig),
		jsonb(t.ConnectorConfig), string(t.SyncMode), jsonb(t.AlertConfig), jsonb(t.ScheduleConfig),
		string(t.Status), string(t.HealthStatus), t.ConnectorName, t.LastError,
		t.ErrorCount, t.TotalRecordsSynced, t.LastSyncTime,
		t.UpdatedAt, text(t.UpdatedBy), t.DeletedAt, t.Version,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func taskArgs(t *task.SyncTask) []any {
	return []any{
		t.ID, t.TenantID, t.TaskName, t.TaskCode, text(t.Description),
		string(t.SourceDBType), jsonb(t.SourceConnectionConfig),
		text(string(t.TargetDBType)), jsonb(t.TargetConnectionConfig),
		jsonb(t.ConnectorConfig), string(t.SyncMode), jsonb(t.AlertConfig), jsonb(t.ScheduleConfig),
		string(t.Status), string(t.HealthStatus), t.ConnectorName, t.LastError, t.ErrorCount,
		t.TotalRecordsSynced, t.LastSyncTime,
		t.CreatedAt, text(t.CreatedBy), t.UpdatedAt, text(t.UpdatedBy), t.DeletedAt, t.Version,
	}
}

func scanTask(row pgx.Row) (*task.SyncTask, error) {
	var (
		t                                    task.SyncTask
		description, targetType              pgtype.Text
		createdBy, updatedBy                 pgtype.Text
		sourceType, syncMode, status, health string
		sourceCfg, targetCfg, connectorCfg   []byte
		alertCfg, scheduleCfg                []byte
	)
	err := row.Scan(
		&t.ID, &t.TenantID, &t.TaskName, &t.TaskCode, &description,
		&sourceType, &sourceCfg, &targetType, &targetCfg,
		&connectorCfg, &syncMode, &alertCfg, &scheduleCfg,
		&status, &health, &t.ConnectorName, &t.LastError, &t.ErrorCount,
		&t.TotalRecordsSynced, &t.LastSyncTime,
		&t.CreatedAt, &createdBy, &t.UpdatedAt, &updatedBy, &t.DeletedAt, &t.Version,
	)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	t.SourceDBType = task.DatabaseKind(sourceType)
	t.SourceConnectionConfig = raw(sourceCfg)
	t.TargetDBType = task.DatabaseKind(targetType.String)
	t.TargetConnectionConfig = raw(targetCfg)
	t.ConnectorConfig = raw(connectorCfg)
	t.SyncMode = task.SyncMode(syncMode)
	t.AlertConfig = raw(alertCfg)
	t.ScheduleConfig = raw(scheduleCfg)
	t.Status = task.Status(status)
	t.HealthStatus = task.HealthStatus(health)
	t.CreatedBy = createdBy.String
	t.UpdatedBy = updatedBy.String
	return &t, nil
}

const tenantColumns = `id, tenant_name, tenant_code, description,
	contact_name, contact_email, contact_phone,
	max_connectors, max_tasks_per_connector, max_throughput_tps,
	status, config, created_at, created_by, updated_at, updated_by, deleted_at`

const insertTenant = `INSERT INTO tenants (` + tenantColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// InsertTenant inserts a new tenant row
func (q *Queries) InsertTenant(ctx context.Context, t *task.Tenant) error {
	_, err := q.db.Exec(ctx, insertTenant,
		t.ID, t.TenantName, t.TenantCode, text(t.Description),
		text(t.ContactName), text(t.ContactEmail), text(t.ContactPhone),
		t.MaxConnectors, t.MaxTasksPerConnector, t.MaxThroughputTPS,
		string(t.Status), jsonb(t.Config),
		t.CreatedAt, text(t.CreatedBy), t.UpdatedAt, text(t.UpdatedBy), t.DeletedAt,
	)
	return err
}

const getTenant = `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1 AND deleted_at IS NULL`

// GetTenant returns a live tenant by id
func (q *Queries) GetTenant(ctx context.Context, id uuid.UUID) (*task.Tenant, error) {
	return scanTenant(q.db.QueryRow(ctx, getTenant, id))
}

const getTenantByCode = `SELECT ` + tenantColumns + ` FROM tenants WHERE tenant_code = $1 AND deleted_at IS NULL`

// GetTenantByCode returns a live tenant by code
func (q *Queries) GetTenantByCode(ctx context.Context, code string) (*task.Tenant, error) {
	return scanTenant(q.db.QueryRow(ctx, getTenantByCode, code))
}

const listTenants = `SELECT ` + tenantColumns + ` FROM tenants WHERE deleted_at IS NULL
ORDER BY created_at, id LIMIT $1 OFFSET $2`

// ListTenants returns live tenants, oldest first
func (q *Queries) ListTenants(ctx context.Context, limit, offset int32) ([]*task.Tenant, error) {
	rows, err := q.db.Query(ctx, listTenants, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*task.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func scanTenant(row pgx.Row) (*task.Tenant, error) {
	var (
		t                               task.Tenant
		description, name, email, phone pgtype.Text
		createdBy, updatedBy            pgtype.Text
		status                          string
		cfg                             []byte
	)
	err := row.Scan(
		&t.ID, &t.TenantName, &t.TenantCode, &description,
		&name, &email, &phone,
		&t.MaxConnectors, &t.MaxTasksPerConnector, &t.MaxThroughputTPS,
		&status, &cfg, &t.CreatedAt, &createdBy, &t.UpdatedAt, &updatedBy, &t.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	t.ContactName = name.String
	t.ContactEmail = email.String
	t.ContactPhone = phone.String
	t.Status = task.TenantStatus(status)
	t.Config = raw(cfg)
	t.CreatedBy = createdBy.String
	t.UpdatedBy = updatedBy.String
	return &t, nil
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// jsonb maps an empty document to NULL
func jsonb(doc json.RawMessage) any {
	if len(doc) == 0 {
		return nil
	}
	return []byte(doc)
}

func raw(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

// Now returns the current time truncated to the microsecond precision PostgreSQL stores
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
