// Package task contains the sync task and tenant domain model: lifecycle and health
// enums, the status transition table and the typed error kinds returned by the orchestrator.
package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a sync task.
type Status string

const (
	// StatusCreated is the initial status of a new task
	StatusCreated Status = "CREATED"
	// StatusRunning means the connector was provisioned or resumed
	StatusRunning Status = "RUNNING"
	// StatusPaused means the connector is paused and may be resumed
	StatusPaused Status = "PAUSED"
	// StatusStopped means the task was stopped by an operator
	StatusStopped Status = "STOPPED"
	// StatusFailed means the last start or restart attempt failed
	StatusFailed Status = "FAILED"
	// StatusCompleted means a full-only sync finished
	StatusCompleted Status = "COMPLETED"
)

// HealthStatus is the derived, read-only health summary of a task.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthDegraded  HealthStatus = "DEGRADED"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
	HealthPaused    HealthStatus = "PAUSED"
	HealthUnknown   HealthStatus = "UNKNOWN"
)

// DatabaseKind identifies the source or target database engine.
type DatabaseKind string

const (
	DatabaseMySQL      DatabaseKind = "MYSQL"
	DatabasePostgreSQL DatabaseKind = "POSTGRESQL"
	DatabaseOracle     DatabaseKind = "ORACLE"
	DatabaseSQLServer  DatabaseKind = "SQLSERVER"
)

// DatabaseKinds lists every supported database kind.
var DatabaseKinds = []DatabaseKind{DatabaseMySQL, DatabasePostgreSQL, DatabaseOracle, DatabaseSQLServer}

// ParseDatabaseKind parses a database kind case-insensitively.
func ParseDatabaseKind(s string) (DatabaseKind, error) {
	for _, k := range DatabaseKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown database kind %q", s)
}

// SyncMode describes which phases of replication a task performs.
type SyncMode string

const (
	SyncModeFull            SyncMode = "FULL"
	SyncModeIncremental     SyncMode = "INCREMENTAL"
	SyncModeFullIncremental SyncMode = "FULL_INCREMENTAL"
)

// Valid reports whether m is a known sync mode.
func (m SyncMode) Valid() bool {
	switch m {
	case SyncModeFull, SyncModeIncremental, SyncModeFullIncremental:
		return true
	}
	return false
}

// ParseSyncMode parses a sync mode case-insensitively.
func ParseSyncMode(s string) (SyncMode, error) {
	for _, m := range []SyncMode{SyncModeFull, SyncModeIncremental, SyncModeFullIncremental} {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown sync mode %q", s)
}

// SyncTask is a single replication task owned by a tenant.
type SyncTask struct {
	ID          uuid.UUID `json:"taskId"`
	TenantID    uuid.UUID `json:"tenantId"`
	TaskName    string    `json:"taskName"`
	TaskCode    string    `json:"taskCode"`
	Description string    `json:"description,omitempty"`

	SourceDBType           DatabaseKind    `json:"sourceDbType"`
	SourceConnectionConfig json.RawMessage `json:"sourceConnectionConfig,omitempty"`
	TargetDBType           DatabaseKind    `json:"targetDbType,omitempty"`
	TargetConnectionConfig json.RawMessage `json:"targetConnectionConfig,omitempty"`
	ConnectorConfig        json.RawMessage `json:"connectorConfig,omitempty"`
	SyncMode               SyncMode        `json:"syncMode"`
	AlertConfig            json.RawMessage `json:"alertConfig,omitempty"`
	ScheduleConfig         json.RawMessage `json:"scheduleConfig,omitempty"`

	Status             Status       `json:"status"`
	HealthStatus       HealthStatus `json:"healthStatus"`
	ConnectorName      *string      `json:"connectorName,omitempty"`
	LastError          *string      `json:"lastError,omitempty"`
	ErrorCount         int64        `json:"errorCount"`
	TotalRecordsSynced int64        `json:"totalRecordsSynced"`
	LastSyncTime       *time.Time   `json:"lastSyncTime,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Version is incremented on every successful write and guards concurrent updates.
	Version int64 `json:"version"`
}

// Clone returns a deep copy of the task.
func (t *SyncTask) Clone() *SyncTask {
	if t == nil {
		return nil
	}
	c := *t
	c.SourceConnectionConfig = cloneRaw(t.SourceConnectionConfig)
	c.TargetConnectionConfig = cloneRaw(t.TargetConnectionConfig)
	c.ConnectorConfig = cloneRaw(t.ConnectorConfig)
	c.AlertConfig = cloneRaw(t.AlertConfig)
	c.ScheduleConfig = cloneRaw(t.ScheduleConfig)
	c.ConnectorName = clonePtr(t.ConnectorName)
	c.LastError = clonePtr(t.LastError)
	c.LastSyncTime = clonePtr(t.LastSyncTime)
	c.DeletedAt = clonePtr(t.DeletedAt)
	return &c
}

// IsDeleted reports whether the task carries a soft-delete timestamp.
func (t *SyncTask) IsDeleted() bool {
	return t.DeletedAt != nil
}

// HasConnector reports whether an external connector reference is recorded.
func (t *SyncTask) HasConnector() bool {
	return t.ConnectorName != nil && *t.ConnectorName != ""
}

// ConnectorRef returns the connector reference or an empty string.
func (t *SyncTask) ConnectorRef() string {
	if t.ConnectorName == nil {
		return ""
	}
	return *t.ConnectorName
}

// MarkRunning records a successful start, resume or restart.
func (t *SyncTask) MarkRunning() {
	t.Status = StatusRunning
	t.HealthStatus = HealthHealthy
	t.LastError = nil
}

// MarkFailed folds an external failure into the durable error fields.
func (t *SyncTask) MarkFailed(detail string) {
	t.Status = StatusFailed
	t.HealthStatus = HealthUnhealthy
	t.LastError = &detail
	t.ErrorCount++
}

// Patch holds the mutable subset of task fields. Nil fields are left unchanged.
type Patch struct {
	TaskName       *string         `json:"taskName,omitempty"`
	Description    *string         `json:"description,omitempty"`
	AlertConfig    json.RawMessage `json:"alertConfig,omitempty"`
	ScheduleConfig json.RawMessage `json:"scheduleConfig,omitempty"`
	UpdatedBy      string          `json:"updatedBy,omitempty"`
}

// Apply copies the present patch fields onto t and reports whether anything changed.
func (p Patch) Apply(t *SyncTask) bool {
	changed := false
	if p.TaskName != nil {
		t.TaskName = *p.TaskName
		changed = true
	}
	if p.Description != nil {
		t.Description = *p.Description
		changed = true
	}
	if p.AlertConfig != nil {
		t.AlertConfig = cloneRaw(p.AlertConfig)
		changed = true
	}
	if p.ScheduleConfig != nil {
		t.ScheduleConfig = cloneRaw(p.ScheduleConfig)
		changed = true
	}
	if changed && p.UpdatedBy != "" {
		t.UpdatedBy = p.UpdatedBy
	}
	return changed
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
