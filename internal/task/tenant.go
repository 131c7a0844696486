package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the lifecycle status of a tenant.
type TenantStatus string

const (
	TenantActive    TenantStatus = "ACTIVE"
	TenantSuspended TenantStatus = "SUSPENDED"
	TenantInactive  TenantStatus = "INACTIVE"
)

// Default tenant quotas.
const (
	DefaultMaxConnectors        = 10
	DefaultMaxTasksPerConnector = 8
	DefaultMaxThroughputTPS     = 10000
)

// Tenant scopes sync tasks and carries declared quotas. Quotas are not enforced here.
type Tenant struct {
	ID          uuid.UUID `json:"tenantId"`
	TenantName  string    `json:"tenantName"`
	TenantCode  string    `json:"tenantCode"`
	Description string    `json:"description,omitempty"`

	ContactName  string `json:"contactName,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	ContactPhone string `json:"contactPhone,omitempty"`

	MaxConnectors        int `json:"maxConnectors"`
	MaxTasksPerConnector int `json:"maxTasksPerConnector"`
	MaxThroughputTPS     int `json:"maxThroughputTps"`

	Status TenantStatus    `json:"status"`
	Config json.RawMessage `json:"config,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// ApplyDefaults fills zero quotas and status with their defaults.
func (t *Tenant) ApplyDefaults() {
	if t.MaxConnectors == 0 {
		t.MaxConnectors = DefaultMaxConnectors
	}
	if t.MaxTasksPerConnector == 0 {
		t.MaxTasksPerConnector = DefaultMaxTasksPerConnector
	}
	if t.MaxThroughputTPS == 0 {
		t.MaxThroughputTPS = DefaultMaxThroughputTPS
	}
	if t.Status == "" {
		t.Status = TenantActive
	}
}

// Clone returns a deep copy of the tenant.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	c.Config = cloneRaw(t.Config)
	c.DeletedAt = clonePtr(t.DeletedAt)
	return &c
}
