package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// CreateTenant registers a tenant with default quotas for the ones left at zero
func (s *service) CreateTenant(ctx context.Context, in *task.Tenant) (*task.Tenant, error) {
	if in == nil {
		return nil, task.NewInvalidArgument("tenant is required")
	}
	if strings.TrimSpace(in.TenantName) == "" {
		return nil, task.NewInvalidArgument("tenantName is required")
	}
	if !codePattern.MatchString(in.TenantCode) {
		return nil, task.NewInvalidArgument("tenantCode %q must match %s", in.TenantCode, codePattern)
	}
	if in.MaxConnectors < 0 || in.MaxTasksPerConnector < 0 || in.MaxThroughputTPS < 0 {
		return nil, task.NewInvalidArgument("tenant quotas must not be negative")
	}
	switch in.Status {
	case "", task.TenantActive, task.TenantSuspended, task.TenantInactive:
	default:
		return nil, task.NewInvalidArgument("unknown tenant status %q", in.Status)
	}
	if len(in.Config) > 0 && !json.Valid(in.Config) {
		return nil, task.NewInvalidArgument("config is not valid JSON")
	}

	now := s.now()
	t := in.Clone()
	t.ID = uuid.New()
	t.ApplyDefaults()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.UpdatedBy = t.CreatedBy
	t.DeletedAt = nil

	if err := s.store.CreateTenant(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, task.NewDuplicateTenantCode(t.TenantCode)
		}
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	logger.FromContext(ctx).Infow("Tenant created", "tenant_id", t.ID, "tenant_code", t.TenantCode)
	return t.Clone(), nil
}

// GetTenant returns a live tenant
func (s *service) GetTenant(ctx context.Context, id uuid.UUID) (*task.Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, task.NewTenantNotFound(id.String())
	}
	return t, err
}

// GetTenantByCode returns a live tenant by its code
func (s *service) GetTenantByCode(ctx context.Context, code string) (*task.Tenant, error) {
	t, err := s.store.GetTenantByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, task.NewTenantNotFound(code)
	}
	return t, err
}

// ListTenants lists live tenants, oldest first
func (s *service) ListTenants(ctx context.Context, page Page) ([]*task.Tenant, error) {
	return s.store.ListTenants(ctx, page.Limit, page.Offset)
}
