package v1

import (
	"encoding/json"
	"net/http"

	"github.com/stacklok/dbsync-orchestrator/internal/api/common"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// CreateTenantRequest is the body of POST /api/v1/tenants
type CreateTenantRequest struct {
	TenantName           string            `json:"tenantName"`
	TenantCode           string            `json:"tenantCode"`
	Description          string            `json:"description,omitempty"`
	ContactName          string            `json:"contactName,omitempty"`
	ContactEmail         string            `json:"contactEmail,omitempty"`
	ContactPhone         string            `json:"contactPhone,omitempty"`
	MaxConnectors        int               `json:"maxConnectors,omitempty"`
	MaxTasksPerConnector int               `json:"maxTasksPerConnector,omitempty"`
	MaxThroughputTPS     int               `json:"maxThroughputTps,omitempty"`
	Status               task.TenantStatus `json:"status,omitempty"`
	Config               json.RawMessage   `json:"config,omitempty"`
	CreatedBy            string            `json:"createdBy,omitempty"`
}

// TenantListResponse is a page of tenants
type TenantListResponse struct {
	Tenants []*task.Tenant `json:"tenants"`
	Count   int            `json:"count"`
}

// createTenant handles POST /api/v1/tenants
func (routes *Routes) createTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := routes.service.CreateTenant(r.Context(), &task.Tenant{
		TenantName:           req.TenantName,
		TenantCode:           req.TenantCode,
		Description:          req.Description,
		ContactName:          req.ContactName,
		ContactEmail:         req.ContactEmail,
		ContactPhone:         req.ContactPhone,
		MaxConnectors:        req.MaxConnectors,
		MaxTasksPerConnector: req.MaxTasksPerConnector,
		MaxThroughputTPS:     req.MaxThroughputTPS,
		Status:               req.Status,
		Config:               req.Config,
		CreatedBy:            req.CreatedBy,
	})
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, created, http.StatusCreated)
}

// getTenant handles GET /api/v1/tenants/{tenantID}
func (routes *Routes) getTenant(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetUUIDParam(r, "tenantID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := routes.service.GetTenant(r.Context(), id)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, t, http.StatusOK)
}

// getTenantByCode handles GET /api/v1/tenants/code/{tenantCode}
func (routes *Routes) getTenantByCode(w http.ResponseWriter, r *http.Request) {
	code, err := common.GetAndValidateURLParam(r, "tenantCode")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := routes.service.GetTenantByCode(r.Context(), code)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, t, http.StatusOK)
}

// listTenants handles GET /api/v1/tenants
func (routes *Routes) listTenants(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := common.GetPageParams(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	items, err := routes.service.ListTenants(r.Context(), orchestrator.Page{Limit: limit, Offset: offset})
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, TenantListResponse{Tenants: items, Count: len(items)}, http.StatusOK)
}
