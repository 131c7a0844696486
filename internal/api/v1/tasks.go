package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/stacklok/dbsync-orchestrator/internal/api/common"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// maxBodySize bounds request bodies (1MB)
const maxBodySize = 1 << 20

// CreateTaskRequest is the body of POST /api/v1/tasks
type CreateTaskRequest struct {
	TenantID               uuid.UUID         `json:"tenantId"`
	TaskName               string            `json:"taskName"`
	TaskCode               string            `json:"taskCode"`
	Description            string            `json:"description,omitempty"`
	SourceDBType           task.DatabaseKind `json:"sourceDbType"`
	SourceConnectionConfig json.RawMessage   `json:"sourceConnectionConfig,omitempty"`
	TargetDBType           task.DatabaseKind `json:"targetDbType,omitempty"`
	TargetConnectionConfig json.RawMessage   `json:"targetConnectionConfig,omitempty"`
	ConnectorConfig        json.RawMessage   `json:"connectorConfig,omitempty"`
	SyncMode               task.SyncMode     `json:"syncMode,omitempty"`
	AlertConfig            json.RawMessage   `json:"alertConfig,omitempty"`
	ScheduleConfig         json.RawMessage   `json:"scheduleConfig,omitempty"`
	CreatedBy              string            `json:"createdBy,omitempty"`
}

func (req CreateTaskRequest) toTask() *task.SyncTask {
	return &task.SyncTask{
		TenantID:               req.TenantID,
		TaskName:               req.TaskName,
		TaskCode:               req.TaskCode,
		Description:            req.Description,
		SourceDBType:           req.SourceDBType,
		SourceConnectionConfig: req.SourceConnectionConfig,
		TargetDBType:           req.TargetDBType,
		TargetConnectionConfig: req.TargetConnectionConfig,
		ConnectorConfig:        req.ConnectorConfig,
		SyncMode:               req.SyncMode,
		AlertConfig:            req.AlertConfig,
		ScheduleConfig:         req.ScheduleConfig,
		CreatedBy:              req.CreatedBy,
	}
}

// TaskListResponse is a page of tasks
type TaskListResponse struct {
	Tasks  []*task.SyncTask `json:"tasks"`
	Count  int              `json:"count"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// CountResponse carries a task count
type CountResponse struct {
	Count int64 `json:"count"`
}

// HealthResponse carries a recomputed health status
type HealthResponse struct {
	TaskID       uuid.UUID         `json:"taskId"`
	HealthStatus task.HealthStatus `json:"healthStatus"`
}

// ProgressRequest is the body of POST /api/v1/tasks/{taskID}/progress
type ProgressRequest struct {
	RecordsSynced int64 `json:"recordsSynced"`
}

// decodeBody reads a JSON request body into v, writing a 400 on failure
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := gojson.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// createTask handles POST /api/v1/tasks
func (routes *Routes) createTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	created, err := routes.service.Create(r.Context(), req.toTask())
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, created, http.StatusCreated)
}

// getTask handles GET /api/v1/tasks/{taskID}
func (routes *Routes) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetUUIDParam(r, "taskID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := routes.service.GetByID(r.Context(), id)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, t, http.StatusOK)
}

// getTaskByCode handles GET /api/v1/tenants/{tenantID}/tasks/{taskCode}
func (routes *Routes) getTaskByCode(w http.ResponseWriter, r *http.Request) {
	tenantID, err := common.GetUUIDParam(r, "tenantID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	code, err := common.GetAndValidateURLParam(r, "taskCode")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := routes.service.GetByCode(r.Context(), tenantID, code)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, t, http.StatusOK)
}

// listTasks handles GET /api/v1/tasks. Exactly one of tenantId, status or health selects the listing.
func (routes *Routes) listTasks(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := common.GetPageParams(r)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	page := orchestrator.Page{Limit: limit, Offset: offset}

	query := r.URL.Query()
	var items []*task.SyncTask
	switch {
	case query.Get("tenantId") != "":
		tenantID, perr := uuid.Parse(query.Get("tenantId"))
		if perr != nil {
			common.WriteErrorResponse(w, "tenantId must be a UUID", http.StatusBadRequest)
			return
		}
		items, err = routes.service.ListByTenant(r.Context(), tenantID, page)
	case query.Get("status") != "":
		items, err = routes.service.ListByStatus(r.Context(), task.Status(query.Get("status")), page)
	case query.Get("health") != "":
		items, err = routes.service.ListByHealth(r.Context(), task.HealthStatus(query.Get("health")), page)
	default:
		common.WriteErrorResponse(w, "one of tenantId, status or health is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}

	common.WriteJSONResponse(w, TaskListResponse{
		Tasks:  items,
		Count:  len(items),
		Limit:  limit,
		Offset: offset,
	}, http.StatusOK)
}

// countTasks handles GET /api/v1/tasks/count?tenantId=...&status=...
func (routes *Routes) countTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	tenantID, err := uuid.Parse(query.Get("tenantId"))
	if err != nil {
		common.WriteErrorResponse(w, "tenantId must be a UUID", http.StatusBadRequest)
		return
	}

	var n int64
	if status := query.Get("status"); status != "" {
		n, err = routes.service.CountByTenantAndStatus(r.Context(), tenantID, task.Status(status))
	} else {
		n, err = routes.service.CountByTenant(r.Context(), tenantID)
	}
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, CountResponse{Count: n}, http.StatusOK)
}

// updateTask handles PATCH /api/v1/tasks/{taskID}
func (routes *Routes) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetUUIDParam(r, "taskID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	var patch task.Patch
	if !decodeBody(w, r, &patch) {
		return
	}
	t, err := routes.service.Update(r.Context(), id, patch)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, t, http.StatusOK)
}

// deleteTask handles DELETE /api/v1/tasks/{taskID}?force=true
func (routes *Routes) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetUUIDParam(r, "taskID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		if force, err = strconv.ParseBool(raw); err != nil {
			common.WriteErrorResponse(w, "Invalid force parameter: must be a boolean", http.StatusBadRequest)
			return
		}
	}
	if err := routes.service.Delete(r.Context(), id, force); err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recomputeHealth handles POST /api/v1/tasks/{taskID}/health
func (routes *Routes) recomputeHealth(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetUUIDParam(r, "taskID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	h, err := routes.service.RecomputeHealth(r.Context(), id)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, HealthResponse{TaskID: id, HealthStatus: h}, http.StatusOK)
}

// recordProgress handles POST /api/v1/tasks/{taskID}/progress
func (routes *Routes) recordProgress(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetUUIDParam(r, "taskID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req ProgressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := routes.service.RecordProgress(r.Context(), id, req.RecordsSynced)
	if err != nil {
		common.WriteServiceError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, t, http.StatusOK)
}
