package v1

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/dbsync-orchestrator/internal/api/common"
	connectormocks "github.com/stacklok/dbsync-orchestrator/internal/connector/mocks"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator/mocks"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestTaskRoutes(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	tenantID := uuid.New()
	running := &task.SyncTask{ID: id, TenantID: tenantID, TaskCode: "orders", Status: task.StatusRunning}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		setupMocks func(*mocks.MockService)
		wantStatus int
		wantKind   task.Kind
	}{
		{
			name:   "get task",
			method: http.MethodGet,
			path:   "/tasks/" + id.String(),
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().GetByID(gomock.Any(), id).Return(running, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "get task with malformed id",
			method:     http.MethodGet,
			path:       "/tasks/orders",
			setupMocks: func(_ *mocks.MockService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "get missing task",
			method: http.MethodGet,
			path:   "/tasks/" + id.String(),
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().GetByID(gomock.Any(), id).Return(nil, task.NewTaskNotFound(id))
			},
			wantStatus: http.StatusNotFound,
			wantKind:   task.KindTaskNotFound,
		},
		{
			name:   "get by code",
			method: http.MethodGet,
			path:   "/tenants/" + tenantID.String() + "/tasks/orders",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().GetByCode(gomock.Any(), tenantID, "orders").Return(running, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "start rejected by state machine",
			method: http.MethodPost,
			path:   "/tasks/" + id.String() + "/start",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Start(gomock.Any(), id).
					Return(nil, task.NewInvalidTransition(task.StatusCompleted, task.StatusRunning))
			},
			wantStatus: http.StatusConflict,
			wantKind:   task.KindInvalidTransition,
		},
		{
			name:   "restart throttled",
			method: http.MethodPost,
			path:   "/tasks/" + id.String() + "/restart",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Restart(gomock.Any(), id).Return(nil, task.NewRestartThrottled(id))
			},
			wantStatus: http.StatusTooManyRequests,
			wantKind:   task.KindRestartThrottled,
		},
		{
			name:   "stop",
			method: http.MethodPost,
			path:   "/tasks/" + id.String() + "/stop",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Stop(gomock.Any(), id).Return(running, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "push connector config",
			method: http.MethodPost,
			path:   "/tasks/" + id.String() + "/connector-config",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().UpdateConnectorConfig(gomock.Any(), id).Return(nil, task.NewNoConnectorReference("orders"))
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   task.KindNoConnectorReference,
		},
		{
			name:   "delete with force",
			method: http.MethodDelete,
			path:   "/tasks/" + id.String() + "?force=true",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Delete(gomock.Any(), id, true).Return(nil)
			},
			wantStatus: http.StatusNoContent,
		},
		{
			name:   "delete running without force",
			method: http.MethodDelete,
			path:   "/tasks/" + id.String(),
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().Delete(gomock.Any(), id, false).Return(task.NewDeleteBlocked(id))
			},
			wantStatus: http.StatusConflict,
			wantKind:   task.KindDeleteBlocked,
		},
		{
			name:       "delete with invalid force",
			method:     http.MethodDelete,
			path:       "/tasks/" + id.String() + "?force=maybe",
			setupMocks: func(_ *mocks.MockService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "patch",
			method: http.MethodPatch,
			path:   "/tasks/" + id.String(),
			body:   `{"taskName":"Orders v2"}`,
			setupMocks: func(m *mocks.MockService) {
				name := "Orders v2"
				m.EXPECT().Update(gomock.Any(), id, task.Patch{TaskName: &name}).Return(running, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "patch with malformed body",
			method:     http.MethodPatch,
			path:       "/tasks/" + id.String(),
			body:       `{"taskName":`,
			setupMocks: func(_ *mocks.MockService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "recompute health",
			method: http.MethodPost,
			path:   "/tasks/" + id.String() + "/health",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().RecomputeHealth(gomock.Any(), id).Return(task.HealthDegraded, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "record progress",
			method: http.MethodPost,
			path:   "/tasks/" + id.String() + "/progress",
			body:   `{"recordsSynced":250}`,
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().RecordProgress(gomock.Any(), id, int64(250)).Return(running, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "list by status",
			method: http.MethodGet,
			path:   "/tasks?status=RUNNING&limit=10&offset=20",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().ListByStatus(gomock.Any(), task.StatusRunning, orchestrator.Page{Limit: 10, Offset: 20}).
					Return([]*task.SyncTask{running}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "list by unknown health",
			method: http.MethodGet,
			path:   "/tasks?health=GREEN",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().ListByHealth(gomock.Any(), task.HealthStatus("GREEN"), orchestrator.Page{}).
					Return(nil, task.NewInvalidArgument("unknown health status %q", "GREEN"))
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   task.KindInvalidArgument,
		},
		{
			name:       "list without selector",
			method:     http.MethodGet,
			path:       "/tasks",
			setupMocks: func(_ *mocks.MockService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "count by tenant and status",
			method: http.MethodGet,
			path:   "/tasks/count?tenantId=" + tenantID.String() + "&status=PAUSED",
			setupMocks: func(m *mocks.MockService) {
				m.EXPECT().CountByTenantAndStatus(gomock.Any(), tenantID, task.StatusPaused).Return(int64(4), nil)
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			svc := mocks.NewMockService(ctrl)
			tt.setupMocks(svc)

			rr := do(t, Router(svc), tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, decode[common.ErrorResponse](t, rr).Kind)
			}
		})
	}
}

// TestTaskLifecycleOverHTTP drives a real orchestrator through the API
func TestTaskLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	lifecycle := connectormocks.NewMockLifecycle(ctrl)
	svc, err := orchestrator.New(store.NewMemoryStore(), lifecycle)
	require.NoError(t, err)
	h := Router(svc)

	rr := do(t, h, http.MethodPost, "/tenants", `{"tenantName":"Acme","tenantCode":"acme"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tenant := decode[task.Tenant](t, rr)
	assert.Equal(t, task.DefaultMaxConnectors, tenant.MaxConnectors)

	rr = do(t, h, http.MethodGet, "/tenants/code/acme", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, tenant.ID, decode[task.Tenant](t, rr).ID)

	body := `{"tenantId":"` + tenant.ID.String() + `","taskName":"Orders","taskCode":"orders",` +
		`"sourceDbType":"MYSQL","sourceConnectionConfig":{"host":"db","port":3306}}`
	rr = do(t, h, http.MethodPost, "/tasks", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[task.SyncTask](t, rr)
	assert.Equal(t, task.StatusCreated, created.Status)
	assert.Equal(t, task.HealthUnknown, created.HealthStatus)

	rr = do(t, h, http.MethodPost, "/tasks", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, task.KindDuplicateTaskCode, decode[common.ErrorResponse](t, rr).Kind)

	lifecycle.EXPECT().Provision(gomock.Any(), gomock.Any()).Return("orders-connector", nil)
	rr = do(t, h, http.MethodPost, "/tasks/"+created.ID.String()+"/start", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	started := decode[task.SyncTask](t, rr)
	assert.Equal(t, task.StatusRunning, started.Status)
	assert.Equal(t, "orders-connector", started.ConnectorRef())

	rr = do(t, h, http.MethodPatch, "/tasks/"+created.ID.String(), `{"description":"nightly"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, task.KindUpdateBlocked, decode[common.ErrorResponse](t, rr).Kind)

	rr = do(t, h, http.MethodDelete, "/tasks/"+created.ID.String(), "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodGet, "/tasks/count?tenantId="+tenant.ID.String()+"&status=RUNNING", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1), decode[CountResponse](t, rr).Count)

	lifecycle.EXPECT().Pause(gomock.Any(), "orders-connector").Return(nil)
	rr = do(t, h, http.MethodPost, "/tasks/"+created.ID.String()+"/pause", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	lifecycle.EXPECT().Delete(gomock.Any(), "orders-connector").Return(nil)
	rr = do(t, h, http.MethodDelete, "/tasks/"+created.ID.String(), "")
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/tasks/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/tasks?tenantId="+tenant.ID.String(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, decode[TaskListResponse](t, rr).Count)
}
