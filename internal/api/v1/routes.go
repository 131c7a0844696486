// Package v1 provides the REST API v1 endpoints for sync tasks and tenants.
package v1

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stacklok/dbsync-orchestrator/internal/api/common"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// Routes handles HTTP requests for the v1 endpoints.
type Routes struct {
	service orchestrator.Service
}

// NewRoutes creates a new Routes instance with the given service.
func NewRoutes(svc orchestrator.Service) *Routes {
	return &Routes{
		service: svc,
	}
}

// Router creates and configures the HTTP router for the v1 endpoints.
func Router(svc orchestrator.Service) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", routes.createTask)
		r.Get("/", routes.listTasks)
		r.Get("/count", routes.countTasks)
		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", routes.getTask)
			r.Patch("/", routes.updateTask)
			r.Delete("/", routes.deleteTask)
			r.Post("/start", routes.lifecycleAction(svc.Start))
			r.Post("/stop", routes.lifecycleAction(svc.Stop))
			r.Post("/pause", routes.lifecycleAction(svc.Pause))
			r.Post("/resume", routes.lifecycleAction(svc.Resume))
			r.Post("/restart", routes.lifecycleAction(svc.Restart))
			r.Post("/connector-config", routes.lifecycleAction(svc.UpdateConnectorConfig))
			r.Post("/health", routes.recomputeHealth)
			r.Post("/progress", routes.recordProgress)
		})
	})

	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", routes.createTenant)
		r.Get("/", routes.listTenants)
		r.Get("/code/{tenantCode}", routes.getTenantByCode)
		r.Get("/{tenantID}", routes.getTenant)
		r.Get("/{tenantID}/tasks/{taskCode}", routes.getTaskByCode)
	})

	return r
}

// lifecycleAction adapts a single-task orchestrator operation to a handler
func (*Routes) lifecycleAction(
	op func(ctx context.Context, id uuid.UUID) (*task.SyncTask, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := common.GetUUIDParam(r, "taskID")
		if err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		t, err := op(r.Context(), id)
		if err != nil {
			common.WriteServiceError(w, r, err)
			return
		}
		common.WriteJSONResponse(w, t, http.StatusOK)
	}
}
