package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/dbsync-orchestrator/internal/api/common"
	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator"
	"github.com/stacklok/dbsync-orchestrator/internal/versions"
)

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc orchestrator.Service) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

func readinessHandler(svc orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CheckReadiness(r.Context()); err != nil {
			logger.FromContext(r.Context()).Warnw("Readiness check failed", "error", err)
			common.WriteErrorResponse(w, "orchestrator not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()
	common.WriteJSONResponse(w, VersionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	}, http.StatusOK)
}
