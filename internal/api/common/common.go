package common

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error           string      `json:"error"`
	Kind            task.Kind   `json:"kind,omitempty"`
	CurrentStatus   task.Status `json:"currentStatus,omitempty"`
	RequestedStatus task.Status `json:"requestedStatus,omitempty"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: message}, statusCode)
}

// WriteServiceError maps an orchestrator error to its HTTP status and writes it
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var te *task.Error
	if !errors.As(err, &te) {
		logger.FromContext(r.Context()).Errorw("Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		WriteErrorResponse(w, "internal server error", http.StatusInternalServerError)
		return
	}

	status := StatusFor(te.Kind)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Warnw("Request failed",
			"method", r.Method, "path", r.URL.Path, "kind", te.Kind, "error", err)
	}
	WriteJSONResponse(w, ErrorResponse{
		Error:           te.Error(),
		Kind:            te.Kind,
		CurrentStatus:   te.Current,
		RequestedStatus: te.Requested,
	}, status)
}

// StatusFor returns the HTTP status code for an error kind
func StatusFor(kind task.Kind) int {
	switch kind {
	case task.KindTaskNotFound, task.KindTenantNotFound:
		return http.StatusNotFound
	case task.KindDuplicateTaskCode, task.KindDuplicateTenantCode, task.KindInvalidTransition,
		task.KindDeleteBlocked, task.KindUpdateBlocked, task.KindConflict:
		return http.StatusConflict
	case task.KindInvalidArgument, task.KindUnsupportedDatabaseKind, task.KindNoConnectorReference:
		return http.StatusBadRequest
	case task.KindRestartThrottled:
		return http.StatusTooManyRequests
	case task.KindSourceUnreachable, task.KindOperationFailed:
		return http.StatusBadGateway
	case task.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
