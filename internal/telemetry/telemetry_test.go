package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	for _, cfg := range []*Config{nil, {Enabled: false}} {
		tel, err := New(context.Background(), WithTelemetryConfig(cfg))
		require.NoError(t, err)
		require.NotNil(t, tel)

		assert.IsType(t, noop.MeterProvider{}, tel.MeterProvider())
		assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
		assert.Nil(t, tel.PrometheusHandler())
		assert.NoError(t, tel.Shutdown(context.Background()))
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true, Sampling: -1},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry configuration")
}

//nolint:paralleltest // sets the global meter provider
func TestNew_PrometheusExporter(t *testing.T) {
	tel, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus},
	}))
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	metrics, err := NewTaskMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordOperation(context.Background(), "stop", "success", 50*time.Millisecond)

	handler := tel.PrometheusHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dbsync_task_operations_total")
}

func TestMiddlewares_PassThroughWhenDisabled(t *testing.T) {
	t.Parallel()

	mw, err := MetricsMiddleware(nil)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(mw, TracingMiddleware(nil))
	r.Get("/api/v1/tasks/{taskID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/abc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRoutePattern_Unknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, unknownRoute, routePattern(httptest.NewRequest(http.MethodGet, "/", nil)))
}
