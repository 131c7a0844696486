package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	t.Parallel()

	for _, cfg := range []*Config{nil, {Enabled: true}, {Enabled: true, Tracing: &TracingConfig{}}} {
		tp, err := newTracerProvider(context.Background(), cfg, resource.Empty())
		require.NoError(t, err)
		assert.IsType(t, tracenoop.TracerProvider{}, tp)
	}
}

//nolint:paralleltest // sets the global tracer provider
func TestNewTracerProvider_OTLP(t *testing.T) {
	cfg := &Config{Enabled: true, Insecure: true, Tracing: &TracingConfig{Enabled: true, Sampling: 0.5}}

	tp, err := newTracerProvider(context.Background(), cfg, resource.Empty())
	require.NoError(t, err)
	sdk, ok := tp.(*sdktrace.TracerProvider)
	require.True(t, ok)
	_ = sdk.Shutdown(context.Background())
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	t.Parallel()

	mp, registry, err := newMeterProvider(context.Background(), &Config{Enabled: true}, resource.Empty())
	require.NoError(t, err)
	assert.IsType(t, noop.MeterProvider{}, mp)
	assert.Nil(t, registry)
}

//nolint:paralleltest // sets the global meter provider
func TestNewMeterProvider_Exporters(t *testing.T) {
	tests := []struct {
		exporter     string
		wantRegistry bool
	}{
		{exporter: MetricsExporterOTLP},
		{exporter: MetricsExporterPrometheus, wantRegistry: true},
	}
	for _, tt := range tests {
		t.Run(tt.exporter, func(t *testing.T) {
			cfg := &Config{Enabled: true, Insecure: true, Metrics: &MetricsConfig{Enabled: true, Exporter: tt.exporter}}

			mp, registry, err := newMeterProvider(context.Background(), cfg, resource.Empty())
			require.NoError(t, err)
			assert.Equal(t, tt.wantRegistry, registry != nil)

			sdk, ok := mp.(*sdkmetric.MeterProvider)
			require.True(t, ok)
			// the OTLP collector is absent, so the final export may fail
			_ = sdk.Shutdown(context.Background())
		})
	}
}
