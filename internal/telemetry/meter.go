package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
)

// DefaultMetricsInterval is how often task and reconcile metrics are pushed to an OTLP collector
const DefaultMetricsInterval = 60 * time.Second

// newMeterProvider builds the provider behind the task, reconcile and HTTP instruments.
// With the Prometheus exporter it also returns the registry served on /metrics.
func newMeterProvider(
	ctx context.Context, cfg *Config, res *resource.Resource,
) (metric.MeterProvider, *prometheus.Registry, error) {
	if cfg == nil || cfg.Metrics == nil || !cfg.Metrics.Enabled {
		return noop.NewMeterProvider(), nil, nil
	}

	var (
		reader   sdkmetric.Reader
		registry *prometheus.Registry
	)
	switch cfg.Metrics.GetExporter() {
	case MetricsExporterPrometheus:
		registry = prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Prometheus metrics exporter: %w", err)
		}
		reader = exporter
	default:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.GetEndpoint())}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(DefaultMetricsInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	logger.Infow("Metrics initialized", "exporter", cfg.Metrics.GetExporter(), "endpoint", cfg.GetEndpoint())
	return mp, registry, nil
}
