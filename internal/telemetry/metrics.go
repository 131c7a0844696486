package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// TaskMetricsMeterName is the name used for the task lifecycle meter
	TaskMetricsMeterName = "github.com/stacklok/dbsync-orchestrator/tasks"

	// ReconcileMetricsMeterName is the name used for the health reconciliation meter
	ReconcileMetricsMeterName = "github.com/stacklok/dbsync-orchestrator/reconcile"
)

// TaskMetrics holds the instruments for task lifecycle operations
type TaskMetrics struct {
	operationsTotal   metric.Int64Counter
	operationDuration metric.Float64Histogram
}

// NewTaskMetrics creates task metrics. A nil provider yields nil (no-op) metrics.
func NewTaskMetrics(provider metric.MeterProvider) (*TaskMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(TaskMetricsMeterName)

	operationsTotal, err := meter.Int64Counter(
		"dbsync_task_operations_total",
		metric.WithDescription("Number of task lifecycle operations by operation and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram(
		"dbsync_task_operation_duration_seconds",
		metric.WithDescription("Duration of task lifecycle operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return &TaskMetrics{
		operationsTotal:   operationsTotal,
		operationDuration: operationDuration,
	}, nil
}

// RecordOperation records one lifecycle operation. outcome is "success" or an error kind.
func (m *TaskMetrics) RecordOperation(ctx context.Context, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.operationsTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
}

// ReconcileMetrics holds the instruments for periodic health reconciliation
type ReconcileMetrics struct {
	passDuration metric.Float64Histogram
	tasksChecked metric.Int64Counter
	tasksByState metric.Int64Gauge
}

// NewReconcileMetrics creates reconcile metrics. A nil provider yields nil (no-op) metrics.
func NewReconcileMetrics(provider metric.MeterProvider) (*ReconcileMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ReconcileMetricsMeterName)

	passDuration, err := meter.Float64Histogram(
		"dbsync_reconcile_pass_duration_seconds",
		metric.WithDescription("Duration of a health reconciliation pass in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	tasksChecked, err := meter.Int64Counter(
		"dbsync_reconcile_tasks_checked_total",
		metric.WithDescription("Number of tasks whose health was recomputed"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	tasksByState, err := meter.Int64Gauge(
		"dbsync_tasks_by_health",
		metric.WithDescription("Number of reconciled tasks per health status after the last pass"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	return &ReconcileMetrics{
		passDuration: passDuration,
		tasksChecked: tasksChecked,
		tasksByState: tasksByState,
	}, nil
}

// RecordPass records a finished reconciliation pass and the resulting health distribution
func (m *ReconcileMetrics) RecordPass(ctx context.Context, duration time.Duration, byHealth map[string]int64) {
	if m == nil {
		return
	}

	var checked int64
	for health, count := range byHealth {
		checked += count
		m.tasksByState.Record(ctx, count, metric.WithAttributes(attribute.String("health", health)))
	}
	m.tasksChecked.Add(ctx, checked)
	m.passDuration.Record(ctx, duration.Seconds())
}
