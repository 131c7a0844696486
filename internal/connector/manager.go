// Package connector manages the Kafka Connect connectors backing sync tasks.
package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/dbsync-orchestrator/internal/connect"
	"github.com/stacklok/dbsync-orchestrator/internal/connector/builder"
	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/otel"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// DefaultRetryDelay is the pause before the single retry of a transient failure
const DefaultRetryDelay = 500 * time.Millisecond

// nameSuffix is appended to the task code to form the connector name
const nameSuffix = "-connector"

//go:generate mockgen -destination=mocks/mock_lifecycle.go -package=mocks -source=manager.go Lifecycle

// Lifecycle is the set of connector operations the orchestrator depends on
type Lifecycle interface {
	Provision(ctx context.Context, t *task.SyncTask) (string, error)
	Health(ctx context.Context, name string) (Health, error)
	Pause(ctx context.Context, name string) error
	Resume(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	UpdateConfig(ctx context.Context, t *task.SyncTask) error
	Exists(ctx context.Context, name string) (bool, error)
}

// Option configures a Manager
type Option func(*Manager)

// WithRetryDelay sets the pause before retrying a transient failure
func WithRetryDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.retryDelay = d
		}
	}
}

// WithRemoteValidation validates configurations against the connector plugin before creating connectors
func WithRemoteValidation(enabled bool) Option {
	return func(m *Manager) {
		m.validateRemote = enabled
	}
}

// WithRequiredKinds makes New fail when any of the kinds lacks a builder
func WithRequiredKinds(kinds ...task.DatabaseKind) Option {
	return func(m *Manager) {
		m.required = append(m.required, kinds...)
	}
}

// WithTracer sets the tracer used for connector spans
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// Manager provisions, inspects and controls connectors through Kafka Connect
type Manager struct {
	client         connect.Client
	registry       *builder.Registry
	retryDelay     time.Duration
	validateRemote bool
	required       []task.DatabaseKind
	tracer         trace.Tracer
}

var _ Lifecycle = (*Manager)(nil)

// New creates a connector manager
func New(client connect.Client, registry *builder.Registry, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, errors.New("kafka connect client is required")
	}
	if registry == nil {
		return nil, errors.New("builder registry is required")
	}
	m := &Manager{
		client:     client,
		registry:   registry,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := registry.Require(m.required...); err != nil {
		return nil, err
	}
	return m, nil
}

// ConnectorName derives the stable connector name of a task
func ConnectorName(taskCode string) string {
	return taskCode + nameSuffix
}

func (m *Manager) builderFor(kind task.DatabaseKind) (builder.Builder, error) {
	b, ok := m.registry.Get(kind)
	if !ok {
		return nil, task.NewUnsupportedDatabaseKind(kind)
	}
	return b, nil
}

// Provision probes the source, builds the configuration and creates the connector.
// If a connector with the derived name already exists its configuration is replaced,
// so repeated provisioning of the same task converges on one connector.
func (m *Manager) Provision(ctx context.Context, t *task.SyncTask) (name string, err error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "connector.Provision",
		trace.WithAttributes(
			otel.AttrTaskCode.String(t.TaskCode),
			otel.AttrDatabaseKind.String(string(t.SourceDBType)),
		))
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	b, err := m.builderFor(t.SourceDBType)
	if err != nil {
		return "", err
	}
	if !b.ValidateConnection(ctx, t.SourceConnectionConfig) {
		return "", task.NewSourceUnreachable(t.SourceDBType)
	}

	config, err := b.BuildConfig(t)
	if err != nil {
		return "", fmt.Errorf("failed to build connector config: %w", err)
	}
	name = ConnectorName(t.TaskCode)
	span.SetAttributes(otel.AttrConnectorName.String(name))

	if m.validateRemote {
		result, err := m.client.ValidateConfig(ctx, b.ConnectorClass(), config)
		if err != nil {
			return "", fmt.Errorf("failed to validate connector config: %w", err)
		}
		if !result.Valid() {
			return "", fmt.Errorf("connector config rejected by %s: %s",
				b.ConnectorClass(), strings.Join(result.Problems(), "; "))
		}
	}

	log := logger.FromContext(ctx)
	if _, err := m.client.CreateConnector(ctx, name, config); err != nil {
		var ce *connect.Error
		if !errors.As(err, &ce) || ce.StatusCode != http.StatusConflict {
			return "", err
		}
		exists, existsErr := m.Exists(ctx, name)
		if existsErr != nil || !exists {
			return "", err
		}
		log.Infow("connector already exists, replacing its configuration", "connector", name)
		if _, err := m.client.UpdateConnectorConfig(ctx, name, config); err != nil {
			return "", err
		}
		return name, nil
	}
	log.Infow("connector created", "connector", name, "task_code", t.TaskCode)
	return name, nil
}

// Health derives the connector health. An absent connector is UNKNOWN, not an error.
func (m *Manager) Health(ctx context.Context, name string) (Health, error) {
	status, err := m.client.GetConnectorStatus(ctx, name)
	if connect.IsNotFound(err) {
		return Health{Status: task.HealthUnknown, Message: MessageNotFound}, nil
	}
	if err != nil {
		return Health{}, err
	}
	return healthOf(status), nil
}

// Pause suspends the connector
func (m *Manager) Pause(ctx context.Context, name string) error {
	return m.retryOnce(ctx, "pause", name, m.client.PauseConnector)
}

// Resume resumes the connector
func (m *Manager) Resume(ctx context.Context, name string) error {
	return m.retryOnce(ctx, "resume", name, m.client.ResumeConnector)
}

// Restart restarts the connector and its failed tasks
func (m *Manager) Restart(ctx context.Context, name string) error {
	return m.retryOnce(ctx, "restart", name, m.client.RestartConnector)
}

// Delete removes the connector. A connector that is already gone counts as deleted.
func (m *Manager) Delete(ctx context.Context, name string) error {
	err := m.retryOnce(ctx, "delete", name, m.client.DeleteConnector)
	if connect.IsNotFound(err) {
		return nil
	}
	return err
}

// UpdateConfig rebuilds the configuration of the task's connector and pushes it to Kafka Connect
func (m *Manager) UpdateConfig(ctx context.Context, t *task.SyncTask) error {
	if !t.HasConnector() {
		return task.NewNoConnectorReference(t.TaskCode)
	}
	b, err := m.builderFor(t.SourceDBType)
	if err != nil {
		return err
	}
	config, err := b.BuildConfig(t)
	if err != nil {
		return fmt.Errorf("failed to build connector config: %w", err)
	}
	if _, err := m.client.UpdateConnectorConfig(ctx, t.ConnectorRef(), config); err != nil {
		return err
	}
	logger.FromContext(ctx).Infow("connector config updated", "connector", t.ConnectorRef())
	return nil
}

// Exists reports whether Kafka Connect knows the connector
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	_, err := m.client.GetConnectorInfo(ctx, name)
	if connect.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// retryOnce runs call and repeats it once after a transient failure
func (m *Manager) retryOnce(
	ctx context.Context, op, name string, call func(context.Context, string) error,
) error {
	ctx, span := otel.StartSpan(ctx, m.tracer, "connector."+op,
		trace.WithAttributes(otel.AttrConnectorName.String(name)))
	defer span.End()

	var lastErr error
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		lastErr = call(ctx, name)
		if lastErr != nil && !connect.IsTransient(lastErr) {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.retryDelay)),
		backoff.WithMaxTries(2),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.FromContext(ctx).Warnw("transient kafka connect failure, retrying",
				"operation", op, "connector", name, "retry_in", next, "error", err)
		}),
	)
	span.SetAttributes(attribute.Int("connector.attempts", attempts))
	if err == nil {
		return nil
	}
	// Cancellation while waiting replaces the call error; report the call error instead.
	if lastErr != nil {
		err = lastErr
	}
	otel.RecordError(span, err)
	return err
}
