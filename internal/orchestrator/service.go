// Package orchestrator drives the sync task lifecycle: it validates transitions against the task state
// machine, acts on the backing connector and persists the outcome under a version guard.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/dbsync-orchestrator/internal/connector"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
	"github.com/stacklok/dbsync-orchestrator/internal/tasklock"
	"github.com/stacklok/dbsync-orchestrator/internal/telemetry"
)

const (
	// DefaultPersistGracePeriod bounds the deferred write made after a caller deadline expired
	DefaultPersistGracePeriod = 10 * time.Second
	// DefaultRestartInterval is the refill interval of the per-task restart budget
	DefaultRestartInterval = time.Minute
	// DefaultRestartBurst is the number of restarts a task may issue back to back
	DefaultRestartBurst = 3
)

// Operation names used in errors, spans and metrics
const (
	OpCreate                = "create"
	OpStart                 = "start"
	OpStop                  = "stop"
	OpPause                 = "pause"
	OpResume                = "resume"
	OpRestart               = "restart"
	OpDelete                = "delete"
	OpUpdate                = "update"
	OpUpdateConnectorConfig = "update_connector_config"
	OpRecomputeHealth       = "recompute_health"
	OpRecordProgress        = "record_progress"
)

// Page selects a window of a listing. Zero values use the store defaults.
type Page struct {
	Limit  int
	Offset int
}

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go Service

// Service is the sync task orchestrator
type Service interface {
	// Create registers a new task in CREATED status
	Create(ctx context.Context, t *task.SyncTask) (*task.SyncTask, error)
	// Start provisions or resumes the connector and moves the task to RUNNING
	Start(ctx context.Context, id uuid.UUID) (*task.SyncTask, error)
	// Stop pauses the connector and moves the task to STOPPED
	Stop(ctx context.Context, id uuid.UUID) (*task.SyncTask, error)
	// Pause pauses the connector and moves the task to PAUSED
	Pause(ctx context.Context, id uuid.UUID) (*task.SyncTask, error)
	// Resume resumes a PAUSED task
	Resume(ctx context.Context, id uuid.UUID) (*task.SyncTask, error)
	// Restart restarts or re-provisions the connector regardless of the current status
	Restart(ctx context.Context, id uuid.UUID) (*task.SyncTask, error)
	// Delete removes the connector and soft-deletes the task
	Delete(ctx context.Context, id uuid.UUID, force bool) error
	// Update applies a patch to a task that is not running
	Update(ctx context.Context, id uuid.UUID, patch task.Patch) (*task.SyncTask, error)
	// UpdateConnectorConfig pushes a rebuilt connector configuration for a task that is not running
	UpdateConnectorConfig(ctx context.Context, id uuid.UUID) (*task.SyncTask, error)
	// RecomputeHealth refreshes the task health from its connector. Connector failures are logged, not returned.
	RecomputeHealth(ctx context.Context, id uuid.UUID) (task.HealthStatus, error)
	// RecordProgress adds synced records to the task counters
	RecordProgress(ctx context.Context, id uuid.UUID, records int64) (*task.SyncTask, error)

	GetByID(ctx context.Context, id uuid.UUID) (*task.SyncTask, error)
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*task.SyncTask, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, page Page) ([]*task.SyncTask, error)
	ListByStatus(ctx context.Context, status task.Status, page Page) ([]*task.SyncTask, error)
	ListByHealth(ctx context.Context, health task.HealthStatus, page Page) ([]*task.SyncTask, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountByTenantAndStatus(ctx context.Context, tenantID uuid.UUID, status task.Status) (int64, error)

	CreateTenant(ctx context.Context, t *task.Tenant) (*task.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*task.Tenant, error)
	GetTenantByCode(ctx context.Context, code string) (*task.Tenant, error)
	ListTenants(ctx context.Context, page Page) ([]*task.Tenant, error)

	// CheckReadiness reports whether the backing store is reachable
	CheckReadiness(ctx context.Context) error
	// Shutdown waits for deferred writes to finish or ctx to expire
	Shutdown(ctx context.Context) error
}

// options holds configuration options for the orchestrator
type options struct {
	locker       tasklock.Locker
	tracer       trace.Tracer
	metrics      *telemetry.TaskMetrics
	persistGrace time.Duration
	restartEvery time.Duration
	restartBurst int
	clock        func() time.Time
}

// Option is a functional option for configuring the orchestrator
type Option func(*options) error

// WithLocker sets the per-task locker. Defaults to an in-process locker.
func WithLocker(l tasklock.Locker) Option {
	return func(o *options) error {
		if l == nil {
			return errors.New("locker cannot be nil")
		}
		o.locker = l
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer. If not set, tracing is disabled.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithMetrics sets the task operation metrics
func WithMetrics(m *telemetry.TaskMetrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithPersistGracePeriod bounds the deferred write after a caller deadline expired
func WithPersistGracePeriod(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("persist grace period must be positive")
		}
		o.persistGrace = d
		return nil
	}
}

// WithRestartLimit allows burst restarts per task, refilled one every interval.
// A negative burst disables the guard.
func WithRestartLimit(interval time.Duration, burst int) Option {
	return func(o *options) error {
		if burst >= 0 && interval <= 0 {
			return errors.New("restart interval must be positive")
		}
		o.restartEvery = interval
		o.restartBurst = burst
		return nil
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(o *options) error {
		o.clock = clock
		return nil
	}
}

type service struct {
	store     store.Store
	lifecycle connector.Lifecycle
	locker    tasklock.Locker
	tracer    trace.Tracer
	metrics   *telemetry.TaskMetrics
	restarts  *restartGuard
	grace     time.Duration
	clock     func() time.Time

	pending sync.WaitGroup
}

var _ Service = (*service)(nil)

// New creates an orchestrator over the given store and connector lifecycle
func New(st store.Store, lifecycle connector.Lifecycle, opts ...Option) (Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if lifecycle == nil {
		return nil, errors.New("connector lifecycle is required")
	}

	o := &options{
		persistGrace: DefaultPersistGracePeriod,
		restartEvery: DefaultRestartInterval,
		restartBurst: DefaultRestartBurst,
		clock:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.locker == nil {
		o.locker = tasklock.NewLocal()
	}

	return &service{
		store:     st,
		lifecycle: lifecycle,
		locker:    o.locker,
		tracer:    o.tracer,
		metrics:   o.metrics,
		restarts:  newRestartGuard(o.restartEvery, o.restartBurst),
		grace:     o.persistGrace,
		clock:     o.clock,
	}, nil
}

// CheckReadiness checks if the store can serve requests
func (s *service) CheckReadiness(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Shutdown waits for deferred writes started after expired deadlines
func (s *service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *service) now() time.Time {
	return s.clock().Truncate(time.Microsecond)
}
