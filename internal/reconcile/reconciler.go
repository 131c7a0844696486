package reconcile

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
	"github.com/stacklok/dbsync-orchestrator/internal/telemetry"
)

const (
	// DefaultInterval is the base interval between passes
	DefaultInterval = 2 * time.Minute
	// DefaultConcurrency bounds parallel health checks within a pass
	DefaultConcurrency = 4
	// DefaultCheckTimeout bounds a single health recomputation
	DefaultCheckTimeout = 30 * time.Second

	pageSize = 200
)

// reconciledStatuses are the statuses whose connectors are expected to exist
var reconciledStatuses = []task.Status{task.StatusRunning, task.StatusPaused}

// Tasks is the part of the orchestrator the reconciler depends on
type Tasks interface {
	ListByStatus(ctx context.Context, status task.Status, page orchestrator.Page) ([]*task.SyncTask, error)
	RecomputeHealth(ctx context.Context, id uuid.UUID) (task.HealthStatus, error)
}

// Reconciler periodically recomputes task health
type Reconciler interface {
	// Start runs passes until ctx is cancelled or Stop is called
	Start(ctx context.Context) error
	// Stop ends the loop and waits for the running pass to finish.
	// A Start that follows Stop returns immediately.
	Stop() error
	// RunOnce performs a single pass
	RunOnce(ctx context.Context) Summary
}

// Summary describes the outcome of one pass
type Summary struct {
	Checked  int
	Failed   int
	ByHealth map[task.HealthStatus]int64
}

// Option configures the reconciler
type Option func(*reconciler)

// WithInterval sets the base interval between passes
func WithInterval(d time.Duration) Option {
	return func(r *reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithConcurrency bounds parallel health checks
func WithConcurrency(n int) Option {
	return func(r *reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithCheckTimeout bounds each health recomputation
func WithCheckTimeout(d time.Duration) Option {
	return func(r *reconciler) {
		if d > 0 {
			r.checkTimeout = d
		}
	}
}

// WithMetrics sets the reconcile metrics
func WithMetrics(m *telemetry.ReconcileMetrics) Option {
	return func(r *reconciler) {
		r.metrics = m
	}
}

type reconciler struct {
	tasks        Tasks
	interval     time.Duration
	concurrency  int
	checkTimeout time.Duration
	metrics      *telemetry.ReconcileMetrics

	mu         sync.Mutex
	stopped    bool
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a reconciler over the orchestrator
func New(tasks Tasks, opts ...Option) Reconciler {
	r := &reconciler{
		tasks:        tasks,
		interval:     DefaultInterval,
		concurrency:  DefaultConcurrency,
		checkTimeout: DefaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// nextInterval applies a random jitter of up to a quarter of the base interval in either direction
func (r *reconciler) nextInterval() time.Duration {
	jitter := r.interval / 4
	if jitter <= 0 {
		return r.interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	return r.interval + time.Duration(rand.Int64N(int64(2*jitter))) - jitter
}

func (r *reconciler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		cancel()
		logger.Debug("Health reconciler already stopped, not starting")
		return nil
	}
	r.cancelFunc = cancel
	r.done = done
	r.mu.Unlock()
	defer func() {
		cancel()
		close(done)
		logger.Info("Health reconciler shut down")
	}()

	logger.Infow("Starting health reconciler", "interval", r.interval, "concurrency", r.concurrency)

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.nextInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.RunOnce(ctx)
			ticker.Reset(r.nextInterval())
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *reconciler) Stop() error {
	r.mu.Lock()
	r.stopped = true
	cancel, done := r.cancelFunc, r.done
	r.mu.Unlock()
	if cancel != nil {
		logger.Info("Stopping health reconciler")
		cancel()
		<-done
	}
	return nil
}

func (r *reconciler) RunOnce(ctx context.Context) Summary {
	began := time.Now()
	summary := Summary{ByHealth: make(map[task.HealthStatus]int64)}

	ids := r.collect(ctx)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(gctx, r.checkTimeout)
			defer cancel()
			health, err := r.tasks.RecomputeHealth(checkCtx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// the task was deleted between listing and checking
				summary.Failed++
				logger.Debugw("Skipping task during reconciliation", "task_id", id, "error", err)
				return nil
			}
			summary.Checked++
			summary.ByHealth[health]++
			return nil
		})
	}
	_ = g.Wait()

	byHealth := make(map[string]int64, len(summary.ByHealth))
	for h, n := range summary.ByHealth {
		byHealth[string(h)] = n
	}
	r.metrics.RecordPass(ctx, time.Since(began), byHealth)
	logger.Debugw("Health reconciliation pass finished",
		"checked", summary.Checked, "failed", summary.Failed, "duration", time.Since(began))
	return summary
}

// collect lists the ids of every task to check
func (r *reconciler) collect(ctx context.Context) []uuid.UUID {
	var ids []uuid.UUID
	for _, status := range reconciledStatuses {
		for offset := 0; ; offset += pageSize {
			items, err := r.tasks.ListByStatus(ctx, status, orchestrator.Page{Limit: pageSize, Offset: offset})
			if err != nil {
				logger.Errorw("Failed to list tasks for reconciliation", "status", status, "error", err)
				break
			}
			for _, t := range items {
				ids = append(ids, t.ID)
			}
			if len(items) < pageSize {
				break
			}
		}
	}
	return ids
}
