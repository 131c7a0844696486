package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/otel"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
	"github.com/stacklok/dbsync-orchestrator/internal/tasklock"
)

// mutation is applied to a fresh copy of the task inside the guarded write
type mutation func(t *task.SyncTask)

// action inspects the current task and performs the external side effect of an operation.
// A nil mutation means nothing is written. A mutation returned together with an error is
// persisted before the error is returned.
type action func(ctx context.Context, current *task.SyncTask) (mutation, error)

// execute runs one read-validate-act-persist unit for a task under its lock
func (s *service) execute(ctx context.Context, op string, id uuid.UUID, act action) (*task.SyncTask, error) {
	release, err := s.locker.Acquire(ctx, tasklock.Key(id))
	if err != nil {
		if ctx.Err() != nil {
			return nil, task.NewTimeout(op, err)
		}
		return nil, task.NewOperationFailed(op, fmt.Errorf("failed to acquire task lock: %w", err))
	}
	handedOff := false
	defer func() {
		if !handedOff {
			release()
		}
	}()

	current, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(
		otel.AttrTaskCode.String(current.TaskCode),
		otel.AttrTenantID.String(current.TenantID.String()),
		otel.AttrTaskStatus.String(string(current.Status)),
	)

	mut, actErr := act(ctx, current)
	if mut == nil {
		if actErr != nil {
			return nil, actErr
		}
		return current, nil
	}

	updated, detached, err := s.persist(ctx, op, current, mut, release)
	handedOff = detached
	if actErr != nil {
		if err != nil && !detached {
			logger.FromContext(ctx).Errorw("Failed to persist task failure state",
				"task_id", id, "operation", op, "error", err)
		}
		return nil, actErr
	}
	return updated, err
}

// load reads a live task, mapping store errors to task error kinds
func (s *service) load(ctx context.Context, op string, id uuid.UUID) (*task.SyncTask, error) {
	t, err := s.store.GetTask(ctx, id)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, task.NewTaskNotFound(id)
	case ctx.Err() != nil:
		return nil, task.NewTimeout(op, err)
	default:
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
}

// persist writes the mutation guarded by the version that was read. When the caller's deadline
// has already expired the write is handed to a background goroutine bounded by the grace period,
// which also takes over the task lock, and a Timeout is returned.
func (s *service) persist(
	ctx context.Context, op string, current *task.SyncTask, mut mutation, release tasklock.ReleaseFunc,
) (*task.SyncTask, bool, error) {
	if ctx.Err() == nil {
		updated, err := s.write(ctx, current, mut)
		switch {
		case err == nil:
			return updated, false, nil
		case errors.Is(err, store.ErrVersionConflict):
			return nil, false, task.NewConflict(current.ID, err)
		case errors.Is(err, store.ErrNotFound):
			return nil, false, task.NewTaskNotFound(current.ID)
		case ctx.Err() == nil:
			return nil, false, fmt.Errorf("failed to persist task %s: %w", current.ID, err)
		}
	}

	logger.FromContext(ctx).Warnw("Deadline expired before task state was persisted, writing in background",
		"task_id", current.ID, "operation", op)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer release()

		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
		defer cancel()
		if _, err := s.write(bg, current, mut); err != nil {
			logger.Errorw("Task state needs reconciliation: deferred write failed",
				"task_id", current.ID, "operation", op, "error", err)
			return
		}
		logger.Infow("Deferred task write completed", "task_id", current.ID, "operation", op)
	}()
	return nil, true, task.NewTimeout(op, ctx.Err())
}

func (s *service) write(ctx context.Context, current *task.SyncTask, mut mutation) (*task.SyncTask, error) {
	return s.store.UpdateAtomically(ctx, current.ID, current.Version, func(t *task.SyncTask) error {
		mut(t)
		return nil
	})
}

// externalFailure classifies a failed connector call. Deadline expiry wins over the remote error.
func externalFailure(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return task.NewTimeout(op, err)
	}
	return task.NewOperationFailed(op, err)
}

// startSpan opens the operation span and returns a finish func that records the outcome
func (s *service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	began := time.Now()
	ctx, span := otel.StartSpan(ctx, s.tracer, "orchestrator."+op,
		trace.WithAttributes(append(attrs, otel.AttrOperation.String(op))...))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		otel.RecordError(span, err)
		span.End()
		s.metrics.RecordOperation(ctx, op, outcomeOf(err), time.Since(began))
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if kind := task.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
