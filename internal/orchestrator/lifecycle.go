package orchestrator

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/stacklok/dbsync-orchestrator/internal/connect"
	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/otel"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// Start provisions the connector when the task has none (or it vanished from the engine) and resumes
// it otherwise. A connector failure is recorded on the task as FAILED before it is returned.
func (s *service) Start(ctx context.Context, id uuid.UUID) (_ *task.SyncTask, err error) {
	ctx, finish := s.startSpan(ctx, OpStart, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	return s.execute(ctx, OpStart, id, func(ctx context.Context, current *task.SyncTask) (mutation, error) {
		if !current.Status.CanTransitionTo(task.StatusRunning) {
			return nil, task.NewInvalidTransition(current.Status, task.StatusRunning)
		}

		name, err := s.startConnector(ctx, current)
		if err != nil {
			return startFailure(ctx, OpStart, current, err)
		}
		logger.FromContext(ctx).Infow("Sync task started", "task_id", current.ID, "connector", name)
		return func(t *task.SyncTask) {
			t.ConnectorName = &name
			t.MarkRunning()
		}, nil
	})
}

func (s *service) startConnector(ctx context.Context, current *task.SyncTask) (string, error) {
	if current.HasConnector() {
		name := current.ConnectorRef()
		exists, err := s.lifecycle.Exists(ctx, name)
		if err != nil {
			return "", err
		}
		if exists {
			return name, s.lifecycle.Resume(ctx, name)
		}
		logger.FromContext(ctx).Infow("Referenced connector is absent, provisioning a new one",
			"task_id", current.ID, "connector", name)
	}
	return s.lifecycle.Provision(ctx, current)
}

// startFailure decides how a failed start or restart is reported. Validation failures found before any
// connector call leave the task untouched; everything else is folded into the task as FAILED.
func startFailure(ctx context.Context, op string, current *task.SyncTask, err error) (mutation, error) {
	switch {
	case errors.Is(err, task.ErrUnsupportedDatabaseKind):
		return nil, err
	case errors.Is(err, task.ErrSourceUnreachable):
		return nil, task.NewOperationFailed(op, err)
	}

	logger.FromContext(ctx).Errorw("Sync task connector operation failed",
		"task_id", current.ID, "task_code", current.TaskCode, "operation", op, "error", err)
	detail := err.Error()
	return func(t *task.SyncTask) {
		t.MarkFailed(detail)
	}, externalFailure(ctx, op, err)
}

// Stop pauses the connector, when there is one, and marks the task STOPPED
func (s *service) Stop(ctx context.Context, id uuid.UUID) (_ *task.SyncTask, err error) {
	ctx, finish := s.startSpan(ctx, OpStop, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	return s.execute(ctx, OpStop, id, s.halt(OpStop, task.StatusStopped))
}

// Pause pauses the connector, when there is one, and marks the task PAUSED
func (s *service) Pause(ctx context.Context, id uuid.UUID) (_ *task.SyncTask, err error) {
	ctx, finish := s.startSpan(ctx, OpPause, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	return s.execute(ctx, OpPause, id, s.halt(OpPause, task.StatusPaused))
}

// halt is the shared action of stop and pause. The connector is paused in both cases.
func (s *service) halt(op string, target task.Status) action {
	return func(ctx context.Context, current *task.SyncTask) (mutation, error) {
		if !current.Status.CanTransitionTo(target) {
			return nil, task.NewInvalidTransition(current.Status, target)
		}
		if current.HasConnector() {
			if err := s.lifecycle.Pause(ctx, current.ConnectorRef()); err != nil {
				return nil, externalFailure(ctx, op, err)
			}
		}
		return func(t *task.SyncTask) {
			t.Status = target
			t.HealthStatus = task.HealthPaused
		}, nil
	}
}

// Resume resumes a PAUSED task
func (s *service) Resume(ctx context.Context, id uuid.UUID) (_ *task.SyncTask, err error) {
	ctx, finish := s.startSpan(ctx, OpResume, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	return s.execute(ctx, OpResume, id, func(ctx context.Context, current *task.SyncTask) (mutation, error) {
		if current.Status != task.StatusPaused {
			return nil, task.NewResumeNotPaused(current.Status)
		}
		if current.HasConnector() {
			if err := s.lifecycle.Resume(ctx, current.ConnectorRef()); err != nil {
				return nil, externalFailure(ctx, OpResume, err)
			}
		}
		return func(t *task.SyncTask) {
			t.Status = task.StatusRunning
			t.HealthStatus = task.HealthHealthy
		}, nil
	})
}

// Restart bypasses the transition table. It restarts the referenced connector, or provisions one when
// the task has none or the engine no longer knows it. Restarts are rate limited per task.
func (s *service) Restart(ctx context.Context, id uuid.UUID) (_ *task.SyncTask, err error) {
	ctx, finish := s.startSpan(ctx, OpRestart, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	return s.execute(ctx, OpRestart, id, func(ctx context.Context, current *task.SyncTask) (mutation, error) {
		if !s.restarts.allow(current.ID) {
			return nil, task.NewRestartThrottled(current.ID)
		}

		name, err := s.restartConnector(ctx, current)
		if err != nil {
			return startFailure(ctx, OpRestart, current, err)
		}
		logger.FromContext(ctx).Infow("Sync task restarted", "task_id", current.ID, "connector", name)
		return func(t *task.SyncTask) {
			t.ConnectorName = &name
			t.MarkRunning()
		}, nil
	})
}

func (s *service) restartConnector(ctx context.Context, current *task.SyncTask) (string, error) {
	if !current.HasConnector() {
		return s.lifecycle.Provision(ctx, current)
	}
	name := current.ConnectorRef()
	err := s.lifecycle.Restart(ctx, name)
	if connect.IsNotFound(err) {
		logger.FromContext(ctx).Infow("Connector to restart is absent, provisioning a new one",
			"task_id", current.ID, "connector", name)
		return s.lifecycle.Provision(ctx, current)
	}
	return name, err
}

// Delete removes the connector and soft-deletes the task. A RUNNING task needs force; with force
// the connector is paused first and a failure to do so is only logged.
func (s *service) Delete(ctx context.Context, id uuid.UUID, force bool) (err error) {
	ctx, finish := s.startSpan(ctx, OpDelete, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	_, err = s.execute(ctx, OpDelete, id, func(ctx context.Context, current *task.SyncTask) (mutation, error) {
		running := current.Status == task.StatusRunning
		if running && !force {
			return nil, task.NewDeleteBlocked(current.ID)
		}

		stopped := false
		if running {
			stopped = true
			if current.HasConnector() {
				if err := s.lifecycle.Pause(ctx, current.ConnectorRef()); err != nil {
					stopped = false
					logger.FromContext(ctx).Warnw("Failed to stop task before deletion",
						"task_id", current.ID, "error", err)
				}
			}
		}

		if current.HasConnector() {
			if err := s.lifecycle.Delete(ctx, current.ConnectorRef()); err != nil {
				return nil, externalFailure(ctx, OpDelete, err)
			}
		}

		deletedAt := s.now()
		return func(t *task.SyncTask) {
			if stopped {
				t.Status = task.StatusStopped
				t.HealthStatus = task.HealthPaused
			}
			t.ConnectorName = nil
			t.DeletedAt = &deletedAt
		}, nil
	})
	if err == nil {
		s.restarts.forget(id)
		logger.FromContext(ctx).Infow("Sync task deleted", "task_id", id, "force", force)
	}
	return err
}

// Update applies the present patch fields to a task that is not running
func (s *service) Update(ctx context.Context, id uuid.UUID, patch task.Patch) (_ *task.SyncTask, err error) {
	ctx, finish := s.startSpan(ctx, OpUpdate, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	return s.execute(ctx, OpUpdate, id, func(_ context.Context, current *task.SyncTask) (mutation, error) {
		if current.Status == task.StatusRunning {
			return nil, task.NewUpdateBlocked(current.ID)
		}
		if !patch.Apply(current.Clone()) {
			return nil, nil
		}
		return func(t *task.SyncTask) {
			patch.Apply(t)
		}, nil
	})
}

// UpdateConnectorConfig rebuilds the connector configuration of a task that is not running and
// pushes it to the engine. The task record itself is not changed.
func (s *service) UpdateConnectorConfig(ctx context.Context, id uuid.UUID) (_ *task.SyncTask, err error) {
	ctx, finish := s.startSpan(ctx, OpUpdateConnectorConfig, otel.AttrTaskID.String(id.String()))
	defer finish(&err)

	return s.execute(ctx, OpUpdateConnectorConfig, id, func(ctx context.Context, current *task.SyncTask) (mutation, error) {
		if current.Status == task.StatusRunning {
			return nil, task.NewUpdateBlocked(current.ID)
		}
		if !current.HasConnector() {
			return nil, task.NewNoConnectorReference(current.TaskCode)
		}
		if err := s.lifecycle.UpdateConfig(ctx, current); err != nil {
			if errors.Is(err, task.ErrUnsupportedDatabaseKind) {
				return nil, err
			}
			return nil, externalFailure(ctx, OpUpdateConnectorConfig, err)
		}
		return nil, nil
	})
}
