package app

import (
	"github.com/stacklok/dbsync-orchestrator/internal/connect"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator"
	"github.com/stacklok/dbsync-orchestrator/internal/reconcile"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/tasklock"
	"github.com/stacklok/dbsync-orchestrator/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Orchestrator drives the sync task lifecycle
	Orchestrator orchestrator.Service

	// Reconciler refreshes task health in the background, nil when disabled
	Reconciler reconcile.Reconciler

	// Connect is the Kafka Connect REST client
	Connect connect.Client

	// Store persists tasks and tenants
	Store store.Store

	// Locker serializes per-task operations
	Locker tasklock.Locker

	// Telemetry holds the tracer and meter providers
	Telemetry *telemetry.Telemetry
}
