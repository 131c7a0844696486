package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/dbsync-orchestrator/internal/connect"
	connectmocks "github.com/stacklok/dbsync-orchestrator/internal/connect/mocks"
	"github.com/stacklok/dbsync-orchestrator/internal/connector"
	"github.com/stacklok/dbsync-orchestrator/internal/connector/builder"
	buildermocks "github.com/stacklok/dbsync-orchestrator/internal/connector/builder/mocks"
	"github.com/stacklok/dbsync-orchestrator/internal/connector/mocks"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

func TestRecomputeHealth(t *testing.T) {
	t.Parallel()

	t.Run("no connector is a no-op", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		before := f.seed(t, "orders", task.StatusRunning, "")

		h, err := f.svc.RecomputeHealth(context.Background(), before.ID)
		require.NoError(t, err)
		assert.Equal(t, task.HealthUnknown, h)
		assert.Equal(t, before, f.get(t, before.ID))
	})

	t.Run("degraded keeps status", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		seeded := f.seed(t, "orders", task.StatusRunning, "orders-connector")
		f.lifecycle.EXPECT().Health(gomock.Any(), "orders-connector").
			Return(connector.Health{Status: task.HealthDegraded, Message: "Connector state: RUNNING, Running tasks: 0/1"}, nil)

		h, err := f.svc.RecomputeHealth(context.Background(), seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, task.HealthDegraded, h)

		stored := f.get(t, seeded.ID)
		assert.Equal(t, task.StatusRunning, stored.Status)
		assert.Equal(t, task.HealthDegraded, stored.HealthStatus)
		assert.Nil(t, stored.LastError)
		assert.Zero(t, stored.ErrorCount)
	})

	t.Run("unhealthy records the message", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		seeded := f.seed(t, "orders", task.StatusRunning, "orders-connector")
		msg := "Connector state: FAILED, Running tasks: 0/1, Error: binlog purged"
		f.lifecycle.EXPECT().Health(gomock.Any(), "orders-connector").
			Return(connector.Health{Status: task.HealthUnhealthy, Message: msg}, nil).Times(2)

		for range 2 {
			_, err := f.svc.RecomputeHealth(context.Background(), seeded.ID)
			require.NoError(t, err)
		}

		stored := f.get(t, seeded.ID)
		assert.Equal(t, task.StatusRunning, stored.Status)
		assert.Equal(t, task.HealthUnhealthy, stored.HealthStatus)
		require.NotNil(t, stored.LastError)
		assert.Equal(t, msg, *stored.LastError)
		assert.Equal(t, int64(2), stored.ErrorCount)
	})

	t.Run("unchanged health writes nothing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		seeded := f.seed(t, "orders", task.StatusPaused, "orders-connector")
		f.lifecycle.EXPECT().Health(gomock.Any(), "orders-connector").
			Return(connector.Health{Status: task.HealthUnknown, Message: connector.MessageNotFound}, nil)

		_, err := f.svc.RecomputeHealth(context.Background(), seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, seeded.Version, f.get(t, seeded.ID).Version)
	})

	t.Run("connector errors are swallowed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		before := f.seed(t, "orders", task.StatusRunning, "orders-connector")
		f.lifecycle.EXPECT().Health(gomock.Any(), "orders-connector").
			Return(connector.Health{}, &connect.Error{Method: http.MethodGet, Path: "/connectors/orders-connector/status", Err: errors.New("connection refused")})

		h, err := f.svc.RecomputeHealth(context.Background(), before.ID)
		require.NoError(t, err)
		assert.Equal(t, before.HealthStatus, h)
		assert.Equal(t, before, f.get(t, before.ID))
	})

	t.Run("persistence errors are swallowed", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		lc := connectorLifecycleReturning(ctrl, task.HealthDegraded)
		inner := store.NewMemoryStore()
		svc, err := New(conflictStore{Store: inner}, lc)
		require.NoError(t, err)

		tk := &task.SyncTask{ID: uuid.New(), TenantID: uuid.New(), TaskCode: "orders", Status: task.StatusRunning,
			HealthStatus: task.HealthHealthy, Version: 1}
		name := "orders-connector"
		tk.ConnectorName = &name
		require.NoError(t, inner.CreateTask(context.Background(), tk))

		h, err := svc.RecomputeHealth(context.Background(), tk.ID)
		require.NoError(t, err)
		assert.Equal(t, task.HealthHealthy, h)
	})

	t.Run("missing task", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.RecomputeHealth(context.Background(), uuid.New())
		assert.ErrorIs(t, err, task.ErrTaskNotFound)
	})
}

func connectorLifecycleReturning(ctrl *gomock.Controller, status task.HealthStatus) connector.Lifecycle {
	lc := mocks.NewMockLifecycle(ctrl)
	lc.EXPECT().Health(gomock.Any(), gomock.Any()).Return(connector.Health{Status: status}, nil)
	return lc
}

func TestRecordProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	before := f.seed(t, "orders", task.StatusRunning, "orders-connector")

	_, err := f.svc.RecordProgress(context.Background(), before.ID, -1)
	assert.ErrorIs(t, err, task.ErrInvalidArgument)

	got, err := f.svc.RecordProgress(context.Background(), before.ID, 1500)
	require.NoError(t, err)
	got, err = f.svc.RecordProgress(context.Background(), before.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(1500), got.TotalRecordsSynced)
	require.NotNil(t, got.LastSyncTime)
	assert.Equal(t, before.Status, got.Status)
	assert.Equal(t, before.HealthStatus, got.HealthStatus)

	_, err = f.svc.RecordProgress(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
}

// TestLifecycleScenario drives a task through start, a degraded health report, stop and delete
// against the real connector manager with a mocked Kafka Connect client.
func TestLifecycleScenario(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := connectmocks.NewMockClient(ctrl)
	b := buildermocks.NewMockBuilder(ctrl)
	b.EXPECT().Kind().Return(task.DatabaseMySQL).AnyTimes()
	b.EXPECT().ConnectorClass().Return(builder.MySQLConnectorClass).AnyTimes()

	registry, err := builder.NewRegistry(b)
	require.NoError(t, err)
	manager, err := connector.New(client, registry, connector.WithRetryDelay(0))
	require.NoError(t, err)
	svc, err := New(store.NewMemoryStore(), manager)
	require.NoError(t, err)

	ctx := context.Background()
	tenant, err := svc.CreateTenant(ctx, &task.Tenant{TenantName: "Acme", TenantCode: "acme"})
	require.NoError(t, err)
	created, err := svc.Create(ctx, &task.SyncTask{
		TenantID:               tenant.ID,
		TaskName:               "Orders",
		TaskCode:               "orders",
		SourceDBType:           task.DatabaseMySQL,
		SourceConnectionConfig: []byte(`{"host":"mysql","username":"repl"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, task.StatusCreated, created.Status)
	assert.Equal(t, task.HealthUnknown, created.HealthStatus)

	b.EXPECT().ValidateConnection(gomock.Any(), gomock.Any()).Return(true)
	b.EXPECT().BuildConfig(gomock.Any()).Return(map[string]string{"connector.class": builder.MySQLConnectorClass}, nil)
	client.EXPECT().CreateConnector(gomock.Any(), "orders-connector", gomock.Any()).
		Return(&connect.ConnectorInfo{Name: "orders-connector"}, nil)

	started, err := svc.Start(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, started.Status)
	assert.Equal(t, task.HealthHealthy, started.HealthStatus)
	assert.Equal(t, "orders-connector", started.ConnectorRef())
	assert.Nil(t, started.LastError)

	client.EXPECT().GetConnectorStatus(gomock.Any(), "orders-connector").Return(&connect.ConnectorStatus{
		Name:      "orders-connector",
		Connector: connect.WorkerState{State: connect.StateRunning},
		Tasks:     []connect.TaskState{{ID: 0, State: connect.StateFailed, Trace: "binlog purged"}},
	}, nil)

	h, err := svc.RecomputeHealth(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.HealthDegraded, h)
	current, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, current.Status)

	client.EXPECT().PauseConnector(gomock.Any(), "orders-connector").Return(nil)
	stopped, err := svc.Stop(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusStopped, stopped.Status)
	assert.Equal(t, task.HealthPaused, stopped.HealthStatus)

	// the engine already forgot the connector; deletion still succeeds
	client.EXPECT().DeleteConnector(gomock.Any(), "orders-connector").
		Return(&connect.Error{Method: http.MethodDelete, Path: "/connectors/orders-connector", StatusCode: http.StatusNotFound})
	require.NoError(t, svc.Delete(ctx, created.ID, false))
	_, err = svc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
}
