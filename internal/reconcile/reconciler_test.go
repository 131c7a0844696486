package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/dbsync-orchestrator/internal/connector"
	"github.com/stacklok/dbsync-orchestrator/internal/connector/mocks"
	"github.com/stacklok/dbsync-orchestrator/internal/orchestrator"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/task"
)

// fakeTasks serves fixed listings and records health checks
type fakeTasks struct {
	byStatus map[task.Status][]*task.SyncTask
	health   map[uuid.UUID]task.HealthStatus
	listErr  error
	delay    time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (f *fakeTasks) ListByStatus(_ context.Context, status task.Status, page orchestrator.Page) ([]*task.SyncTask, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	items := f.byStatus[status]
	if page.Offset >= len(items) {
		return nil, nil
	}
	end := min(page.Offset+page.Limit, len(items))
	return items[page.Offset:end], nil
}

func (f *fakeTasks) RecomputeHealth(_ context.Context, id uuid.UUID) (task.HealthStatus, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if cur <= prev || f.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	time.Sleep(f.delay)
	h, ok := f.health[id]
	if !ok {
		return "", task.NewTaskNotFound(id)
	}
	return h, nil
}

func makeTasks(n int, status task.Status, health task.HealthStatus, into *fakeTasks) {
	for range n {
		tk := &task.SyncTask{ID: uuid.New(), Status: status}
		into.byStatus[status] = append(into.byStatus[status], tk)
		into.health[tk.ID] = health
	}
}

func newFake() *fakeTasks {
	return &fakeTasks{
		byStatus: make(map[task.Status][]*task.SyncTask),
		health:   make(map[uuid.UUID]task.HealthStatus),
	}
}

func TestRunOnce_ChecksRunningAndPaused(t *testing.T) {
	t.Parallel()

	f := newFake()
	makeTasks(3, task.StatusRunning, task.HealthHealthy, f)
	makeTasks(pageSize+5, task.StatusRunning, task.HealthDegraded, f)
	makeTasks(2, task.StatusPaused, task.HealthPaused, f)
	makeTasks(4, task.StatusStopped, task.HealthPaused, f)

	summary := New(f, WithConcurrency(8)).RunOnce(context.Background())

	assert.Equal(t, 3+pageSize+5+2, summary.Checked)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, int64(3), summary.ByHealth[task.HealthHealthy])
	assert.Equal(t, int64(pageSize+5), summary.ByHealth[task.HealthDegraded])
	assert.Equal(t, int64(2), summary.ByHealth[task.HealthPaused])
}

func TestRunOnce_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	f := newFake()
	f.delay = 5 * time.Millisecond
	makeTasks(20, task.StatusRunning, task.HealthHealthy, f)

	summary := New(f, WithConcurrency(3)).RunOnce(context.Background())
	assert.Equal(t, 20, summary.Checked)
	assert.LessOrEqual(t, f.maxSeen.Load(), int32(3))
}

func TestRunOnce_TasksVanishingMidPass(t *testing.T) {
	t.Parallel()

	f := newFake()
	makeTasks(2, task.StatusRunning, task.HealthHealthy, f)
	gone := &task.SyncTask{ID: uuid.New(), Status: task.StatusRunning}
	f.byStatus[task.StatusRunning] = append(f.byStatus[task.StatusRunning], gone)

	summary := New(f).RunOnce(context.Background())
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunOnce_ListFailure(t *testing.T) {
	t.Parallel()

	f := newFake()
	f.listErr = errors.New("database is down")

	summary := New(f).RunOnce(context.Background())
	assert.Zero(t, summary.Checked)
	assert.Zero(t, f.calls.Load())
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	f := newFake()
	makeTasks(1, task.StatusRunning, task.HealthHealthy, f)
	r := New(f, WithInterval(10*time.Millisecond))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, r.Start(context.Background()))
	}()

	assert.Eventually(t, func() bool { return f.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, r.Stop())
	wg.Wait()

	assert.NoError(t, r.Stop(), "stop is idempotent")
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()
	assert.NoError(t, New(newFake()).Stop())
}

func TestStartAfterStopReturnsImmediately(t *testing.T) {
	t.Parallel()

	f := newFake()
	makeTasks(1, task.StatusRunning, task.HealthHealthy, f)
	r := New(f, WithInterval(10*time.Millisecond))
	require.NoError(t, r.Stop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	returned := make(chan error, 1)
	go func() { returned <- r.Start(ctx) }()

	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start kept running after Stop")
	}
	assert.Zero(t, f.calls.Load())
}

func TestNextInterval(t *testing.T) {
	t.Parallel()

	r := New(newFake(), WithInterval(time.Minute)).(*reconciler)
	for range 100 {
		d := r.nextInterval()
		assert.GreaterOrEqual(t, d, 45*time.Second)
		assert.Less(t, d, 75*time.Second)
	}
}

// TestRunOnce_WithOrchestrator reconciles real orchestrator state end to end
func TestRunOnce_WithOrchestrator(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	lc := mocks.NewMockLifecycle(ctrl)
	st := store.NewMemoryStore()
	svc, err := orchestrator.New(st, lc)
	require.NoError(t, err)

	ctx := context.Background()
	tenant, err := svc.CreateTenant(ctx, &task.Tenant{TenantName: "Acme", TenantCode: "acme"})
	require.NoError(t, err)
	created, err := svc.Create(ctx, &task.SyncTask{
		TenantID: tenant.ID, TaskName: "Orders", TaskCode: "orders", SourceDBType: task.DatabaseMySQL,
	})
	require.NoError(t, err)

	lc.EXPECT().Provision(gomock.Any(), gomock.Any()).Return("orders-connector", nil)
	_, err = svc.Start(ctx, created.ID)
	require.NoError(t, err)

	lc.EXPECT().Health(gomock.Any(), "orders-connector").
		Return(connector.Health{Status: task.HealthUnhealthy, Message: "Connector state: FAILED"}, nil)

	summary := New(svc).RunOnce(ctx)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, int64(1), summary.ByHealth[task.HealthUnhealthy])

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, got.Status)
	assert.Equal(t, task.HealthUnhealthy, got.HealthStatus)
	assert.Equal(t, int64(1), got.ErrorCount)
}
