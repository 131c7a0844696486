package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/dbsync-orchestrator/internal/config"
	connectmocks "github.com/stacklok/dbsync-orchestrator/internal/connect/mocks"
	"github.com/stacklok/dbsync-orchestrator/internal/connector/mocks"
	"github.com/stacklok/dbsync-orchestrator/internal/store"
	"github.com/stacklok/dbsync-orchestrator/internal/tasklock"
	"github.com/stacklok/dbsync-orchestrator/internal/telemetry"
)

// createValidTestConfig creates a minimal valid config for testing
func createValidTestConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Type: config.StorageTypeMemory},
		Connect: config.ConnectConfig{URL: "http://connect.invalid:8083"},
		Lock:    config.LockConfig{Type: config.LockTypeLocal},
	}
}

func TestBaseConfig(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createValidTestConfig()))
	require.NoError(t, err)
	assert.Equal(t, defaultHTTPAddress, built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)

	_, err = baseConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":9090"},
		{name: "localhost", addr: "localhost:8080"},
		{name: "ipv4", addr: "10.0.0.5:8080"},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: ":", wantErr: true},
		{name: "no colon", addr: "8080", wantErr: true},
		{name: "port out of range", addr: ":99999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &dbSyncAppConfig{}
			err := WithAddress(tt.addr)(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.address)
		})
	}
}

func TestWithRequestTimeout(t *testing.T) {
	t.Parallel()

	cfg := &dbSyncAppConfig{}
	require.NoError(t, WithRequestTimeout(5*time.Second)(cfg))
	assert.Equal(t, 5*time.Second, cfg.requestTimeout)
	require.Error(t, WithRequestTimeout(0)(cfg))
}

func TestNewDBSyncApp_WiresDefaults(t *testing.T) {
	t.Parallel()

	app, err := NewDBSyncApp(context.Background(), WithConfig(createValidTestConfig()), WithAddress(":0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	c := app.Components()
	assert.NotNil(t, c.Orchestrator)
	assert.NotNil(t, c.Connect)
	assert.NotNil(t, c.Store)
	assert.NotNil(t, c.Locker)
	assert.NotNil(t, c.Telemetry)
	assert.Nil(t, c.Reconciler, "reconciler is disabled by default")
}

func TestNewDBSyncApp_ReconcilerEnabled(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	cfg := createValidTestConfig()
	cfg.Reconcile.Enabled = true
	app, err := NewDBSyncApp(context.Background(),
		WithConfig(cfg),
		WithLifecycle(mocks.NewMockLifecycle(ctrl)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	assert.NotNil(t, app.Components().Reconciler)
	assert.Nil(t, app.Components().Connect, "an injected lifecycle needs no connect client")
}

func TestNewDBSyncApp_InjectedComponents(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	st := store.NewMemoryStore()
	locker := tasklock.NewLocal()
	client := connectmocks.NewMockClient(ctrl)
	tel, err := telemetry.New(context.Background())
	require.NoError(t, err)

	app, err := NewDBSyncApp(context.Background(),
		WithConfig(createValidTestConfig()),
		WithStore(st),
		WithLocker(locker),
		WithConnectClient(client),
		WithTelemetry(tel),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	assert.Same(t, locker, app.Components().Locker)
	assert.Equal(t, st, app.Components().Store)
	assert.Equal(t, client, app.Components().Connect)
}

func TestNewDBSyncApp_InvalidConnectURL(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig()
	cfg.Connect.URL = "ftp://connect:8083"
	_, err := NewDBSyncApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka connect")
}

func TestNewDBSyncApp_UnknownLockType(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig()
	cfg.Lock.Type = "zookeeper"
	_, err := NewDBSyncApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task locker")
}

func TestBuildHTTPServer_Routes(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	app, err := NewDBSyncApp(context.Background(),
		WithConfig(createValidTestConfig()),
		WithLifecycle(mocks.NewMockLifecycle(ctrl)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	handler := app.GetHTTPServer().Handler
	for path, want := range map[string]int{
		"/health":                http.StatusOK,
		"/readiness":             http.StatusOK,
		"/version":               http.StatusOK,
		"/api/v1/tenants":        http.StatusOK,
		"/api/v1/tasks":          http.StatusBadRequest,
		"/api/v1/tasks/not-uuid": http.StatusBadRequest,
	} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("Content-Type"), path)
	}
}
