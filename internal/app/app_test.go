package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/dbsync-orchestrator/internal/connect"
	connectmocks "github.com/stacklok/dbsync-orchestrator/internal/connect/mocks"
	"github.com/stacklok/dbsync-orchestrator/internal/connector/mocks"
)

// freeAddress reserves and releases a local port
func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func startApp(t *testing.T, app *DBSyncApp) <-chan error {
	t.Helper()
	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()
	return errChan
}

func waitStopped(t *testing.T, errChan <-chan error) {
	t.Helper()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
	}
}

func TestDBSyncApp_StartServesAndStops(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	addr := freeAddress(t)
	cfg := createValidTestConfig()
	cfg.Reconcile.Enabled = true
	cfg.Reconcile.Interval = "50ms"

	app, err := NewDBSyncApp(context.Background(),
		WithConfig(cfg),
		WithAddress(addr),
		WithLifecycle(mocks.NewMockLifecycle(ctrl)),
	)
	require.NoError(t, err)
	errChan := startApp(t, app)

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, app.Stop(5*time.Second))
	waitStopped(t, errChan)
}

func TestDBSyncApp_ChecksConnectVersion(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	client := connectmocks.NewMockClient(ctrl)
	checked := make(chan struct{})
	client.EXPECT().ServerInfo(gomock.Any()).DoAndReturn(func(context.Context) (*connect.ServerInfo, error) {
		close(checked)
		return &connect.ServerInfo{Version: "2.8.1"}, nil
	})

	app, err := NewDBSyncApp(context.Background(),
		WithConfig(createValidTestConfig()),
		WithAddress(freeAddress(t)),
		WithConnectClient(client),
	)
	require.NoError(t, err)
	errChan := startApp(t, app)

	select {
	case <-checked:
	case <-time.After(5 * time.Second):
		t.Fatal("kafka connect version was not checked")
	}

	require.NoError(t, app.Stop(5*time.Second))
	waitStopped(t, errChan)
}

func TestDBSyncApp_StopIdempotent(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	app, err := NewDBSyncApp(context.Background(),
		WithConfig(createValidTestConfig()),
		WithLifecycle(mocks.NewMockLifecycle(ctrl)),
	)
	require.NoError(t, err)

	require.NoError(t, app.Stop(time.Second))
	require.NoError(t, app.Stop(time.Second))
}

func TestDBSyncApp_StartError_AddressInUse(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	app, err := NewDBSyncApp(context.Background(),
		WithConfig(createValidTestConfig()),
		WithAddress(l.Addr().String()),
		WithLifecycle(mocks.NewMockLifecycle(ctrl)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	err = app.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server failed")
}

func TestDBSyncApp_Accessors(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	cfg := createValidTestConfig()
	app, err := NewDBSyncApp(context.Background(),
		WithConfig(cfg),
		WithAddress(":9191"),
		WithLifecycle(mocks.NewMockLifecycle(ctrl)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	assert.Same(t, cfg, app.GetConfig())
	assert.Equal(t, ":9191", app.GetHTTPServer().Addr)
}
