package connect

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusBody = `{
  "name": "dbsync-acme-orders",
  "connector": {"state": "RUNNING", "worker_id": "10.0.0.1:8083"},
  "tasks": [
    {"id": 0, "state": "RUNNING", "worker_id": "10.0.0.1:8083"},
    {"id": 1, "state": "FAILED", "worker_id": "10.0.0.2:8083", "trace": "java.sql.SQLException: boom"}
  ],
  "type": "source"
}`

const validationBody = `{
  "name": "io.debezium.connector.mysql.MySqlConnector",
  "error_count": 1,
  "groups": ["Common", "MySQL"],
  "configs": [
    {"definition": {"name": "database.hostname"}, "value": {"name": "database.hostname", "value": "db", "errors": []}},
    {"definition": {"name": "database.port"}, "value": {"name": "database.port", "value": "x", "errors": ["Invalid value x"]}}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient("ftp://connect:8083")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")

	_, err = NewClient("://nope")
	require.Error(t, err)
}

func TestCreateConnector(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/connectors", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"name":"dbsync-orders","config":{"tasks.max":"1"},"tasks":[],"type":"source"}`))
	})

	info, err := c.CreateConnector(context.Background(), "dbsync-orders", map[string]string{"tasks.max": "1"})
	require.NoError(t, err)
	assert.Equal(t, "dbsync-orders", info.Name)
	assert.Equal(t, "1", info.Config["tasks.max"])
	assert.Equal(t, "dbsync-orders", gotBody["name"])
	assert.Equal(t, map[string]any{"tasks.max": "1"}, gotBody["config"])
}

func TestCreateConnector_Conflict(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error_code":409,"message":"Connector dbsync-orders already exists"}`))
	})

	_, err := c.CreateConnector(context.Background(), "dbsync-orders", map[string]string{})
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusConflict, ce.StatusCode)
	assert.Equal(t, "Connector dbsync-orders already exists", ce.Message)
	assert.True(t, IsTransient(err))
	assert.False(t, IsNotFound(err))
}

func TestGetConnectorStatus(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/connectors/dbsync-acme-orders/status", r.URL.Path)
		_, _ = w.Write([]byte(statusBody))
	})

	status, err := c.GetConnectorStatus(context.Background(), "dbsync-acme-orders")
	require.NoError(t, err)
	assert.Equal(t, "dbsync-acme-orders", status.Name)
	assert.Equal(t, StateRunning, status.Connector.State)
	assert.Equal(t, "10.0.0.1:8083", status.Connector.WorkerID)
	require.Len(t, status.Tasks, 2)
	assert.Equal(t, 1, status.Tasks[1].ID)
	assert.Equal(t, StateFailed, status.Tasks[1].State)
	assert.Equal(t, "java.sql.SQLException: boom", status.Tasks[1].Trace)
}

func TestGetConnector_NotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":404,"message":"Connector missing not found"}`))
	})

	_, err := c.GetConnectorStatus(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransient(err))

	_, err = c.GetConnectorInfo(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteConnector_MissingIsSuccess(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})

	require.NoError(t, c.DeleteConnector(context.Background(), "gone"))
}

func TestLifecycleCalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		call       func(Client) error
		wantMethod string
		wantPath   string
		wantQuery  string
	}{
		{
			name:       "pause",
			call:       func(c Client) error { return c.PauseConnector(context.Background(), "orders") },
			wantMethod: http.MethodPut,
			wantPath:   "/connectors/orders/pause",
		},
		{
			name:       "resume",
			call:       func(c Client) error { return c.ResumeConnector(context.Background(), "orders") },
			wantMethod: http.MethodPut,
			wantPath:   "/connectors/orders/resume",
		},
		{
			name:       "restart",
			call:       func(c Client) error { return c.RestartConnector(context.Background(), "orders") },
			wantMethod: http.MethodPost,
			wantPath:   "/connectors/orders/restart",
			wantQuery:  "includeTasks=true&onlyFailed=true",
		},
		{
			name:       "delete",
			call:       func(c Client) error { return c.DeleteConnector(context.Background(), "orders") },
			wantMethod: http.MethodDelete,
			wantPath:   "/connectors/orders",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantMethod, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, tt.wantQuery, r.URL.RawQuery)
				w.WriteHeader(http.StatusAccepted)
			})
			require.NoError(t, tt.call(c))
		})
	}
}

func TestUpdateConnectorConfig(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/connectors/orders/config", r.URL.Path)
		var cfg map[string]string
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &cfg))
		assert.Equal(t, "4096", cfg["max.batch.size"])
		_, _ = w.Write([]byte(`{"name":"orders","config":{"max.batch.size":"4096"},"tasks":[{"connector":"orders","task":0}]}`))
	})

	info, err := c.UpdateConnectorConfig(context.Background(), "orders", map[string]string{"max.batch.size": "4096"})
	require.NoError(t, err)
	require.Len(t, info.Tasks, 1)
	assert.Equal(t, "orders", info.Tasks[0].Connector)
}

func TestListConnectors(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`["a","b"]`))
	})

	names, err := c.ListConnectors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestServerInfo(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		_, _ = w.Write([]byte(`{"version":"3.7.1","commit":"a3b1c2","kafka_cluster_id":"I4ZmrWqfT2e"}`))
	})

	info, err := c.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.7.1", info.Version)
	assert.Equal(t, "I4ZmrWqfT2e", info.KafkaClusterID)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	const class = "io.debezium.connector.mysql.MySqlConnector"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/connector-plugins/"+class+"/config/validate", r.URL.Path)
		var cfg map[string]string
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &cfg))
		assert.Equal(t, class, cfg["connector.class"])
		_, _ = w.Write([]byte(validationBody))
	})

	res, err := c.ValidateConfig(context.Background(), class, map[string]string{"database.port": "x"})
	require.NoError(t, err)
	assert.False(t, res.Valid())
	assert.Equal(t, 1, res.ErrorCount)
	assert.Equal(t, []string{"Common", "MySQL"}, res.Groups)
	assert.Equal(t, []string{"database.port: Invalid value x"}, res.Problems())
}

func TestServerError_IsTransient(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream down"))
	}, WithBreaker(0, 0))

	err := c.PauseConnector(context.Background(), "orders")
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "upstream down", ce.Message)
	assert.True(t, IsTransient(err))
}

func TestTransportError_IsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, WithTimeout(time.Second), WithBreaker(0, 0))
	require.NoError(t, err)

	err = c.PauseConnector(context.Background(), "orders")
	require.Error(t, err)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Zero(t, ce.StatusCode)
	assert.True(t, IsTransient(err))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithBreaker(2, time.Minute))

	for range 2 {
		require.Error(t, c.ResumeConnector(context.Background(), "orders"))
	}
	err := c.ResumeConnector(context.Background(), "orders")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, WithBreaker(1, time.Minute))

	for range 3 {
		err := c.PauseConnector(context.Background(), "orders")
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
	assert.Equal(t, int32(3), calls.Load())
}
