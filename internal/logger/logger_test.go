package logger

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "console debug", cfg: Config{Level: "debug", Format: "console"}},
		{name: "upper case level", cfg: Config{Level: "WARN"}},
		{name: "invalid level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "invalid format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := build(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

//nolint:paralleltest // replaces the global logger
func TestHelpersWriteToGlobalLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Get()
	Set(zap.New(core))
	t.Cleanup(func() { replace(prev) })

	Infof("task %s started", "orders")
	Warnw("reconcile failed", "task", "orders")
	Debug("debug line")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "task orders started", entries[0].Message)
	assert.Equal(t, "reconcile failed", entries[1].Message)
	assert.Equal(t, "orders", entries[1].ContextMap()["task"])
	assert.Equal(t, zap.DebugLevel, entries[2].Level)
}

//nolint:paralleltest // replaces the global logger
func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := Get()
	Set(zap.New(core))
	t.Cleanup(func() { replace(prev) })

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	FromContext(ctx).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, traceID.String(), entries[0].ContextMap()["trace_id"])
	assert.Equal(t, spanID.String(), entries[0].ContextMap()["span_id"])
}

//nolint:paralleltest // replaces the global logger
func TestCallerIsTheCallSite(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := Get()
	Set(zap.New(core, zap.AddCaller()))
	t.Cleanup(func() { replace(prev) })

	_, file, line, _ := runtime.Caller(0)
	Infow("through helper")
	FromContext(context.Background()).Infow("through context logger")
	Get().Info("through global logger")

	entries := logs.All()
	require.Len(t, entries, 3)
	for i, e := range entries {
		require.True(t, e.Caller.Defined, e.Message)
		assert.Equal(t, file, e.Caller.File, e.Message)
		assert.Equal(t, line+1+i, e.Caller.Line, e.Message)
	}
}
