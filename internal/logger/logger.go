// Package logger provides the process-wide structured logger.
//
// It wraps a zap.SugaredLogger behind package level helpers so call sites can use
// printf style (Infof) or key/value style (Infow) logging without passing a logger around.
package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "DBSYNC_LOG_LEVEL"

// Config represents logger configuration
type Config struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level,omitempty"`

	// Format is json (default) or console
	Format string `yaml:"format,omitempty"`
}

var (
	// current is handed to callers and logs their own call site
	current atomic.Pointer[zap.SugaredLogger]
	// helper backs the package level functions and skips their frame
	helper atomic.Pointer[zap.SugaredLogger]
)

func init() {
	replace(zap.NewNop().Sugar())
	if l, err := build(Config{}); err == nil {
		replace(l)
	}
}

func replace(l *zap.SugaredLogger) {
	current.Store(l)
	helper.Store(l.WithOptions(zap.AddCallerSkip(1)))
}

// Initialize replaces the global logger.
func Initialize(cfg Config) error {
	l, err := build(cfg)
	if err != nil {
		return err
	}
	replace(l)
	return nil
}

// Set replaces the global logger with l. Mostly useful in tests.
func Set(l *zap.Logger) {
	replace(l.Sugar())
}

// Get returns the global sugared logger.
func Get() *zap.SugaredLogger {
	return current.Load()
}

func build(cfg Config) (*zap.SugaredLogger, error) {
	levelStr := cfg.Level
	if env := os.Getenv(EnvLogLevel); env != "" {
		levelStr = env
	}
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := zapcore.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoding := cfg.Format
	if encoding == "" {
		encoding = "json"
	}
	if encoding != "json" && encoding != "console" {
		return nil, fmt.Errorf("invalid log format %q", encoding)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// stderr keeps stdout clean for commands that print data
	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l.Sugar(), nil
}

// FromContext returns the global logger annotated with the request id and trace ids found in ctx.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	l := Get()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return l
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Get().Sync()
}

// Debug logs a message at debug level
func Debug(msg string) { helper.Load().Debug(msg) }

// Debugf logs a formatted message at debug level
func Debugf(format string, args ...any) { helper.Load().Debugf(format, args...) }

// Debugw logs a message with key/value pairs at debug level
func Debugw(msg string, kv ...any) { helper.Load().Debugw(msg, kv...) }

// Info logs a message at info level
func Info(msg string) { helper.Load().Info(msg) }

// Infof logs a formatted message at info level
func Infof(format string, args ...any) { helper.Load().Infof(format, args...) }

// Infow logs a message with key/value pairs at info level
func Infow(msg string, kv ...any) { helper.Load().Infow(msg, kv...) }

// Warn logs a message at warn level
func Warn(msg string) { helper.Load().Warn(msg) }

// Warnf logs a formatted message at warn level
func Warnf(format string, args ...any) { helper.Load().Warnf(format, args...) }

// Warnw logs a message with key/value pairs at warn level
func Warnw(msg string, kv ...any) { helper.Load().Warnw(msg, kv...) }

// Error logs a message at error level
func Error(msg string) { helper.Load().Error(msg) }

// Errorf logs a formatted message at error level
func Errorf(format string, args ...any) { helper.Load().Errorf(format, args...) }

// Errorw logs a message with key/value pairs at error level
func Errorw(msg string, kv ...any) { helper.Load().Errorw(msg, kv...) }

// Fatalf logs a formatted message and exits the process
func Fatalf(format string, args ...any) { helper.Load().Fatalf(format, args...) }
