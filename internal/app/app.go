// Package app provides application lifecycle management for the sync orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stacklok/dbsync-orchestrator/internal/config"
	"github.com/stacklok/dbsync-orchestrator/internal/logger"
	"github.com/stacklok/dbsync-orchestrator/internal/versions"
)

// connectCheckTimeout bounds the startup Kafka Connect version check
const connectCheckTimeout = 10 * time.Second

// DBSyncApp encapsulates all components needed to run the orchestrator API server.
// It provides lifecycle management and graceful shutdown capabilities.
type DBSyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	ctx        context.Context
	cancelFunc context.CancelFunc
	stopOnce   sync.Once
	stopErr    error
}

// Start starts the background reconciler and the HTTP server.
// It blocks until the HTTP server stops or encounters an error.
func (app *DBSyncApp) Start() error {
	if app.components.Connect != nil {
		go app.checkConnectVersion()
	}

	if r := app.components.Reconciler; r != nil {
		go func() {
			if err := r.Start(app.ctx); err != nil {
				logger.Errorf("Health reconciler failed: %v", err)
			}
		}()
	}

	logger.Infof("Server listening on %s", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// checkConnectVersion warns when the Kafka Connect worker is unreachable or too old.
// Startup continues either way.
func (app *DBSyncApp) checkConnectVersion() {
	ctx, cancel := context.WithTimeout(app.ctx, connectCheckTimeout)
	defer cancel()

	info, err := app.components.Connect.ServerInfo(ctx)
	if err != nil {
		logger.Warnw("Kafka Connect is not reachable yet", "error", err)
		return
	}
	if err := versions.CheckConnectVersion(info.Version); err != nil {
		logger.Warnw("Kafka Connect version check failed", "error", err)
		return
	}
	logger.Infow("Connected to Kafka Connect", "version", info.Version, "kafka_cluster_id", info.KafkaClusterID)
}

// Stop gracefully stops the application within timeout. It stops the reconciler, drains
// HTTP requests, waits for deferred task writes and releases the store, locker and telemetry.
// Calling Stop more than once returns the first result.
func (app *DBSyncApp) Stop(timeout time.Duration) error {
	app.stopOnce.Do(func() {
		app.stopErr = app.stop(timeout)
	})
	return app.stopErr
}

func (app *DBSyncApp) stop(timeout time.Duration) error {
	logger.Info("Shutting down server...")

	if r := app.components.Reconciler; r != nil {
		if err := r.Stop(); err != nil {
			logger.Errorf("Failed to stop health reconciler: %v", err)
		}
	}
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := app.components.Orchestrator.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("deferred task writes did not finish: %w", err))
	}
	if l := app.components.Locker; l != nil {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close task locker: %w", err))
		}
	}
	if s := app.components.Store; s != nil {
		s.Close()
	}
	if t := app.components.Telemetry; t != nil {
		if err := t.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *DBSyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *DBSyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired application components
func (app *DBSyncApp) Components() *AppComponents {
	return app.components
}
