package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/dbsync-orchestrator/internal/app"
	"github.com/stacklok/dbsync-orchestrator/internal/logger"
)

// defaultGracefulTimeout leaves room for in-flight connector calls and deferred task writes
const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator API server",
		Long: `Start the orchestrator API server.

The server requires a configuration file (--config) that specifies the task store,
the Kafka Connect endpoint, the per-task lock backend and the health reconciler.
Every setting can be overridden with a DBSYNC_* environment variable.

See the examples/ directory for sample configurations.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	cmd.Flags().Duration("shutdown-timeout", defaultGracefulTimeout, "Graceful shutdown timeout")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("shutdown-timeout")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infow("Starting dbsync orchestrator",
		"address", address, "storage", cfg.GetStorageType(), "lock", cfg.GetLockType())

	dbsync, err := app.NewDBSyncApp(ctx, app.WithConfig(cfg), app.WithAddress(address))
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- dbsync.Start()
	}()

	select {
	case err := <-errChan:
		_ = dbsync.Stop(timeout)
		return err
	case <-ctx.Done():
	}

	if err := dbsync.Stop(timeout); err != nil {
		logger.Errorf("Shutdown incomplete: %v", err)
		return err
	}
	return <-errChan
}
