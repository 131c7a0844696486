package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/dbsync-orchestrator/database"
	"github.com/stacklok/dbsync-orchestrator/internal/config"
	"github.com/stacklok/dbsync-orchestrator/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for managing schema versions. Use with 'up', 'down' or 'version'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate down (0 = all)")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format, required)")
	_ = cmd.MarkPersistentFlagRequired("config")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		RunE:  runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert database migrations",
		Long: `Revert database migrations.
WARNING: This operation can result in data loss.

Examples:
  # Revert the latest migration
  dbsync-api migrate down --config config.yaml --num-steps 1 --yes`,
		RunE: runMigrateDown,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE:  runMigrateVersion,
	})
	return cmd
}

// migrationTarget loads the configuration and returns it with the migration connection string
func migrationTarget(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	if cfg.Database == nil {
		return nil, "", fmt.Errorf("database configuration is required")
	}
	connString, err := cfg.Database.GetMigrationConnectionString()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get migration connection string: %w", err)
	}
	return cfg, connString, nil
}

// confirm asks the operator before touching the schema unless --yes was given
func confirm(cmd *cobra.Command, cfg *config.Config, action string) (bool, error) {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return false, err
	}
	if yes {
		return true, nil
	}

	db := cfg.Database
	cmd.Printf("About to %s on %s@%s:%d/%s. Continue? (yes/no): ",
		action, db.GetMigrationUser(), db.Host, db.Port, db.Database)
	var response string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	return response == "yes" || response == "y", nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, connString, err := migrationTarget(cmd)
	if err != nil {
		return err
	}
	ok, err := confirm(cmd, cfg, "apply migrations")
	if err != nil || !ok {
		return err
	}

	logger.Info("Applying database migrations...")
	if err := database.MigrateUp(connString); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return reportVersion(connString)
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	cfg, connString, err := migrationTarget(cmd)
	if err != nil {
		return err
	}
	steps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return err
	}
	action := "revert all migrations"
	if steps > 0 {
		action = fmt.Sprintf("revert %d migration(s)", steps)
	}
	ok, err := confirm(cmd, cfg, action)
	if err != nil || !ok {
		return err
	}

	if err := database.MigrateDown(connString, int(steps)); err != nil { //nolint:gosec // step counts are small
		return fmt.Errorf("failed to revert migrations: %w", err)
	}
	return reportVersion(connString)
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	_, connString, err := migrationTarget(cmd)
	if err != nil {
		return err
	}
	return reportVersion(connString)
}

func reportVersion(connString string) error {
	version, dirty, err := database.GetVersion(connString)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		logger.Warnf("Database is in a dirty state at version %d", version)
		return nil
	}
	logger.Infof("Current schema version: %d", version)
	return nil
}
