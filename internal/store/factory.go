package store

import (
	"context"
	"fmt"

	"github.com/stacklok/dbsync-orchestrator/internal/config"
	"github.com/stacklok/dbsync-orchestrator/internal/db"
	"github.com/stacklok/dbsync-orchestrator/internal/logger"
)

// NewFromConfig creates the store selected by the storage configuration
func NewFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeMemory:
		logger.Info("Using in-memory task store")
		return NewMemoryStore(), nil
	case config.StorageTypeDatabase:
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("Using PostgreSQL task store")
		return NewDBStore(pool), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.GetStorageType())
	}
}
