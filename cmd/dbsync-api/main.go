// Package main is the entry point for the dbsync orchestrator API server.
package main

import (
	"os"

	"github.com/stacklok/dbsync-orchestrator/cmd/dbsync-api/app"
	"github.com/stacklok/dbsync-orchestrator/internal/logger"
)

func main() {
	defer logger.Sync()

	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}
