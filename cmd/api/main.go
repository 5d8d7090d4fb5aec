// Package main provides the entry point for the Tagbox server application.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/tagboxapp/tagbox-server/internal/di"
	"github.com/tagboxapp/tagbox-server/internal/di/providers"
	"github.com/tagboxapp/tagbox-server/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	// Get logger for shutdown messages
	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// Resolve the handles now; they are closed by hand once the HTTP server has stopped.
	searchHandle := do.MustInvoke[*providers.SearchIndexHandle](injector)
	storeHandle := do.MustInvoke[*providers.StoreHandle](injector)

	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Closing search index...")
	if err := searchHandle.Close(); err != nil {
		log.Error("Failed to close search index", "error", err)
	}

	log.Info("Closing database...")
	if err := storeHandle.Close(); err != nil {
		log.Error("Failed to close database", "error", err)
	} else {
		log.Info("Database closed successfully")
	}

	log.Info("Goodbye")
}
