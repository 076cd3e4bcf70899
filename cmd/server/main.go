package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gravitas-games/depot/internal/catalog"
	"github.com/gravitas-games/depot/internal/config"
	"github.com/gravitas-games/depot/internal/server"
)

func main() {
	log.Println("Starting Depot inventory server...")

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/server.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Configuration loaded from %s", configPath)
	log.Printf("Server will run on %s:%d", cfg.Server.Host, cfg.Server.Port)

	// Load the item catalog
	cat, err := catalog.Load(cfg.Catalog.Dir, cfg.Catalog.SchemaPath)
	if err != nil {
		log.Fatalf("Failed to load item catalog: %v", err)
	}
	if cat.Count() == 0 {
		log.Println("WARNING: item catalog is empty; all inventories will self-heal to empty")
	}

	// Create and initialize server
	srv, err := server.New(cfg, cat)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	registerUseHandlers(srv)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server listening on %s", addr)
		if err := srv.Start(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	// Graceful shutdown
	if err := srv.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// registerUseHandlers wires the built-in item use effects. The engine has
// already removed the consumed unit by the time a handler runs.
func registerUseHandlers(srv *server.Server) {
	uses := srv.Engine().Uses()

	uses.Register("water_bottle", func(principal string, item catalog.Item, slot int) {
		log.Printf("[ItemLogic] %s drank a %s from slot %d", principal, item.Label, slot)
	})

	uses.Register("bread", func(principal string, item catalog.Item, slot int) {
		log.Printf("[ItemLogic] %s ate %s from slot %d", principal, item.Label, slot)
	})

	uses.Register("lockpick", func(principal string, item catalog.Item, slot int) {
		log.Printf("[ItemLogic] %s fiddles with a lockpick, nothing to open", principal)
	})
}
