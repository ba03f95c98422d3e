/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the association finance-engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, optional .env file)
  2. Open SQLite store and apply embedded migrations
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION (environment variables):
  PORT             HTTP server port (default: 8080)
  SQLITE_DB_PATH   SQLite database path (default: ./data/finance.db)
                   Use ":memory:" for an in-memory database
  ALLOWED_ORIGINS  Comma-separated CORS origins (default: *)
  DUES_BASE_YEAR   First year carryover is computed from (default: 2025)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dwcoa/finance-engine/api"
	"github.com/dwcoa/finance-engine/config"
	"github.com/dwcoa/finance-engine/dues"
	"github.com/dwcoa/finance-engine/store/sqlite"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.SQLiteDBPath != ":memory:" {
		if dir := filepath.Dir(cfg.SQLiteDBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatalf("Failed to create data directory: %v", err)
			}
		}
	}

	store, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	duesCfg := dues.DefaultConfig()
	duesCfg.BaseYear = cfg.DuesBaseYear

	handler := api.NewHandlerWithDues(store, duesCfg)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.Port)
		log.Printf("API available at http://localhost:%s/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
