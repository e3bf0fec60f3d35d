/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Credit Engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (best-effort) and parse command-line flags
  2. Load TOML configuration
  3. Initialize SQLite store and seed credit types / categories
  4. Wire the ledger and the gift card service
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to config.toml (default: config.toml, missing is fine)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults
  ./server

  # Run with an explicit config and in-memory database
  ./server -config=./config.toml -db=":memory:"

SEE ALSO:
  - config/config.go: Configuration schema and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/credit-engine/api"
	"github.com/warp/credit-engine/config"
	"github.com/warp/credit-engine/credit"
	"github.com/warp/credit-engine/giftcard"
	"github.com/warp/credit-engine/store/sqlite"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	// Flags
	configPath := flag.String("config", "config.toml", "path to TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed reference data from config
	ctx := context.Background()
	for _, t := range cfg.Credit.Types {
		ct := credit.CreditType{ID: credit.TypeID(t.ID), Name: t.Name, Priority: t.Priority}
		if err := store.SaveCreditType(ctx, ct); err != nil {
			log.Fatalf("Failed to seed credit type %s: %v", t.ID, err)
		}
	}
	for _, c := range cfg.Credit.Categories {
		cat := credit.Category{ID: credit.CategoryID(c.ID), Name: c.Name}
		if err := store.SaveCategory(ctx, cat); err != nil {
			log.Fatalf("Failed to seed category %s: %v", c.ID, err)
		}
	}

	// Wire domain services
	ledger := credit.NewLedger(store, credit.TypeID(cfg.Credit.DefaultType))
	cards := giftcard.NewService(store, ledger, giftcard.LogNotifier{}, credit.CategoryID(cfg.Credit.GiftCardCategory))

	// Create router
	handler := api.NewHandler(ledger, cards, store)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
