/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the capital gains tax engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Load the rule table (embedded default or -rules file)
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: taxcases.db, env DB_PATH)
           Use ":memory:" for an in-memory database
  -rules   Rule table YAML path (default: embedded 2024.11 table,
           env RULES_PATH)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and embedded rules
  ./server -db="./data/taxcases.db"

  # Run against a newer rule year
  ./server -rules="./rules/tax_rules_2025.yaml"

SEE ALSO:
  - api/server.go: Router configuration
  - rules: Rule table loading
  - store/sqlite: Database implementation
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
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/tax-engine/api"
	"github.com/warp/tax-engine/rules"
	"github.com/warp/tax-engine/store/sqlite"
)

func main() {
	// .env is optional; flags override its values.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "taxcases.db"), "SQLite database path")
	rulesPath := flag.String("rules", envStr("RULES_PATH", ""), "rule table YAML path (empty = embedded table)")
	flag.Parse()

	// Rule table
	var engine *rules.Engine
	var err error
	if *rulesPath != "" {
		engine, err = rules.Load(*rulesPath)
	} else {
		engine, err = rules.NewDefault()
	}
	if err != nil {
		log.Fatalf("Failed to load rule table: %v", err)
	}
	log.Printf("Rule table %s loaded", engine.Version())

	// Store
	st, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer st.Close()

	handler := api.NewHandler(st, engine)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
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

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
