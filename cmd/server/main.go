/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the provisioning workflow server. Handles
  configuration, dependency injection, event wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and parse command-line flags
  2. Configure zerolog
  3. Initialize SQLite store
  4. Build the domain stack: resolver, allocator, state machine, order
     generator, approval orchestrator
  5. Wire the event manager and audit listener
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: provision.db, env DB_PATH)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  PORT       overrides -port default
  DB_PATH    overrides -db default
  LOG_LEVEL  zerolog level (debug|info|warn|error, default info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/provision.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gookit/event"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/fibernova/provision-engine/api"
	"github.com/fibernova/provision-engine/approval"
	"github.com/fibernova/provision-engine/catalog"
	"github.com/fibernova/provision-engine/odf"
	"github.com/fibernova/provision-engine/order"
	"github.com/fibernova/provision-engine/store/sqlite"
	"github.com/fibernova/provision-engine/viability"
	"github.com/fibernova/provision-engine/workflow"
)

func main() {
	// .env is optional; flags and real env win.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "provision.db"), "SQLite database path")
	flag.Parse()

	log := newLogger()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Domain stack
	resolver := catalog.NewResolver(store)
	allocator := odf.NewAllocator(store)
	events := event.NewManager("provision")
	machine := viability.NewMachine(store, resolver, allocator, events, log)
	orders := order.NewGenerator(store, allocator, events, log)
	approvals := approval.NewOrchestrator(machine, log)

	// Audit trail: one structured line per domain event.
	auditLog := log.With().Str("component", "audit").Logger()
	for _, name := range workflow.Events() {
		events.On(name, event.ListenerFunc(func(e event.Event) error {
			auditLog.Info().Str("event", e.Name()).Fields(map[string]any(e.Data())).Msg("domain event")
			return nil
		}))
	}

	handler := api.NewHandler(store, machine, orders, approvals, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(envStr("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
