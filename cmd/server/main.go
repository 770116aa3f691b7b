/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fiscal engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the zap logger
  3. Load fiscal parameter tables (embedded defaults or a JSON file)
  4. Initialize SQLite store
  5. Create API handler and router
  6. Start the recalculation scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env PORT)
  -db      SQLite database path (default: fiscal.db, env DB_PATH)
           Use ":memory:" for in-memory database
  -params  Fiscal parameter table JSON (env FISCAL_PARAMS_PATH)

ENVIRONMENT:
  STAGE, LOG_LEVEL, RECALC_INTERVAL, SCHEDULER_ENABLED, CORS_ORIGINS
  (see config/config.go)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running cycle)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/fiscal-engine/api"
	"github.com/warp/fiscal-engine/config"
	"github.com/warp/fiscal-engine/factory"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/logger"
	"github.com/warp/fiscal-engine/store/sqlite"
	"github.com/warp/fiscal-engine/tax"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".env", os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(logger.Config{Stage: cfg.Stage, Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	// Fiscal parameters
	params, err := loadParams(cfg.ParamsPath)
	if err != nil {
		return err
	}
	log.Info("fiscal parameters loaded", zap.Ints("years", params.Years()))

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, tax.NewCalculator(params), log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	scheduler := api.NewRecalculationScheduler(handler, log)
	scheduler.CheckInterval = cfg.RecalcInterval
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.DBPath),
			zap.String("stage", cfg.Stage))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		scheduler.Stop()
		return err
	}

	log.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func loadParams(path string) (*fiscal.Table, error) {
	if path == "" {
		return factory.DefaultTable()
	}
	return factory.LoadTable(path)
}
