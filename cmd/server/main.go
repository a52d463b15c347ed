/*
main.go - Application entry point

PURPOSE:
  Starts the studio finance server: loads configuration, builds the zap
  logger, opens the SQLite store, starts the payable snapshot scheduler
  and serves the REST API with graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment, flags)
  2. Build logger
  3. Initialize SQLite store
  4. Create API handler and router
  5. Start snapshot scheduler
  6. Start server, wait for a signal

COMMAND-LINE FLAGS:
  -port               HTTP server port (default 8080, env PORT)
  -db                 SQLite database path (default studio-finance.db, env DB_PATH)
                      Use ":memory:" for an in-memory database
  -log-level          debug|info|warn|error (env LOG_LEVEL)
  -log-format         json|console (env LOG_FORMAT)
  -snapshots          run the snapshot scheduler (env SNAPSHOT_ENABLED)
  -snapshot-interval  e.g. 30m (env SNAPSHOT_INTERVAL)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection

SEE ALSO:
  - config/config.go: Settings and precedence
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/studio-finance/api"
	"github.com/warp/studio-finance/config"
	"github.com/warp/studio-finance/logger"
	"github.com/warp/studio-finance/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logr, err := logger.New(cfg.LogLevel, cfg.LogFormat, "studio-finance")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logr.Sync()

	if !cfg.EnvFileLoaded {
		logr.Debug("no .env file found, using environment and flags")
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logr.Fatal("failed to initialize database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer store.Close()

	handler := api.NewHandler(store, logr)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logr.Named("http"),
	})

	scheduler := api.NewPayableSnapshotScheduler(store, logr)
	scheduler.Interval = cfg.SnapshotInterval
	scheduler.Enabled = cfg.SnapshotEnabled
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath),
			zap.Bool("snapshots", cfg.SnapshotEnabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logr.Info("server stopped")
}
