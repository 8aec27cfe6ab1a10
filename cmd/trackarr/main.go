package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/trackarr/trackarr/internal/api"
	"github.com/trackarr/trackarr/internal/config"
	"github.com/trackarr/trackarr/internal/controllers"
	"github.com/trackarr/trackarr/internal/models"
	"github.com/trackarr/trackarr/internal/scheduler"
	"github.com/trackarr/trackarr/internal/services/arr"
	"github.com/trackarr/trackarr/internal/services/sabnzbd"
	"github.com/trackarr/trackarr/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting trackarr")

	// 3. Initialize database (fatal if unavailable)
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize services
	sabClient, err := sabnzbd.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize SABnzbd client: %w", err)
	}
	logger.Info("SABnzbd client initialized")

	arrManager := arr.NewManager(cfg, logger)
	logger.WithField("instances", len(cfg.Radarr)+len(cfg.Sonarr)).Info("Metadata instances configured")

	// 5. Initialize controllers
	matcher := controllers.NewMatcher(db, arrManager, cfg.MaxConcurrentLookups, logger)
	syncCtrl := controllers.NewSyncController(db, sabClient, matcher, cfg.MissThreshold, logger)
	priorityCtrl := controllers.NewPriorityController(db, sabClient, logger)
	cleanupCtrl := controllers.NewCleanupController(db, cfg.RetentionWindow, logger)
	logger.Info("Controllers initialized")

	// 6. Initialize scheduler
	sched := scheduler.NewScheduler(syncCtrl, cleanupCtrl, cfg.SyncInterval, cfg.CleanupInterval, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// 7. Initialize HTTP server
	server := api.NewServer(cfg, db, priorityCtrl, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("trackarr is running")

	select {
	case err := <-serverErrChan:
		sched.Stop()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		sched.Stop()
		// In-flight network calls are abandoned; per-record writes are atomic
		matcher.Wait()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("trackarr stopped")
	return nil
}
