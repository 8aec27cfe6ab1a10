package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/trackarr/trackarr/internal/controllers"
)

// Scheduler drives the sync and retention cycles on independent timers
type Scheduler struct {
	cron            *cron.Cron
	syncCtrl        *controllers.SyncController
	cleanupCtrl     *controllers.CleanupController
	syncInterval    time.Duration
	cleanupInterval time.Duration
	logger          *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(
	syncCtrl *controllers.SyncController,
	cleanupCtrl *controllers.CleanupController,
	syncInterval time.Duration,
	cleanupInterval time.Duration,
	logger *logrus.Logger,
) *Scheduler {
	// SkipIfStillRunning drops a tick whose predecessor has not finished; the
	// sync controller carries its own guard as well so manual triggers obey
	// the same rule
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.VerbosePrintfLogger(logger)),
	))

	return &Scheduler{
		cron:            c,
		syncCtrl:        syncCtrl,
		cleanupCtrl:     cleanupCtrl,
		syncInterval:    syncInterval,
		cleanupInterval: cleanupInterval,
		logger:          logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.syncInterval), s.runSync)
	if err != nil {
		return fmt.Errorf("failed to add sync job: %w", err)
	}

	_, err = s.cron.AddFunc(fmt.Sprintf("@every %s", s.cleanupInterval), s.runCleanup)
	if err != nil {
		return fmt.Errorf("failed to add cleanup job: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"sync_interval":    s.syncInterval.String(),
		"cleanup_interval": s.cleanupInterval.String(),
	}).Info("Scheduler started")

	// Run an initial sync immediately
	go s.runSync()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// runSync executes one reconciliation cycle
func (s *Scheduler) runSync() {
	set, err := s.syncCtrl.Sync(context.Background())
	if err != nil {
		if errors.Is(err, controllers.ErrSyncInProgress) {
			s.logger.Debug("Sync tick skipped, previous cycle still running")
			return
		}
		s.logger.WithError(err).Error("Sync cycle failed")
		return
	}

	s.logger.WithField("mutations", set.Total()).Debug("Sync cycle completed")
}

// runCleanup executes one retention sweep
func (s *Scheduler) runCleanup() {
	if _, _, err := s.cleanupCtrl.CleanupOld(context.Background()); err != nil {
		s.logger.WithError(err).Error("Retention sweep failed")
	}
}
