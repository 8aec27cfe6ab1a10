package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trackarr/trackarr/internal/metrics"
)

// CleanupController removes terminal records that outlived the retention
// window. Both completed and failed records are swept; nothing else in the
// system deletes terminal records.
type CleanupController struct {
	db        retentionStore
	retention time.Duration
	now       func() time.Time
	logger    *logrus.Logger
}

type retentionStore interface {
	DeleteTerminalOlderThan(cutoff time.Time) (removed int, kept int, err error)
}

// NewCleanupController creates a new cleanup controller
func NewCleanupController(db retentionStore, retention time.Duration, logger *logrus.Logger) *CleanupController {
	return &CleanupController{
		db:        db,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// CleanupOld deletes all completed and failed downloads whose completion is
// older than the retention window, in one atomic pass
func (c *CleanupController) CleanupOld(ctx context.Context) (removed int, kept int, err error) {
	cutoff := c.now().Add(-c.retention)

	removed, kept, err = c.db.DeleteTerminalOlderThan(cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("retention sweep failed: %w", err)
	}

	metrics.RetentionRemoved.Add(float64(removed))

	if removed > 0 {
		c.logger.WithFields(logrus.Fields{
			"removed": removed,
			"kept":    kept,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Retention sweep completed")
	} else {
		c.logger.WithField("kept", kept).Debug("Retention sweep found nothing to remove")
	}

	return removed, kept, nil
}
