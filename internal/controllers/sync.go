package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
	"github.com/trackarr/trackarr/internal/metrics"
	"github.com/trackarr/trackarr/internal/models"
	"github.com/trackarr/trackarr/internal/services/sabnzbd"
)

// ErrSyncInProgress is returned when a sync cycle is triggered while another
// one is still running. The caller skips the tick; ticks are never queued.
var ErrSyncInProgress = errors.New("sync cycle already in progress")

// QueueFetcher supplies queue and history snapshots from the download client
type QueueFetcher interface {
	FetchQueue(ctx context.Context) ([]sabnzbd.Item, error)
	FetchHistory(ctx context.Context) ([]sabnzbd.Item, error)
}

// Enqueuer receives records that still need a media lookup
type Enqueuer interface {
	Enqueue(d *models.Download) bool
}

// MutationSet accounts for the changes one reconciliation cycle applied
type MutationSet struct {
	Inserted     int
	Updated      int
	Terminalized int
	Deleted      int
	Missed       int
}

// Total returns the number of store writes the cycle performed
func (m MutationSet) Total() int {
	return m.Inserted + m.Updated + m.Terminalized + m.Deleted + m.Missed
}

// SyncController reconciles the SABnzbd queue/history snapshot into the store
type SyncController struct {
	db            *models.Database
	fetcher       QueueFetcher
	matcher       Enqueuer
	missThreshold int
	now           func() time.Time
	logger        *logrus.Logger
	running       atomic.Bool
}

// NewSyncController creates a new sync controller
func NewSyncController(db *models.Database, fetcher QueueFetcher, matcher Enqueuer, missThreshold int, logger *logrus.Logger) *SyncController {
	return &SyncController{
		db:            db,
		fetcher:       fetcher,
		matcher:       matcher,
		missThreshold: missThreshold,
		now:           time.Now,
		logger:        logger,
	}
}

// Sync runs one reconciliation cycle: fetch the queue and history snapshot,
// merge it into the store, terminalize records that stayed absent past the
// miss threshold, and hand unmatched records to the media matcher.
//
// Only one cycle runs at a time. A whole-snapshot fetch failure aborts the
// cycle with zero mutations; the previous state is retried on the next tick.
func (c *SyncController) Sync(ctx context.Context) (*MutationSet, error) {
	if !c.running.CompareAndSwap(false, true) {
		metrics.SyncCycles.WithLabelValues("skipped").Inc()
		return nil, ErrSyncInProgress
	}
	defer c.running.Store(false)

	queueItems, err := c.fetcher.FetchQueue(ctx)
	if err != nil {
		metrics.SyncCycles.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch queue: %w", err)
	}

	historyItems, err := c.fetcher.FetchHistory(ctx)
	if err != nil {
		metrics.SyncCycles.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	set := &MutationSet{}
	seen := make(map[string]bool, len(queueItems)+len(historyItems))

	for _, item := range append(queueItems, historyItems...) {
		if item.NzoID == "" {
			continue
		}
		seen[item.NzoID] = true
		if err := c.applyItem(item, set); err != nil {
			c.logger.WithError(err).WithField("nzo_id", item.NzoID).Error("Failed to apply snapshot item")
		}
	}

	if err := c.handleMissing(seen, set); err != nil {
		c.logger.WithError(err).Error("Failed to process absent records")
	}

	c.enqueueUnmatched()

	if set.Total() > 0 {
		c.logger.WithFields(logrus.Fields{
			"inserted":     set.Inserted,
			"updated":      set.Updated,
			"terminalized": set.Terminalized,
			"deleted":      set.Deleted,
		}).Info("Sync cycle applied changes")
	}

	metrics.SyncCycles.WithLabelValues("ok").Inc()
	return set, nil
}

// applyItem inserts or updates one record from the snapshot
func (c *SyncController) applyItem(item sabnzbd.Item, set *MutationSet) error {
	existing, err := c.db.GetDownloadByNzoID(item.NzoID)
	if err != nil {
		if !errors.Is(err, bolthold.ErrNotFound) {
			return err
		}

		d := &models.Download{NzoID: item.NzoID}
		applySnapshot(d, item, c.now())
		if err := c.db.CreateDownload(d); err != nil {
			return err
		}
		set.Inserted++
		return nil
	}

	// Merge inside one transaction so a just-committed enrichment is never
	// clobbered by a put built from a stale read
	changed := false
	terminal := false
	if err := c.db.MutateDownload(existing.ID, func(d *models.Download) bool {
		// Terminal records are frozen: SABnzbd trims its own history, but the
		// record persists locally until the retention sweep removes it
		if d.Status.IsTerminal() {
			return false
		}
		changed = applySnapshot(d, item, c.now())
		terminal = d.Status.IsTerminal()
		return changed
	}); err != nil {
		return err
	}

	if !changed {
		return nil
	}
	if terminal {
		set.Terminalized++
	} else {
		set.Updated++
	}
	return nil
}

// applySnapshot copies the snapshot item's mutable fields onto the record and
// reports whether anything changed. A transition into a terminal status sets
// CompletedAt exactly once.
func applySnapshot(d *models.Download, item sabnzbd.Item, now time.Time) bool {
	changed := false

	setString := func(dst *string, v string) {
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	setFloat := func(dst *float64, v float64) {
		if *dst != v {
			*dst = v
			changed = true
		}
	}

	setString(&d.Name, item.Name)
	setFloat(&d.Progress, item.Progress)
	setFloat(&d.Speed, item.Speed)
	setFloat(&d.SizeTotalMB, item.SizeTotalMB)
	setFloat(&d.SizeLeftMB, item.SizeLeftMB)
	setString(&d.TimeLeft, item.TimeLeft)
	setString(&d.Category, item.Category)

	if item.Priority != "" && d.Priority != item.Priority {
		d.Priority = item.Priority
		changed = true
	}
	if !intPtrEqual(d.QueuePosition, item.QueuePosition) {
		d.QueuePosition = item.QueuePosition
		changed = true
	}
	if item.FailureReason != "" && d.FailureReason != item.FailureReason {
		d.FailureReason = item.FailureReason
		changed = true
	}

	if d.Status != item.Status {
		d.Status = item.Status
		changed = true
	}
	if d.Status.IsTerminal() && d.CompletedAt == nil {
		if item.CompletedAt != nil {
			d.CompletedAt = item.CompletedAt
		} else {
			t := now
			d.CompletedAt = &t
		}
		changed = true
	}
	if d.ConsecutiveMisses != 0 {
		d.ConsecutiveMisses = 0
		changed = true
	}

	return changed
}

// handleMissing increments the miss counter on active records absent from the
// snapshot. Only after missThreshold consecutive misses is a verdict reached,
// so a transient fetch gap never terminalizes anything: a queued record is
// treated as cancelled and removed, a downloading one is marked failed.
func (c *SyncController) handleMissing(seen map[string]bool, set *MutationSet) error {
	active, err := c.db.GetActiveDownloads()
	if err != nil {
		return err
	}

	for _, d := range active {
		if seen[d.NzoID] {
			continue
		}

		// Only sync writes the miss counter, so the listing's value is current
		if d.ConsecutiveMisses+1 < c.missThreshold {
			if err := c.db.MutateDownload(d.ID, func(rec *models.Download) bool {
				rec.ConsecutiveMisses++
				return true
			}); err != nil {
				c.logger.WithError(err).WithField("nzo_id", d.NzoID).Error("Failed to record miss")
				continue
			}
			set.Missed++
			continue
		}

		if d.Status == models.StatusQueued {
			if err := c.db.DeleteDownload(d.ID); err != nil {
				c.logger.WithError(err).WithField("nzo_id", d.NzoID).Error("Failed to delete cancelled download")
				continue
			}
			set.Deleted++
			c.logger.WithFields(logrus.Fields{
				"nzo_id": d.NzoID,
				"name":   d.Name,
			}).Info("Download cancelled, record removed")
			continue
		}

		if err := c.db.MutateDownload(d.ID, func(rec *models.Download) bool {
			rec.Status = models.StatusFailed
			rec.FailureReason = "removed from download client"
			now := c.now()
			rec.CompletedAt = &now
			return true
		}); err != nil {
			c.logger.WithError(err).WithField("nzo_id", d.NzoID).Error("Failed to terminalize download")
			continue
		}
		set.Terminalized++
		c.logger.WithFields(logrus.Fields{
			"nzo_id": d.NzoID,
			"name":   d.Name,
		}).Warn("Download vanished mid-transfer, marked failed")
	}

	return nil
}

// enqueueUnmatched hands every record without a media lookup to the matcher.
// Fire and forget: enrichment never delays the next cycle.
func (c *SyncController) enqueueUnmatched() {
	if c.matcher == nil {
		return
	}

	unmatched, err := c.db.GetUnmatchedDownloads()
	if err != nil {
		c.logger.WithError(err).Error("Failed to get unmatched downloads")
		return
	}

	for _, d := range unmatched {
		c.matcher.Enqueue(d)
	}
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
