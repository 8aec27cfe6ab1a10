package controllers

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timshannon/bolthold"
	"github.com/trackarr/trackarr/internal/models"
	"github.com/trackarr/trackarr/internal/services/sabnzbd"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()

	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

type fakeFetcher struct {
	queue    []sabnzbd.Item
	history  []sabnzbd.Item
	queueErr error
	histErr  error
}

func (f *fakeFetcher) FetchQueue(ctx context.Context) ([]sabnzbd.Item, error) {
	return f.queue, f.queueErr
}

func (f *fakeFetcher) FetchHistory(ctx context.Context) ([]sabnzbd.Item, error) {
	return f.history, f.histErr
}

func queueItem(nzoID, name string, status models.Status, position int) sabnzbd.Item {
	pos := position
	return sabnzbd.Item{
		NzoID:         nzoID,
		Name:          name,
		Status:        status,
		Priority:      models.PriorityNormal,
		QueuePosition: &pos,
	}
}

func TestSyncInsertsSnapshotItems(t *testing.T) {
	db := newTestDB(t)
	completed := time.Now().Add(-time.Hour)
	fetcher := &fakeFetcher{
		queue: []sabnzbd.Item{
			queueItem("nzo_dl", "Active.Release", models.StatusDownloading, 1),
			queueItem("nzo_q", "Waiting.Release", models.StatusQueued, 2),
		},
		history: []sabnzbd.Item{
			{NzoID: "nzo_done", Name: "Done.Release", Status: models.StatusCompleted, Progress: 100, CompletedAt: &completed},
		},
	}

	ctrl := NewSyncController(db, fetcher, nil, 3, testLogger())
	set, err := ctrl.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, set.Inserted)
	assert.Zero(t, set.Updated)
	assert.Zero(t, set.Terminalized)

	d, err := db.GetDownloadByNzoID("nzo_done")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, d.Status)
	require.NotNil(t, d.CompletedAt)
	assert.Equal(t, completed.Unix(), d.CompletedAt.Unix())
}

func TestSyncIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	fetcher := &fakeFetcher{
		queue: []sabnzbd.Item{queueItem("nzo_dl", "Active.Release", models.StatusDownloading, 1)},
	}

	ctrl := NewSyncController(db, fetcher, nil, 3, testLogger())

	first, err := ctrl.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total())

	second, err := ctrl.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Total(), "an unchanged snapshot must produce zero mutations")
}

func TestSyncTerminalizesViaHistory(t *testing.T) {
	db := newTestDB(t)
	fetcher := &fakeFetcher{
		queue: []sabnzbd.Item{queueItem("nzo_1", "Some.Release", models.StatusDownloading, 1)},
	}

	ctrl := NewSyncController(db, fetcher, nil, 3, testLogger())
	_, err := ctrl.Sync(context.Background())
	require.NoError(t, err)

	// The download finishes and moves from the queue to history
	completed := time.Now()
	fetcher.queue = nil
	fetcher.history = []sabnzbd.Item{
		{NzoID: "nzo_1", Name: "Some.Release", Status: models.StatusCompleted, Progress: 100, CompletedAt: &completed},
	}

	set, err := ctrl.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, set.Terminalized)

	d, err := db.GetDownloadByNzoID("nzo_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, d.Status)
	require.NotNil(t, d.CompletedAt)
}

func TestSyncTerminalRecordsAreFrozen(t *testing.T) {
	db := newTestDB(t)
	completed := time.Now().Add(-time.Hour)
	fetcher := &fakeFetcher{
		history: []sabnzbd.Item{
			{NzoID: "nzo_1", Name: "Done.Release", Status: models.StatusCompleted, Progress: 100, CompletedAt: &completed},
		},
	}

	ctrl := NewSyncController(db, fetcher, nil, 3, testLogger())
	_, err := ctrl.Sync(context.Background())
	require.NoError(t, err)

	// A stale snapshot claims the record is active again
	fetcher.history = nil
	fetcher.queue = []sabnzbd.Item{queueItem("nzo_1", "Done.Release", models.StatusDownloading, 1)}

	set, err := ctrl.Sync(context.Background())
	require.NoError(t, err)
	assert.Zero(t, set.Total())

	d, err := db.GetDownloadByNzoID("nzo_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, d.Status, "terminal records never transition back")
}

func TestSyncPreservesEnrichment(t *testing.T) {
	db := newTestDB(t)
	fetcher := &fakeFetcher{
		queue: []sabnzbd.Item{queueItem("nzo_1", "Show.Name.S01E01", models.StatusDownloading, 1)},
	}

	ctrl := NewSyncController(db, fetcher, nil, 3, testLogger())
	_, err := ctrl.Sync(context.Background())
	require.NoError(t, err)

	// Enrichment commits its media fields between cycles
	d, err := db.GetDownloadByNzoID("nzo_1")
	require.NoError(t, err)
	require.NoError(t, db.MutateDownload(d.ID, func(rec *models.Download) bool {
		rec.PosterAttempted = true
		rec.MediaTitle = "Show Name"
		rec.PosterURL = "https://example.com/poster.jpg"
		return true
	}))

	fetcher.queue[0].Progress = 55

	set, err := ctrl.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, set.Updated)

	got, err := db.GetDownloadByNzoID("nzo_1")
	require.NoError(t, err)
	assert.Equal(t, 55.0, got.Progress)
	assert.True(t, got.PosterAttempted, "the snapshot merge must not erase a committed enrichment")
	assert.Equal(t, "Show Name", got.MediaTitle)
	assert.Equal(t, "https://example.com/poster.jpg", got.PosterURL)
}

func TestSyncMissThreshold(t *testing.T) {
	db := newTestDB(t)
	fetcher := &fakeFetcher{
		queue: []sabnzbd.Item{
			queueItem("nzo_dl", "Active.Release", models.StatusDownloading, 1),
			queueItem("nzo_q", "Waiting.Release", models.StatusQueued, 2),
		},
	}

	ctrl := NewSyncController(db, fetcher, nil, 2, testLogger())
	_, err := ctrl.Sync(context.Background())
	require.NoError(t, err)

	// Both records vanish from the snapshot
	fetcher.queue = nil

	set, err := ctrl.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, set.Missed, "one miss is below the threshold, no verdict yet")
	assert.Zero(t, set.Deleted)
	assert.Zero(t, set.Terminalized)

	set, err = ctrl.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, set.Deleted, "a vanished queued download was cancelled")
	assert.Equal(t, 1, set.Terminalized, "a vanished active download failed")

	_, err = db.GetDownloadByNzoID("nzo_q")
	assert.ErrorIs(t, err, bolthold.ErrNotFound)

	d, err := db.GetDownloadByNzoID("nzo_dl")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, d.Status)
	assert.Equal(t, "removed from download client", d.FailureReason)
	require.NotNil(t, d.CompletedAt)
}

func TestSyncMissCounterResetsWhenSeenAgain(t *testing.T) {
	db := newTestDB(t)
	fetcher := &fakeFetcher{
		queue: []sabnzbd.Item{queueItem("nzo_1", "Flaky.Release", models.StatusQueued, 1)},
	}

	ctrl := NewSyncController(db, fetcher, nil, 3, testLogger())
	_, err := ctrl.Sync(context.Background())
	require.NoError(t, err)

	saved := fetcher.queue
	fetcher.queue = nil
	_, err = ctrl.Sync(context.Background())
	require.NoError(t, err)

	fetcher.queue = saved
	_, err = ctrl.Sync(context.Background())
	require.NoError(t, err)

	d, err := db.GetDownloadByNzoID("nzo_1")
	require.NoError(t, err)
	assert.Zero(t, d.ConsecutiveMisses, "reappearing in the snapshot clears the miss counter")
}

func TestSyncFetchErrorAbortsCycle(t *testing.T) {
	db := newTestDB(t)
	fetcher := &fakeFetcher{
		queue: []sabnzbd.Item{queueItem("nzo_1", "Some.Release", models.StatusQueued, 1)},
	}

	ctrl := NewSyncController(db, fetcher, nil, 1, testLogger())
	_, err := ctrl.Sync(context.Background())
	require.NoError(t, err)

	fetcher.queueErr = errors.New("connection refused")

	set, err := ctrl.Sync(context.Background())
	assert.Error(t, err)
	assert.Nil(t, set)

	// A failed fetch is not a snapshot: nothing is missed, nothing changes
	d, err := db.GetDownloadByNzoID("nzo_1")
	require.NoError(t, err)
	assert.Zero(t, d.ConsecutiveMisses)
	assert.Equal(t, models.StatusQueued, d.Status)
}

type blockingFetcher struct {
	started     chan struct{}
	release     chan struct{}
	startedOnce sync.Once
}

func (f *blockingFetcher) FetchQueue(ctx context.Context) ([]sabnzbd.Item, error) {
	f.startedOnce.Do(func() { close(f.started) })
	<-f.release
	return nil, nil
}

func (f *blockingFetcher) FetchHistory(ctx context.Context) ([]sabnzbd.Item, error) {
	return nil, nil
}

func TestSyncSkipsOverlappingCycle(t *testing.T) {
	db := newTestDB(t)
	fetcher := &blockingFetcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	ctrl := NewSyncController(db, fetcher, nil, 3, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.Sync(context.Background())
		done <- err
	}()

	<-fetcher.started
	_, err := ctrl.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(fetcher.release)
	require.NoError(t, <-done)

	// The guard is released once the first cycle finishes
	_, err = ctrl.Sync(context.Background())
	assert.NoError(t, err)
}

type recordingEnqueuer struct {
	ids []uint64
}

func (e *recordingEnqueuer) Enqueue(d *models.Download) bool {
	e.ids = append(e.ids, d.ID)
	return true
}

func TestSyncEnqueuesUnmatchedRecords(t *testing.T) {
	db := newTestDB(t)
	fetcher := &fakeFetcher{
		queue: []sabnzbd.Item{
			queueItem("nzo_new", "New.Release", models.StatusQueued, 1),
		},
	}
	attempted := &models.Download{NzoID: "nzo_done", Status: models.StatusCompleted, PosterAttempted: true}
	require.NoError(t, db.CreateDownload(attempted))

	enqueuer := &recordingEnqueuer{}
	ctrl := NewSyncController(db, fetcher, enqueuer, 3, testLogger())

	_, err := ctrl.Sync(context.Background())
	require.NoError(t, err)

	d, err := db.GetDownloadByNzoID("nzo_new")
	require.NoError(t, err)
	assert.Equal(t, []uint64{d.ID}, enqueuer.ids, "only records without a lookup are handed to the matcher")
}
