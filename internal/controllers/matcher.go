package controllers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
	"github.com/trackarr/trackarr/internal/metrics"
	"github.com/trackarr/trackarr/internal/models"
	"github.com/trackarr/trackarr/internal/services/arr"
	"github.com/trackarr/trackarr/internal/utils"
)

const lookupTimeout = 30 * time.Second

// LibrarySearcher routes a metadata lookup to a category's library instance
type LibrarySearcher interface {
	Search(ctx context.Context, category, title string, year int) (*arr.Match, error)
}

// Matcher enriches download records with media metadata in the background.
// Lookups run with bounded concurrency and at most one in flight per record;
// a failed lookup is recorded and never retried until an explicit reset.
type Matcher struct {
	db      *models.Database
	library LibrarySearcher
	logger  *logrus.Logger

	sem chan struct{}
	wg  sync.WaitGroup

	mu       sync.Mutex
	inflight map[uint64]struct{}
}

// NewMatcher creates a new matcher with the given concurrency bound
func NewMatcher(db *models.Database, library LibrarySearcher, maxConcurrent int, logger *logrus.Logger) *Matcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Matcher{
		db:       db,
		library:  library,
		logger:   logger,
		sem:      make(chan struct{}, maxConcurrent),
		inflight: make(map[uint64]struct{}),
	}
}

// Enqueue schedules a background enrichment for a record. Returns false when
// nothing was scheduled: the record already had its lookup, or one is in
// flight right now.
func (m *Matcher) Enqueue(d *models.Download) bool {
	if d.PosterAttempted {
		return false
	}

	m.mu.Lock()
	if _, busy := m.inflight[d.ID]; busy {
		m.mu.Unlock()
		return false
	}
	m.inflight[d.ID] = struct{}{}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.enrich(d.ID, d.Name, d.Category)
	return true
}

// Wait blocks until all in-flight enrichments have finished
func (m *Matcher) Wait() {
	m.wg.Wait()
}

func (m *Matcher) enrich(id uint64, name, category string) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.inflight, id)
		m.mu.Unlock()
	}()

	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	parsed := utils.ParseRelease(name)
	season := firstOrNil(parsed.Seasons)
	episode := firstOrNil(parsed.Episodes)

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	match, err := m.library.Search(ctx, category, parsed.Title, parsed.Year)
	if err != nil {
		m.logger.WithError(err).WithFields(logrus.Fields{
			"id":    id,
			"title": parsed.Title,
		}).Warn("Media lookup failed")
		metrics.EnrichmentLookups.WithLabelValues("error").Inc()
	}

	// Load-and-write in one transaction: sync owns the status fields and may
	// commit them while the lookup is running. Only the media fields change here.
	dbErr := m.db.MutateDownload(id, func(d *models.Download) bool {
		d.PosterAttempted = true
		if match != nil {
			d.MediaTitle = match.Title
			d.MediaType = match.Type
			d.Year = match.Year
			d.SeasonNumber = season
			d.EpisodeNumber = episode
			d.PosterURL = match.PosterURL
			d.SourceInstance = match.Instance
		}
		return true
	})
	if dbErr != nil {
		// Not-found means the record was cancelled while the lookup ran
		if !errors.Is(dbErr, bolthold.ErrNotFound) {
			m.logger.WithError(dbErr).WithField("id", id).Error("Failed to save enrichment result")
		}
		return
	}

	if match != nil {
		metrics.EnrichmentLookups.WithLabelValues("matched").Inc()
		m.logger.WithFields(logrus.Fields{
			"id":       id,
			"title":    match.Title,
			"instance": match.Instance,
		}).Info("Media match found")
	} else if err == nil {
		metrics.EnrichmentLookups.WithLabelValues("unmatched").Inc()
	}
}

// firstOrNil collapses the parser's collection-valued season/episode output
// to a single optional number: empty means none, multi-episode releases keep
// the first. Downstream code never sees a list, so a list can never reach
// the store.
func firstOrNil(values []int) *int {
	if len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
