package models

import (
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// CreateDownload creates a new download record
func (db *Database) CreateDownload(d *Download) error {
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), d)
}

// MutateDownload loads a download, applies fn and writes it back in one
// transaction. fn reports whether it changed the record; an unchanged record
// is not written. Concurrent writers each own disjoint fields, so mutating a
// freshly loaded record inside the transaction never reverts another writer's
// committed fields the way a read-modify-write over a stale copy would.
func (db *Database) MutateDownload(id uint64, fn func(d *Download) bool) error {
	return db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var d Download
		if err := db.store.TxGet(tx, id, &d); err != nil {
			return err
		}
		if !fn(&d) {
			return nil
		}
		d.UpdatedAt = time.Now()
		return db.store.TxUpdate(tx, id, &d)
	})
}

// GetDownloadByID retrieves a download by its synthetic ID
func (db *Database) GetDownloadByID(id uint64) (*Download, error) {
	var d Download
	if err := db.store.Get(id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDownloadByNzoID retrieves a download by its SABnzbd NZO ID
func (db *Database) GetDownloadByNzoID(nzoID string) (*Download, error) {
	var d Download
	if err := db.store.FindOne(&d, bolthold.Where("NzoID").Eq(nzoID)); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetAllDownloads retrieves all download records
func (db *Database) GetAllDownloads() ([]*Download, error) {
	var downloads []*Download
	err := db.store.Find(&downloads, nil)
	return downloads, err
}

// GetDownloadsByStatus retrieves all downloads with a specific status
func (db *Database) GetDownloadsByStatus(status Status) ([]*Download, error) {
	var downloads []*Download
	err := db.store.Find(&downloads, bolthold.Where("Status").Eq(status))
	return downloads, err
}

// CountByStatus counts downloads with a specific status
func (db *Database) CountByStatus(status Status) (int, error) {
	return db.store.Count(&Download{}, bolthold.Where("Status").Eq(status))
}

// GetActiveDownloads retrieves all non-terminal downloads (queued or downloading)
func (db *Database) GetActiveDownloads() ([]*Download, error) {
	var downloads []*Download
	err := db.store.Find(&downloads, bolthold.Where("Status").In(StatusQueued, StatusDownloading))
	return downloads, err
}

// GetUnmatchedDownloads retrieves downloads that have not had a media lookup yet
func (db *Database) GetUnmatchedDownloads() ([]*Download, error) {
	var downloads []*Download
	err := db.store.Find(&downloads, bolthold.Where("PosterAttempted").Eq(false))
	return downloads, err
}

// DeleteDownload deletes a download record by ID
func (db *Database) DeleteDownload(id uint64) error {
	return db.store.Delete(id, &Download{})
}

// ResetPosterFlags clears PosterAttempted on all records so the matcher will
// retry every item. This is the only path that flips the flag back to false.
func (db *Database) ResetPosterFlags() (int, error) {
	reset := 0
	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var downloads []*Download
		if err := db.store.TxFind(tx, &downloads, bolthold.Where("PosterAttempted").Eq(true)); err != nil {
			return err
		}

		for _, d := range downloads {
			d.PosterAttempted = false
			d.UpdatedAt = time.Now()
			if err := db.store.TxUpdate(tx, d.ID, d); err != nil {
				return err
			}
		}
		reset = len(downloads)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reset, nil
}

// DeleteTerminalOlderThan deletes completed and failed downloads whose
// CompletedAt is before the cutoff, in a single transaction. Returns the
// number of records removed and the number of terminal records kept.
func (db *Database) DeleteTerminalOlderThan(cutoff time.Time) (removed int, kept int, err error) {
	err = db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var terminal []*Download
		if err := db.store.TxFind(tx, &terminal,
			bolthold.Where("Status").In(StatusCompleted, StatusFailed)); err != nil {
			return err
		}

		for _, d := range terminal {
			if d.CompletedAt != nil && d.CompletedAt.Before(cutoff) {
				if err := db.store.TxDelete(tx, d.ID, &Download{}); err != nil {
					return err
				}
				removed++
			} else {
				kept++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return removed, kept, nil
}
