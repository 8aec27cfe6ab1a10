package controllers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/trackarr/trackarr/internal/models"
)

// PrioritySetter pushes a priority change to the download client
type PrioritySetter interface {
	SetPriority(ctx context.Context, nzoID string, code int) error
}

// PriorityRejection is returned when a priority change is not allowed for a
// record's current state or was refused by the download client. No local
// mutation happens on rejection.
type PriorityRejection struct {
	ID     uint64
	Status models.Status
	Reason string
}

func (e *PriorityRejection) Error() string {
	return fmt.Sprintf("priority change rejected for download %d (%s): %s", e.ID, e.Status, e.Reason)
}

// PriorityController handles user-issued priority changes
type PriorityController struct {
	db     *models.Database
	client PrioritySetter
	logger *logrus.Logger
}

// NewPriorityController creates a new priority controller
func NewPriorityController(db *models.Database, client PrioritySetter, logger *logrus.Logger) *PriorityController {
	return &PriorityController{
		db:     db,
		client: client,
		logger: logger,
	}
}

// UpdatePriority translates a label to the SABnzbd code, pushes it to the
// download client and optimistically updates the local record. Only queued
// downloads can be reprioritized. The next sync cycle is the source of truth
// and may overwrite the optimistic value.
func (c *PriorityController) UpdatePriority(ctx context.Context, id uint64, label string) error {
	priority, err := models.ParsePriority(label)
	if err != nil {
		return err
	}

	d, err := c.db.GetDownloadByID(id)
	if err != nil {
		return fmt.Errorf("download %d not found: %w", id, err)
	}

	if d.Status != models.StatusQueued {
		return &PriorityRejection{
			ID:     id,
			Status: d.Status,
			Reason: "only queued downloads can be reprioritized",
		}
	}

	code, err := priority.Code()
	if err != nil {
		return err
	}

	if err := c.client.SetPriority(ctx, d.NzoID, code); err != nil {
		return &PriorityRejection{
			ID:     id,
			Status: d.Status,
			Reason: err.Error(),
		}
	}

	// Reload inside the write transaction: sync may have advanced the record
	// while the client call was in flight, and only the priority changes here
	if err := c.db.MutateDownload(id, func(rec *models.Download) bool {
		rec.Priority = priority
		return true
	}); err != nil {
		return fmt.Errorf("failed to save priority: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"id":       id,
		"nzo_id":   d.NzoID,
		"priority": priority,
	}).Info("Priority updated")
	return nil
}
