package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"
	"github.com/trackarr/trackarr/internal/controllers"
	"github.com/trackarr/trackarr/internal/models"
)

// DownloadResponse mirrors one download record for the presentation layer
type DownloadResponse struct {
	ID              uint64  `json:"id"`
	NzoID           string  `json:"nzo_id"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	Progress        float64 `json:"progress"`
	Speed           float64 `json:"speed"`
	SizeTotalMB     float64 `json:"size_total"`
	SizeLeftMB      float64 `json:"size_left"`
	TimeLeft        string  `json:"time_left"`
	QueuePosition   *int    `json:"queue_position"`
	Category        string  `json:"category"`
	Priority        string  `json:"priority"`
	FailureReason   string  `json:"failure_reason,omitempty"`
	MediaTitle      string  `json:"media_title,omitempty"`
	MediaType       string  `json:"media_type,omitempty"`
	Year            int     `json:"year,omitempty"`
	Season          *int    `json:"season,omitempty"`
	Episode         *int    `json:"episode,omitempty"`
	PosterURL       string  `json:"poster_url,omitempty"`
	SourceInstance  string  `json:"source_instance,omitempty"`
	PosterAttempted bool    `json:"poster_attempted"`
	CreatedAt       string  `json:"created_at"`
	CompletedAt     *string `json:"completed_at"`
}

func toResponse(d *models.Download) DownloadResponse {
	resp := DownloadResponse{
		ID:              d.ID,
		NzoID:           d.NzoID,
		Name:            d.Name,
		Status:          string(d.Status),
		Progress:        d.Progress,
		Speed:           d.Speed,
		SizeTotalMB:     d.SizeTotalMB,
		SizeLeftMB:      d.SizeLeftMB,
		TimeLeft:        d.TimeLeft,
		QueuePosition:   d.QueuePosition,
		Category:        d.Category,
		Priority:        string(d.Priority),
		FailureReason:   d.FailureReason,
		MediaTitle:      d.MediaTitle,
		MediaType:       string(d.MediaType),
		Year:            d.Year,
		Season:          d.SeasonNumber,
		Episode:         d.EpisodeNumber,
		PosterURL:       d.PosterURL,
		SourceInstance:  d.SourceInstance,
		PosterAttempted: d.PosterAttempted,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
	}
	if d.CompletedAt != nil {
		completed := d.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}

// DownloadsHandler serves download listings and priority changes
type DownloadsHandler struct {
	db           *models.Database
	priorityCtrl *controllers.PriorityController
	logger       *logrus.Logger
}

// NewDownloadsHandler creates a new downloads handler
func NewDownloadsHandler(db *models.Database, priorityCtrl *controllers.PriorityController, logger *logrus.Logger) *DownloadsHandler {
	return &DownloadsHandler{
		db:           db,
		priorityCtrl: priorityCtrl,
		logger:       logger,
	}
}

// ServeHTTP routes /api/downloads requests:
//
//	GET  /api/downloads                  all records
//	GET  /api/downloads/{status}         records for one status
//	POST /api/downloads/{id}/priority    change a queued download's priority
func (h *DownloadsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/downloads"), "/")

	switch {
	case rest == "":
		h.listAll(w, r)
	case strings.HasSuffix(rest, "/priority"):
		h.updatePriority(w, r, strings.TrimSuffix(rest, "/priority"))
	default:
		h.listByStatus(w, r, rest)
	}
}

func (h *DownloadsHandler) listAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	downloads, err := h.db.GetAllDownloads()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get downloads")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeDownloads(w, downloads)
}

func (h *DownloadsHandler) listByStatus(w http.ResponseWriter, r *http.Request, status string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch models.Status(status) {
	case models.StatusQueued, models.StatusDownloading, models.StatusCompleted, models.StatusFailed:
	default:
		http.Error(w, "Unknown status", http.StatusNotFound)
		return
	}

	downloads, err := h.db.GetDownloadsByStatus(models.Status(status))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get downloads")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeDownloads(w, downloads)
}

func (h *DownloadsHandler) updatePriority(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		http.Error(w, "Invalid download id", http.StatusBadRequest)
		return
	}

	var body struct {
		Priority string `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err = h.priorityCtrl.UpdatePriority(r.Context(), id, body.Priority)
	if err != nil {
		var rejection *controllers.PriorityRejection
		switch {
		case errors.Is(err, models.ErrUnknownPriority):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, bolthold.ErrNotFound):
			http.Error(w, "Download not found", http.StatusNotFound)
		case errors.As(err, &rejection):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{
				"error":  "priority change rejected",
				"status": string(rejection.Status),
				"reason": rejection.Reason,
			})
		default:
			h.logger.WithError(err).Error("Failed to update priority")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeDownloads(w http.ResponseWriter, downloads []*models.Download) {
	responses := make([]DownloadResponse, 0, len(downloads))
	for _, d := range downloads {
		responses = append(responses, toResponse(d))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}
