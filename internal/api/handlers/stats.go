package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/trackarr/trackarr/internal/models"
)

// StatsHandler serves aggregate download statistics
type StatsHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(db *models.Database, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		db:     db,
		logger: logger,
	}
}

// StatsResponse represents the stats response
type StatsResponse struct {
	Queued      int     `json:"queued"`
	Downloading int     `json:"downloading"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	TotalSpeed  float64 `json:"total_speed"` // MB/s across downloading items
}

// ServeHTTP handles the stats endpoint
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := StatsResponse{}
	counts := map[models.Status]*int{
		models.StatusQueued:    &response.Queued,
		models.StatusCompleted: &response.Completed,
		models.StatusFailed:    &response.Failed,
	}
	for status, dst := range counts {
		count, err := h.db.CountByStatus(status)
		if err != nil {
			h.logger.WithError(err).Error("Failed to count downloads")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		*dst = count
	}

	downloading, err := h.db.GetDownloadsByStatus(models.StatusDownloading)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get active downloads")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	response.Downloading = len(downloading)
	for _, d := range downloading {
		response.TotalSpeed += d.Speed
	}
	response.TotalSpeed = math.Round(response.TotalSpeed*100) / 100

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
