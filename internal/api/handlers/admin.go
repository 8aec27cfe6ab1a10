package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/trackarr/trackarr/internal/models"
)

// AdminHandler serves administrative operations
type AdminHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *models.Database, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		db:     db,
		logger: logger,
	}
}

// ServeHTTP handles POST /api/admin/reset-posters: clears the poster flag on
// all records so every item gets a fresh media lookup. Intended for use after
// a matching improvement; this is the only way a failed lookup is retried.
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reset, err := h.db.ResetPosterFlags()
	if err != nil {
		h.logger.WithError(err).Error("Failed to reset poster flags")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.WithField("reset", reset).Info("Poster flags reset, full re-enrichment scheduled")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"reset": reset})
}
