package arr

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/trackarr/trackarr/internal/config"
	"github.com/trackarr/trackarr/internal/models"
)

// Manager routes metadata lookups to the instance configured for a category
type Manager struct {
	clients []*Client
	logger  *logrus.Logger
}

// NewManager creates clients for all configured Radarr and Sonarr instances
func NewManager(cfg *config.Config, logger *logrus.Logger) *Manager {
	m := &Manager{logger: logger}

	for _, inst := range cfg.Radarr {
		m.clients = append(m.clients, NewClient(
			inst.Name, inst.URL, inst.APIKey, inst.Category,
			models.MediaTypeMovie, cfg.MinMatchScore, logger,
		))
	}
	for _, inst := range cfg.Sonarr {
		m.clients = append(m.clients, NewClient(
			inst.Name, inst.URL, inst.APIKey, inst.Category,
			models.MediaTypeTV, cfg.MinMatchScore, logger,
		))
	}

	return m
}

// Search routes a lookup to the instance handling the given category.
// A category with no configured instance is not an error, just no match.
func (m *Manager) Search(ctx context.Context, category, title string, year int) (*Match, error) {
	if category == "" {
		return nil, nil
	}

	for _, client := range m.clients {
		if client.Category() == category {
			return client.Search(ctx, title, year)
		}
	}

	m.logger.WithField("category", category).Debug("No metadata instance for category")
	return nil, nil
}
