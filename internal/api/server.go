package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/trackarr/trackarr/internal/api/handlers"
	"github.com/trackarr/trackarr/internal/api/middleware"
	"github.com/trackarr/trackarr/internal/config"
	"github.com/trackarr/trackarr/internal/controllers"
	"github.com/trackarr/trackarr/internal/models"
)

// Server represents the HTTP server
type Server struct {
	server       *http.Server
	db           *models.Database
	priorityCtrl *controllers.PriorityController
	logger       *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, priorityCtrl *controllers.PriorityController, logger *logrus.Logger) *Server {
	s := &Server{
		db:           db,
		priorityCtrl: priorityCtrl,
		logger:       logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	healthHandler := handlers.NewHealthHandler(s.db, s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	downloadsHandler := handlers.NewDownloadsHandler(s.db, s.priorityCtrl, s.logger)
	mux.HandleFunc("/api/downloads", downloadsHandler.ServeHTTP)
	mux.HandleFunc("/api/downloads/", downloadsHandler.ServeHTTP)

	statsHandler := handlers.NewStatsHandler(s.db, s.logger)
	mux.HandleFunc("/api/stats", statsHandler.ServeHTTP)

	adminHandler := handlers.NewAdminHandler(s.db, s.logger)
	mux.HandleFunc("/api/admin/reset-posters", adminHandler.ServeHTTP)

	mux.Handle("/metrics", promhttp.Handler())
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
