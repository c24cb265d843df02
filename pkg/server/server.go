// Package server exposes a loaded lineage run over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/go-lineage/pkg/config"
	"github.com/soundprediction/go-lineage/pkg/export"
	"github.com/soundprediction/go-lineage/pkg/server/handlers"
)

// Server is the HTTP front end.
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	router     *gin.Engine
	httpServer *http.Server

	mu      sync.RWMutex
	dataset *export.Dataset
}

// New creates a server. Call Load before or after Setup to publish data.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		logger: logger,
	}
}

// Load replaces the served dataset.
func (s *Server) Load(ds *export.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = ds
}

// Dataset returns the served dataset, or nil before Load.
func (s *Server) Dataset() *export.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// Setup builds the router.
func (s *Server) Setup() {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	health := handlers.NewHealthHandler(func() bool { return s.Dataset() != nil })
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)

	graph := handlers.NewGraphHandler(s)
	router.GET("/graph/nodes", graph.Nodes)
	router.GET("/graph/edges", graph.Edges)
	router.GET("/snapshots", graph.Snapshots)
	router.GET("/snapshots/:year", graph.Snapshot)
	router.GET("/flagged", graph.Flagged)

	s.router = router
}

// Handler returns the router, building it if needed.
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.Setup()
	}
	return s.router
}

// Start listens until Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
