// Package api exposes the scoring queue, score submission, stats and the
// ingestion trigger over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/pipeline"
)

// ScoreApplier persists externally computed AI scores and notifies matches.
type ScoreApplier interface {
	ApplyAIScores(ctx context.Context, scores []model.AIScore) (pipeline.ApplyReport, error)
}

// CycleStarter starts an ingestion cycle in the background.
type CycleStarter interface {
	StartCycle(ctx context.Context) error
}

// Config holds the API's scoring settings.
type Config struct {
	KeywordThreshold float64
	DefaultLimit     int
}

// Server serves the HTTP API.
type Server struct {
	store   model.Store
	scores  ScoreApplier
	starter CycleStarter
	profile model.Profile
	cfg     Config
	logger  *slog.Logger

	// baseCtx outlives requests; triggered cycles run under it.
	baseCtx context.Context
}

// NewServer creates the API server. starter may be nil, in which case the
// trigger endpoint answers 503.
func NewServer(ctx context.Context, store model.Store, scores ScoreApplier, starter CycleStarter, profile model.Profile, cfg Config, logger *slog.Logger) *Server {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	return &Server{
		store:   store,
		scores:  scores,
		starter: starter,
		profile: profile,
		cfg:     cfg,
		logger:  logger,
		baseCtx: ctx,
	}
}

// Handler returns the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.health)

	api := r.Group("/api")
	api.GET("/jobs/pending", s.pendingJobs)
	api.POST("/jobs/scores", s.submitScores)
	api.GET("/stats", s.stats)
	api.POST("/trigger-scrape", s.triggerScrape)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down api")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("api request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
