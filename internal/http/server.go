// Package http provides the HTTP API for contentfactory.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// Generator runs one content job.
type Generator interface {
	Run(ctx context.Context, req orchestrator.Request) (*content.Package, error)
}

// Learner records metrics and answers analytics queries.
type Learner interface {
	RecordMetrics(ctx context.Context, contentID string, m learner.Metrics) (*learner.PerformanceRecord, error)
	ContentAnalytics(ctx context.Context, contentID string) (*learner.Analytics, error)
	TopPerformers(ctx context.Context, t content.Type, limit int) ([]learner.PerformanceRecord, error)
	Trends(ctx context.Context, days int) (*learner.Trends, error)
	Insights(ctx context.Context) (*learner.Insights, error)
	Report(ctx context.Context) (*learner.Report, error)
}

// StatsSource reports collection sizes.
type StatsSource interface {
	Stats(ctx context.Context, collection string) (vectorstore.CollectionStats, error)
}

// Server provides HTTP endpoints for contentfactory.
type Server struct {
	echo      *echo.Echo
	generator Generator
	learner   Learner
	stats     StatsSource
	metrics   *Metrics
	logger    *zap.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RunTimeout bounds one POST /api/v1/packages request. Default: 10m
	RunTimeout time.Duration
}

// NewServer creates a new HTTP server.
func NewServer(generator Generator, lrn Learner, stats StatsSource, logger *zap.Logger, cfg *Config) (*Server, error) {
	if generator == nil || lrn == nil || stats == nil {
		return nil, fmt.Errorf("generator, learner and stats source are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	metrics := NewMetrics(logger)
	e.Use(metrics.Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:      e,
		generator: generator,
		learner:   lrn,
		stats:     stats,
		metrics:   metrics,
		logger:    logger,
		config:    cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/packages", s.handleGenerate)
	v1.POST("/metrics", s.handleRecordMetrics)
	v1.GET("/stats", s.handleStats)
	v1.GET("/analytics/:content_id", s.handleAnalytics)
	v1.GET("/top", s.handleTop)
	v1.GET("/trends", s.handleTrends)
	v1.GET("/insights", s.handleInsights)
	v1.GET("/report", s.handleReport)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
