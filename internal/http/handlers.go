package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/guardrails"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
	maxTrendDays    = 365
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleGenerate runs one content job and returns the package.
func (s *Server) handleGenerate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid generate request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.ProductInput) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "product_input field is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.RunTimeout)
	defer cancel()

	start := time.Now()
	pkg, err := s.generator.Run(ctx, orchestrator.Request{
		ProductInput: req.ProductInput,
		CanonicalURL: req.CanonicalURL,
		ScheduleTime: req.ScheduleTime,
	})
	if err != nil {
		outcome := orchestrator.FailureKind(err)
		switch {
		case errors.Is(err, guardrails.ErrInvalidInput):
			outcome = outcomeInvalid
		case outcome == "":
			outcome = "error"
		}
		s.metrics.RecordRun(c.Request().Context(), outcome, time.Since(start))
		return s.runFailure(c, err)
	}
	s.metrics.RecordRun(c.Request().Context(), outcomeAccepted, time.Since(start))
	return c.JSON(http.StatusCreated, pkg)
}

// runFailure maps a run error onto a status code.
func (s *Server) runFailure(c echo.Context, err error) error {
	if errors.Is(err, guardrails.ErrInvalidInput) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	body := RunFailure{Error: err.Error(), Kind: orchestrator.FailureKind(err)}
	status := http.StatusInternalServerError
	var re *orchestrator.RunError
	if errors.As(err, &re) {
		body.RunID = re.RunID
		body.Stage = string(re.Stage)
		body.Diagnostics = re.Diagnostics
		switch {
		case errors.Is(err, orchestrator.ErrDuplicateCampaign):
			status = http.StatusConflict
		case errors.Is(err, orchestrator.ErrExternalService):
			status = http.StatusBadGateway
		default:
			status = http.StatusUnprocessableEntity
		}
	}
	s.logger.Warn("run failed", zap.String("kind", body.Kind), zap.Error(err))
	return c.JSON(status, body)
}

// handleRecordMetrics scores one metric submission.
func (s *Server) handleRecordMetrics(c echo.Context) error {
	var req MetricsRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid metrics request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, err := s.learner.RecordMetrics(c.Request().Context(), req.ContentID, req.Metrics)
	switch {
	case errors.Is(err, learner.ErrEmptyContentID), errors.Is(err, learner.ErrInvalidMetrics):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("recording metrics failed", zap.String("content_id", req.ContentID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "recording metrics failed")
	}
	return c.JSON(http.StatusCreated, rec)
}

// handleStats reports the size of every collection.
func (s *Server) handleStats(c echo.Context) error {
	resp := StatsResponse{Collections: make([]vectorstore.CollectionStats, 0, len(vectorstore.Collections))}
	for _, name := range vectorstore.Collections {
		st, err := s.stats.Stats(c.Request().Context(), name)
		if err != nil {
			s.logger.Error("collection stats failed", zap.String("collection", name), zap.Error(err))
			return echo.NewHTTPError(http.StatusBadGateway, "vector store unavailable")
		}
		resp.Collections = append(resp.Collections, st)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleAnalytics aggregates the performance records of one artifact.
func (s *Server) handleAnalytics(c echo.Context) error {
	id := c.Param("content_id")
	a, err := s.learner.ContentAnalytics(c.Request().Context(), id)
	switch {
	case errors.Is(err, learner.ErrEmptyContentID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("analytics failed", zap.String("content_id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "analytics failed")
	}
	return c.JSON(http.StatusOK, a)
}

// handleTop ranks performance records. Query: content_type, limit.
func (s *Server) handleTop(c echo.Context) error {
	var t content.Type
	if raw := c.QueryParam("content_type"); raw != "" {
		parsed, err := content.ParseType(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		t = parsed
	}

	limit := defaultTopLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxTopLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 100")
		}
		limit = n
	}

	recs, err := s.learner.TopPerformers(c.Request().Context(), t, limit)
	if err != nil {
		s.logger.Error("top performers failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "top performers failed")
	}
	if recs == nil {
		recs = []learner.PerformanceRecord{}
	}
	return c.JSON(http.StatusOK, TopResponse{ContentType: t, Records: recs})
}

func (s *Server) handleTrends(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxTrendDays {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be between 1 and 365")
		}
		days = n
	}
	tr, err := s.learner.Trends(c.Request().Context(), days)
	if err != nil {
		s.logger.Error("trend analysis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "trend analysis failed")
	}
	return c.JSON(http.StatusOK, tr)
}

func (s *Server) handleInsights(c echo.Context) error {
	in, err := s.learner.Insights(c.Request().Context())
	if err != nil {
		s.logger.Error("learning insights failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "learning insights failed")
	}
	return c.JSON(http.StatusOK, in)
}

func (s *Server) handleReport(c echo.Context) error {
	r, err := s.learner.Report(c.Request().Context())
	if err != nil {
		s.logger.Error("analytics report failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "analytics report failed")
	}
	return c.JSON(http.StatusOK, r)
}
