package http

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/contentfactory/internal/http"

// Run outcomes recorded by RecordRun besides the failure kinds.
const (
	outcomeAccepted = "accepted"
	outcomeInvalid  = "invalid_input"
)

// Metrics records request and package-run instruments. Instruments that
// failed to register are nil and skipped.
type Metrics struct {
	logger *zap.Logger

	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter

	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{logger: logger}
	warn := func(name string, err error) {
		if err != nil {
			m.logger.Warn("failed to create instrument", zap.String("name", name), zap.Error(err))
		}
	}

	var err error
	m.requests, err = meter.Int64Counter("contentfactory.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status class"),
		metric.WithUnit("{request}"))
	warn("requests_total", err)

	m.latency, err = meter.Float64Histogram("contentfactory.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency by method, route and status class"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 600))
	warn("request_duration_seconds", err)

	m.inFlight, err = meter.Int64UpDownCounter("contentfactory.http.in_flight_requests",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"))
	warn("in_flight_requests", err)

	m.runs, err = meter.Int64Counter("contentfactory.http.package_runs_total",
		metric.WithDescription("Package runs started over HTTP, by outcome (accepted or a failure kind)"),
		metric.WithUnit("{run}"))
	warn("package_runs_total", err)

	// Runs call a model several times per stage, so buckets reach minutes.
	m.runDuration, err = meter.Float64Histogram("contentfactory.http.package_run_duration_seconds",
		metric.WithDescription("Wall time of package runs started over HTTP"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600))
	warn("package_run_duration_seconds", err)

	return m
}

// Middleware records every request. Routes are labelled by their pattern
// (/api/v1/analytics/:content_id), so ids never become label values.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)
			if err != nil {
				// Let echo write the error so the status below is final.
				c.Error(err)
			}

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeLabel(c.Path())),
				attribute.String("status_class", statusClass(c.Response().Status)),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.latency != nil {
				m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			return nil
		}
	}
}

// RecordRun records one finished package run.
func (m *Metrics) RecordRun(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.runs != nil {
		m.runs.Add(ctx, 1, attrs)
	}
	if m.runDuration != nil {
		m.runDuration.Record(ctx, d.Seconds(), attrs)
	}
}

// routeLabel maps unmatched requests to one label.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
