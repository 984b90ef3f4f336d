package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/guardrails"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/contentfactory/internal/mcp"

// outcomeOK labels a call that returned no error.
const outcomeOK = "ok"

// Metrics records tool calls.
type Metrics struct {
	calls     metric.Int64Counter
	duration  metric.Float64Histogram
	inFlight  metric.Int64UpDownCounter
	artifacts metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	check := func(name string, err error) {
		if err != nil {
			logger.Warn("failed to create instrument", zap.String("name", name), zap.Error(err))
		}
	}
	var (
		m   Metrics
		err error
	)
	m.calls, err = meter.Int64Counter("contentfactory.mcp.tool.calls_total",
		metric.WithDescription("MCP tool calls by tool and outcome (ok or an error reason)"),
		metric.WithUnit("{call}"))
	check("calls_total", err)

	m.duration, err = meter.Float64Histogram("contentfactory.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.25, 1, 5, 30, 120, 600))
	check("duration_seconds", err)

	m.inFlight, err = meter.Int64UpDownCounter("contentfactory.mcp.tool.in_flight",
		metric.WithDescription("MCP tool calls being served"),
		metric.WithUnit("{call}"))
	check("in_flight", err)

	m.artifacts, err = meter.Int64Counter("contentfactory.mcp.artifacts_total",
		metric.WithDescription("Artifacts returned by generate_package, by content type"),
		metric.WithUnit("{artifact}"))
	check("artifacts_total", err)

	return &m
}

// Begin marks a call in flight. The returned func ends it with the call's
// error.
func (m *Metrics) Begin(ctx context.Context, tool string) func(error) {
	start := time.Now()
	toolAttr := attribute.String("tool", tool)
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, metric.WithAttributes(toolAttr))
	}
	return func(err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, metric.WithAttributes(toolAttr))
		}
		attrs := metric.WithAttributes(toolAttr, attribute.String("outcome", outcome(err)))
		if m.calls != nil {
			m.calls.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
	}
}

// Artifacts counts the artifacts of one generated package.
func (m *Metrics) Artifacts(ctx context.Context, pkg *content.Package) {
	if m.artifacts == nil || pkg == nil {
		return
	}
	for _, a := range pkg.Artifacts() {
		m.artifacts.Add(ctx, 1, metric.WithAttributes(attribute.String("content_type", string(a.Kind()))))
	}
}

// outcome maps err onto a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, guardrails.ErrInvalidInput),
		errors.Is(err, learner.ErrInvalidMetrics),
		errors.Is(err, learner.ErrEmptyContentID),
		errors.Is(err, retrieval.ErrEmptyQuery),
		errors.Is(err, retrieval.ErrInvalidQuery),
		errors.Is(err, vectorstore.ErrInvalidCollectionName):
		return "validation_error"
	case errors.Is(err, orchestrator.ErrDuplicateCampaign):
		return "duplicate_campaign"
	case errors.Is(err, retrieval.ErrUnavailable), errors.Is(err, orchestrator.ErrExternalService):
		return "storage_error"
	case orchestrator.FailureKind(err) != "":
		return "run_failed"
	default:
		return "internal_error"
	}
}
