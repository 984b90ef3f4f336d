package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/guardrails"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader, name, key string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(key))
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return newMetrics(mp.Meter(instrumentationName), nil), reader
}

func TestMetrics_Begin(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Begin(ctx, "record_metrics")(nil)
	m.Begin(ctx, "record_metrics")(learner.ErrInvalidMetrics)
	open := m.Begin(ctx, "generate_package")

	outcomes := collectSums(t, reader, "contentfactory.mcp.tool.calls_total", "outcome")
	assert.Equal(t, map[string]int64{outcomeOK: 1, "validation_error": 1}, outcomes)

	inFlight := collectSums(t, reader, "contentfactory.mcp.tool.in_flight", "tool")
	assert.Equal(t, int64(1), inFlight["generate_package"])
	assert.Equal(t, int64(0), inFlight["record_metrics"])

	open(nil)
	inFlight = collectSums(t, reader, "contentfactory.mcp.tool.in_flight", "tool")
	assert.Equal(t, int64(0), inFlight["generate_package"])
}

func TestMetrics_Artifacts(t *testing.T) {
	m, reader := newTestMetrics(t)
	pkg := &content.Package{
		Blog:   &content.BlogArticle{ContentID: "b1"},
		Images: []content.ImageAsset{{ContentID: "i1"}, {ContentID: "i2"}},
	}
	m.Artifacts(context.Background(), pkg)
	m.Artifacts(context.Background(), nil)

	byType := collectSums(t, reader, "contentfactory.mcp.artifacts_total", "content_type")
	assert.Equal(t, int64(1), byType[string(content.TypeBlog)])
	assert.Equal(t, int64(2), byType[string(content.TypeImage)])
}

func TestOutcome(t *testing.T) {
	runErr := &orchestrator.RunError{Kind: orchestrator.ErrFatalPlanning, Err: errors.New("no brief")}
	tests := map[string]error{
		outcomeOK:            nil,
		"timeout":            context.DeadlineExceeded,
		"validation_error":   fmt.Errorf("wrapped: %w", guardrails.ErrInvalidInput),
		"duplicate_campaign": &orchestrator.RunError{Kind: orchestrator.ErrDuplicateCampaign, Err: errors.New("dup")},
		"storage_error":      retrieval.ErrUnavailable,
		"run_failed":         runErr,
		"internal_error":     errors.New("boom"),
	}
	for want, err := range tests {
		assert.Equal(t, want, outcome(err), "%v", err)
	}
}
