package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 7)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if id := RunIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("run.id", id))
	}
	if stage := StageFromContext(ctx); stage != "" {
		fields = append(fields, zap.String("stage", stage))
	}
	if agent := AgentFromContext(ctx); agent != "" {
		fields = append(fields, zap.String("agent", agent))
	}
	if id := ContentIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("content.id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}

	return fields
}

type runCtxKey struct{}
type stageCtxKey struct{}
type agentCtxKey struct{}
type requestCtxKey struct{}
type contentCtxKey struct{}

// WithRunID tags the context with the orchestration run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext returns the run id, or "".
func RunIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(runCtxKey{}).(string)
	return s
}

// WithStage tags the context with the current controller stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageCtxKey{}, stage)
}

// StageFromContext returns the stage name, or "".
func StageFromContext(ctx context.Context) string {
	s, _ := ctx.Value(stageCtxKey{}).(string)
	return s
}

// WithAgent tags the context with the agent making the call.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentCtxKey{}, agent)
}

// AgentFromContext returns the agent name, or "".
func AgentFromContext(ctx context.Context) string {
	s, _ := ctx.Value(agentCtxKey{}).(string)
	return s
}

// WithRequestID tags the context with an inbound request id (HTTP, NATS, MCP).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestCtxKey{}).(string)
	return s
}

// WithContentID tags the context with the artifact being worked on.
func WithContentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contentCtxKey{}, id)
}

// ContentIDFromContext returns the content id, or "".
func ContentIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(contentCtxKey{}).(string)
	return s
}
