package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fyrsmithlabs/contentfactory/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "contentfactory", cfg.ServiceName)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.NoError(t, cfg.Validate())
}

func TestFromObservability(t *testing.T) {
	cfg := FromObservability(config.ObservabilityConfig{
		EnableTelemetry: true,
		ServiceName:     "cf-staging",
		OTLPEndpoint:    "otel.internal:4318",
		OTLPProtocol:    "http/protobuf",
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "cf-staging", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.False(t, cfg.Insecure)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Endpoint = "" }, ""},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"missing service", func(c *Config) { c.ServiceName = "" }, "service_name is required"},
		{"bad protocol", func(c *Config) { c.Protocol = "udp" }, "protocol must be"},
		{"insecure remote", func(c *Config) { c.Endpoint = "collector.example.com:4317" }, "insecure connections"},
		{"sampling too high", func(c *Config) { c.SamplingRate = 1.5 }, "sampling rate"},
		{"zero export interval", func(c *Config) { c.ExportInterval = 0 }, "export interval"},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown timeout"},
		{"secure remote", func(c *Config) { c.Endpoint = "collector.example.com:4317"; c.Insecure = false }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"127.0.0.1:4317", true},
		{"127.0.0.2", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"http://localhost:4318", true},
		{"collector.example.com:4317", false},
		{"10.0.0.5:4317", false},
	}
	for _, tt := range tests {
		cfg := &Config{Endpoint: tt.endpoint}
		assert.Equal(t, tt.want, cfg.isLocalEndpoint(), tt.endpoint)
	}
}

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()
	res := newResource(cfg)

	var found bool
	for _, attr := range res.Attributes() {
		if string(attr.Key) == "service.name" {
			assert.Equal(t, "contentfactory", attr.Value.AsString())
			found = true
		}
	}
	assert.True(t, found, "service.name attribute not found")
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NotNil(t, tel.LoggerProvider())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_UsesOwnTracerProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tel := &Telemetry{
		config:         NewDefaultConfig(),
		tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(recorder)),
	}

	_, span := tel.Tracer("contentfactory.test").Start(context.Background(), "orchestrator.Run")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "orchestrator.Run", ended[0].Name())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestTelemetry_Degraded(t *testing.T) {
	tel := &Telemetry{config: NewDefaultConfig()}
	tel.setDegraded("meter provider failed: %v", "dial error")

	h := tel.Health()
	assert.True(t, h.Healthy)
	assert.True(t, h.Degraded)
	assert.Equal(t, []string{"meter provider failed: dial error"}, h.Problems)
}
