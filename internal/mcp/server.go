package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// Generator runs one content job.
type Generator interface {
	Run(ctx context.Context, req orchestrator.Request) (*content.Package, error)
}

// Recorder stores metric submissions and reports on them.
type Recorder interface {
	RecordMetrics(ctx context.Context, contentID string, m learner.Metrics) (*learner.PerformanceRecord, error)
	Trends(ctx context.Context, days int) (*learner.Trends, error)
	Insights(ctx context.Context) (*learner.Insights, error)
	Report(ctx context.Context) (*learner.Report, error)
}

// Retriever answers similarity queries.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]vectorstore.Match, error)
	CheckDuplicate(ctx context.Context, input string, threshold float32) (retrieval.DuplicateCheck, error)
}

// Server is an MCP server backed by the contentfactory services.
type Server struct {
	mcp       *mcp.Server
	generator Generator
	recorder  Recorder
	retriever Retriever
	metrics   *Metrics
	config    *Config
	logger    *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "contentfactory")
	Name string

	// Version is the server version (default: "1.0.0")
	Version string

	// DuplicateThreshold applies when check_duplicate omits one (default: 0.95)
	DuplicateThreshold float32

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:               "contentfactory",
		Version:            "1.0.0",
		DuplicateThreshold: 0.95,
		Logger:             zap.NewNop(),
	}
}

// NewServer creates a new MCP server with the given services.
func NewServer(cfg *Config, generator Generator, recorder Recorder, retriever Retriever) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = 0.95
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("recorder is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:       mcpServer,
		generator: generator,
		recorder:  recorder,
		retriever: retriever,
		metrics:   NewMetrics(cfg.Logger),
		config:    cfg,
		logger:    cfg.Logger,
	}

	s.registerTools()

	return s, nil
}

// MCP returns the underlying SDK server, for custom transports.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
