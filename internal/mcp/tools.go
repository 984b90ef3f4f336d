package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

const (
	maxRetrieveK = 50
	maxTrendDays = 365
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerGenerateTool()
	s.registerMetricsTool()
	s.registerAnalyticsTools()
	s.registerRetrievalTools()
}

// track records invocation metrics; call the returned func with the tool error.
func (s *Server) track(ctx context.Context, tool string) func(error) {
	end := s.metrics.Begin(ctx, tool)
	return func(err error) {
		end(err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
		}
	}
}

// ===== GENERATION =====

type generatePackageInput struct {
	ProductInput string `json:"product_input" jsonschema:"Free-form product description the package is built from"`
	CanonicalURL string `json:"canonical_url,omitempty" jsonschema:"Absolute http(s) URL the posts link to"`
	ScheduleTime string `json:"schedule_time,omitempty" jsonschema:"RFC 3339 time to hand the package to the publish hook"`
}

type diagnosticOutput struct {
	Kind         string `json:"kind"`
	Stage        string `json:"stage"`
	ArtifactType string `json:"artifact_type,omitempty"`
	ContentID    string `json:"content_id,omitempty"`
	Message      string `json:"message"`
}

type generatePackageOutput struct {
	RunID         string             `json:"run_id"`
	ProductName   string             `json:"product_name"`
	ContentIDs    []string           `json:"content_ids"`
	Duplicate     bool               `json:"duplicate"`
	PublishStatus string             `json:"publish_status,omitempty"`
	Diagnostics   []diagnosticOutput `json:"diagnostics"`
}

func (s *Server) registerGenerateTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "generate_package",
		Description: "Generate a content package (blog, X and LinkedIn posts, images) from a product description",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args generatePackageInput) (*mcp.CallToolResult, generatePackageOutput, error) {
		var toolErr error
		done := s.track(ctx, "generate_package")
		defer func() { done(toolErr) }()

		runReq := orchestrator.Request{ProductInput: args.ProductInput, CanonicalURL: args.CanonicalURL}
		if args.ScheduleTime != "" {
			at, err := time.Parse(time.RFC3339, args.ScheduleTime)
			if err != nil {
				toolErr = fmt.Errorf("invalid schedule_time: %w", err)
				return nil, generatePackageOutput{}, toolErr
			}
			runReq.ScheduleTime = &at
		}

		pkg, err := s.generator.Run(ctx, runReq)
		if err != nil {
			toolErr = err
			if kind := orchestrator.FailureKind(err); kind != "" {
				return nil, generatePackageOutput{}, fmt.Errorf("generate package failed (%s): %w", kind, err)
			}
			return nil, generatePackageOutput{}, fmt.Errorf("generate package failed: %w", err)
		}

		s.metrics.Artifacts(ctx, pkg)
		out := generatePackageOutput{
			RunID:       pkg.RunID,
			ProductName: pkg.Brief.ProductName,
			ContentIDs:  []string{},
			Duplicate:   pkg.Duplicate != nil,
			Diagnostics: diagnostics(pkg.Diagnostics),
		}
		for _, a := range pkg.Artifacts() {
			out.ContentIDs = append(out.ContentIDs, a.ID())
		}
		if pkg.Publish != nil {
			out.PublishStatus = pkg.Publish.Status
		}

		full, err := json.MarshalIndent(pkg, "", "  ")
		if err != nil {
			toolErr = fmt.Errorf("marshal package: %w", err)
			return nil, generatePackageOutput{}, toolErr
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Generated %d artifacts for %s (run %s)", len(out.ContentIDs), out.ProductName, out.RunID)},
				&mcp.TextContent{Text: string(full)},
			},
		}, out, nil
	})
}

func diagnostics(in []content.Diagnostic) []diagnosticOutput {
	out := make([]diagnosticOutput, 0, len(in))
	for _, d := range in {
		out = append(out, diagnosticOutput{
			Kind:         d.Kind,
			Stage:        d.Stage,
			ArtifactType: string(d.ArtifactType),
			ContentID:    d.ContentID,
			Message:      d.Message,
		})
	}
	return out
}

// ===== LEARNING =====

type recordMetricsInput struct {
	ContentID   string `json:"content_id" jsonschema:"Id of the published artifact, e.g. seedance_x_dev_1"`
	Reach       int    `json:"reach,omitempty" jsonschema:"Accounts reached"`
	Likes       int    `json:"likes,omitempty"`
	Comments    int    `json:"comments,omitempty"`
	Shares      int    `json:"shares,omitempty"`
	Conversions int    `json:"conversions,omitempty" jsonschema:"Tracked link conversions"`
	Sentiment   string `json:"sentiment,omitempty" jsonschema:"positive, neutral or negative (default neutral)"`
}

type recordMetricsOutput struct {
	RecordID        string  `json:"record_id"`
	Score           float64 `json:"score"`
	EngagementRate  float64 `json:"engagement_rate"`
	Promoted        bool    `json:"promoted"`
	AlreadyPromoted bool    `json:"already_promoted"`
	Reason          string  `json:"reason,omitempty"`
}

func (s *Server) registerMetricsTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "record_metrics",
		Description: "Record post-publication metrics for an artifact; high scorers become style examples",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args recordMetricsInput) (*mcp.CallToolResult, recordMetricsOutput, error) {
		var toolErr error
		done := s.track(ctx, "record_metrics")
		defer func() { done(toolErr) }()

		rec, err := s.recorder.RecordMetrics(ctx, args.ContentID, learner.Metrics{
			Reach:       args.Reach,
			Likes:       args.Likes,
			Comments:    args.Comments,
			Shares:      args.Shares,
			Conversions: args.Conversions,
			Sentiment:   learner.Sentiment(strings.ToLower(args.Sentiment)),
		})
		if err != nil {
			toolErr = fmt.Errorf("record metrics failed: %w", err)
			return nil, recordMetricsOutput{}, toolErr
		}

		out := recordMetricsOutput{RecordID: rec.ID, Score: rec.Score, EngagementRate: rec.EngagementRate}
		if p := rec.Promotion; p != nil {
			out.Promoted = p.Promoted
			out.AlreadyPromoted = p.AlreadyPromoted
			out.Reason = p.Reason
		}
		text := fmt.Sprintf("Recorded %s: score %.2f", rec.ContentID, rec.Score)
		if out.Promoted {
			text += ", promoted to style examples"
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, out, nil
	})
}

type analyzeTrendsInput struct {
	Days int `json:"days,omitempty" jsonschema:"Window in days (default 30, max 365)"`
}

type emptyInput struct{}

func (s *Server) registerAnalyticsTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze_trends",
		Description: "Count the content created per type over recent days and average its performance",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args analyzeTrendsInput) (*mcp.CallToolResult, *learner.Trends, error) {
		var toolErr error
		done := s.track(ctx, "analyze_trends")
		defer func() { done(toolErr) }()

		if args.Days < 0 || args.Days > maxTrendDays {
			toolErr = fmt.Errorf("days must be at most %d", maxTrendDays)
			return nil, nil, toolErr
		}
		tr, err := s.recorder.Trends(ctx, args.Days)
		if err != nil {
			toolErr = fmt.Errorf("analyze trends failed: %w", err)
			return nil, nil, toolErr
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("%d artifacts from %d runs in the last %d days", tr.TotalContent, tr.Runs, tr.PeriodDays),
			}},
		}, tr, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "learning_insights",
		Description: "Describe high performing patterns, weak content types and recommended next steps",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, *learner.Insights, error) {
		var toolErr error
		done := s.track(ctx, "learning_insights")
		defer func() { done(toolErr) }()

		in, err := s.recorder.Insights(ctx)
		if err != nil {
			toolErr = fmt.Errorf("learning insights failed: %w", err)
			return nil, nil, toolErr
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("%d patterns, %d recommendations", len(in.Patterns), len(in.Recommendations)),
			}},
		}, in, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analytics_report",
		Description: "Export collection statistics, trends, top performers and insights in one report",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, *learner.Report, error) {
		var toolErr error
		done := s.track(ctx, "analytics_report")
		defer func() { done(toolErr) }()

		r, err := s.recorder.Report(ctx)
		if err != nil {
			toolErr = fmt.Errorf("analytics report failed: %w", err)
			return nil, nil, toolErr
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Report generated at " + r.GeneratedAt.Format(time.RFC3339)}},
		}, r, nil
	})
}

// ===== RETRIEVAL =====

type retrieveContextInput struct {
	Text          string  `json:"text" jsonschema:"Query text"`
	Collection    string  `json:"collection,omitempty" jsonschema:"history, knowledge_base, style_examples, brand_assets or performance (default knowledge_base)"`
	K             int     `json:"k,omitempty" jsonschema:"Maximum results (default 5, max 50)"`
	MinSimilarity float64 `json:"min_similarity,omitempty" jsonschema:"Similarity floor in [-1, 1] (default 0)"`
	ContentType   string  `json:"content_type,omitempty" jsonschema:"Only records of this content type"`
}

type matchOutput struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Similarity float64           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type retrieveContextOutput struct {
	Matches []matchOutput `json:"matches"`
	Count   int           `json:"count"`
}

type checkDuplicateInput struct {
	ProductInput string  `json:"product_input" jsonschema:"Product description to compare with past campaigns"`
	Threshold    float64 `json:"threshold,omitempty" jsonschema:"Inclusive similarity threshold in (0, 1] (default from config)"`
}

type checkDuplicateOutput struct {
	IsDuplicate bool          `json:"is_duplicate"`
	Threshold   float64       `json:"threshold"`
	Nearest     []matchOutput `json:"nearest"`
}

func (s *Server) registerRetrievalTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "retrieve_context",
		Description: "Find stored records similar to a text, most similar first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args retrieveContextInput) (*mcp.CallToolResult, retrieveContextOutput, error) {
		var toolErr error
		done := s.track(ctx, "retrieve_context")
		defer func() { done(toolErr) }()

		if args.K > maxRetrieveK {
			args.K = maxRetrieveK
		}
		q := retrieval.Query{
			Text:          args.Text,
			Collection:    args.Collection,
			K:             args.K,
			MinSimilarity: float32(args.MinSimilarity),
		}
		if q.Collection == "" {
			q.Collection = vectorstore.CollectionKnowledgeBase
		}
		if args.ContentType != "" {
			q.Filter = vectorstore.Filter{retrieval.MetaContentType: args.ContentType}
		}

		matches, err := s.retriever.Retrieve(ctx, q)
		if err != nil {
			toolErr = fmt.Errorf("retrieve context failed: %w", err)
			return nil, retrieveContextOutput{}, toolErr
		}

		out := retrieveContextOutput{Matches: toMatches(matches), Count: len(matches)}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Found %d records in %s", out.Count, q.Collection)},
			},
		}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "check_duplicate",
		Description: "Check whether a product description matches a past campaign",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args checkDuplicateInput) (*mcp.CallToolResult, checkDuplicateOutput, error) {
		var toolErr error
		done := s.track(ctx, "check_duplicate")
		defer func() { done(toolErr) }()

		threshold := float32(args.Threshold)
		if threshold == 0 {
			threshold = s.config.DuplicateThreshold
		}
		check, err := s.retriever.CheckDuplicate(ctx, args.ProductInput, threshold)
		if err != nil {
			toolErr = fmt.Errorf("check duplicate failed: %w", err)
			return nil, checkDuplicateOutput{}, toolErr
		}

		out := checkDuplicateOutput{
			IsDuplicate: check.IsDuplicate,
			Threshold:   float64(check.Threshold),
			Nearest:     toMatches(check.Nearest),
		}
		text := "No matching past campaign"
		if top, ok := check.Top(); ok && check.IsDuplicate {
			text = fmt.Sprintf("Duplicate of %s (similarity %.3f)", top.ID, top.Similarity)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, out, nil
	})
}

func toMatches(in []vectorstore.Match) []matchOutput {
	out := make([]matchOutput, 0, len(in))
	for _, m := range in {
		out = append(out, matchOutput{
			ID:         m.ID,
			Text:       m.Text,
			Similarity: float64(m.Similarity),
			Metadata:   m.Metadata,
		})
	}
	return out
}
