package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/embeddings"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

const testDim = 32

type fakeGenerator struct {
	got orchestrator.Request
	pkg *content.Package
	err error
}

func (f *fakeGenerator) Run(_ context.Context, req orchestrator.Request) (*content.Package, error) {
	f.got = req
	return f.pkg, f.err
}

type fixture struct {
	store   *vectorstore.ChromemStore
	emb     *embeddings.HashProvider
	gen     *fakeGenerator
	session *mcp.ClientSession
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: testDim}, nil)
	require.NoError(t, err)
	emb, err := embeddings.NewHashProvider(testDim)
	require.NoError(t, err)
	svc, err := retrieval.NewService(store, emb, retrieval.Config{MaxRetries: -1}, nil)
	require.NoError(t, err)
	lrn, err := learner.New(svc, learner.Config{}, nil)
	require.NoError(t, err)

	gen := &fakeGenerator{}
	srv, err := NewServer(nil, gen, lrn, svc)
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	go func() {
		_ = srv.MCP().Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return &fixture{store: store, emb: emb, gen: gen, session: session}
}

func (f *fixture) put(t *testing.T, collection, id, text string, meta map[string]string) {
	t.Helper()
	v, err := f.emb.Embed(context.Background(), text)
	require.NoError(t, err)
	require.NoError(t, f.store.Upsert(context.Background(), collection, vectorstore.Record{
		ID: id, Text: text, Embedding: v, Metadata: meta,
	}))
}

func (f *fixture) call(t *testing.T, tool string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := f.session.CallTool(context.Background(), &mcp.CallToolParams{Name: tool, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		raw, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return res
}

func TestNewServer_RequiresServices(t *testing.T) {
	_, err := NewServer(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestServer_ListsTools(t *testing.T) {
	f := newFixture(t)

	res, err := f.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"generate_package", "record_metrics", "retrieve_context", "check_duplicate",
		"analyze_trends", "learning_insights", "analytics_report",
	}, names)

	info := f.session.InitializeResult()
	require.NotNil(t, info)
	assert.Equal(t, "contentfactory", info.ServerInfo.Name)
}

func TestGeneratePackage(t *testing.T) {
	f := newFixture(t)
	f.gen.pkg = &content.Package{
		RunID: "run-1",
		Brief: content.Brief{ProductName: "Seedance"},
		Blog:  &content.BlogArticle{ContentID: "seedance_blog_1", Title: "Introducing Seedance"},
		Diagnostics: []content.Diagnostic{
			{Kind: orchestrator.DiagWriterFailure, Stage: "generation", ArtifactType: content.TypeXDev, Message: "timeout"},
		},
		Publish: &content.PublishResult{Status: "scheduled"},
	}

	var out generatePackageOutput
	res := f.call(t, "generate_package", map[string]any{
		"product_input": "Seedance 1.0 is a text-to-video model.",
		"schedule_time": "2026-10-20T09:00:00Z",
	}, &out)

	require.False(t, res.IsError)
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, []string{"seedance_blog_1"}, out.ContentIDs)
	assert.Equal(t, "scheduled", out.PublishStatus)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, "x_dev", out.Diagnostics[0].ArtifactType)

	require.NotNil(t, f.gen.got.ScheduleTime)
	assert.Equal(t, time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC), f.gen.got.ScheduleTime.UTC())
	require.Len(t, res.Content, 2)
}

func TestGeneratePackage_Errors(t *testing.T) {
	f := newFixture(t)

	res := f.call(t, "generate_package", map[string]any{"product_input": "x", "schedule_time": "tomorrow"}, nil)
	assert.True(t, res.IsError)

	f.gen.err = &orchestrator.RunError{Kind: orchestrator.ErrDuplicateCampaign, RunID: "run-2", Stage: orchestrator.StageDuplicateCheck}
	res = f.call(t, "generate_package", map[string]any{"product_input": "x"}, nil)
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "duplicate_campaign")
}

func TestRecordMetrics_Promotes(t *testing.T) {
	f := newFixture(t)
	f.put(t, vectorstore.CollectionHistory, "seedance_linkedin_1", "Seedance brings storyboards to life.",
		map[string]string{retrieval.MetaContentType: "linkedin"})

	var out recordMetricsOutput
	res := f.call(t, "record_metrics", map[string]any{
		"content_id":  "seedance_linkedin_1",
		"reach":       20000,
		"likes":       20000,
		"conversions": 500,
		"sentiment":   "Positive",
	}, &out)

	require.False(t, res.IsError)
	assert.InDelta(t, 1.0, out.Score, 1e-9)
	assert.True(t, out.Promoted)

	_, err := f.store.Get(context.Background(), vectorstore.CollectionStyleExamples, learner.StyleID("seedance_linkedin_1"))
	assert.NoError(t, err)

	res = f.call(t, "record_metrics", map[string]any{"content_id": "seedance_linkedin_1", "reach": -1}, nil)
	assert.True(t, res.IsError)
}

func TestRetrieveContext(t *testing.T) {
	f := newFixture(t)
	f.put(t, vectorstore.CollectionKnowledgeBase, "kb_1", "Seedance renders 1080p clips from text prompts.", nil)
	f.put(t, vectorstore.CollectionKnowledgeBase, "kb_2", "Quarterly finance report for the board.", nil)

	var out retrieveContextOutput
	res := f.call(t, "retrieve_context", map[string]any{
		"text":           "Seedance renders 1080p clips from text prompts.",
		"min_similarity": 0.9,
	}, &out)

	require.False(t, res.IsError)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "kb_1", out.Matches[0].ID)
	assert.InDelta(t, 1.0, out.Matches[0].Similarity, 1e-3)

	res = f.call(t, "retrieve_context", map[string]any{"text": "x", "collection": "Bad Name"}, nil)
	assert.True(t, res.IsError)
}

func TestCheckDuplicate(t *testing.T) {
	f := newFixture(t)
	input := "Seedance 1.0 is a text-to-video model for creators."
	f.put(t, vectorstore.CollectionHistory, "seedance_campaign_0", input,
		map[string]string{retrieval.MetaContentType: string(content.TypeCampaign)})

	var out checkDuplicateOutput
	res := f.call(t, "check_duplicate", map[string]any{"product_input": input}, &out)
	require.False(t, res.IsError)
	assert.True(t, out.IsDuplicate)
	assert.InDelta(t, 0.95, out.Threshold, 1e-6)
	require.NotEmpty(t, out.Nearest)
	assert.Equal(t, "seedance_campaign_0", out.Nearest[0].ID)

	res = f.call(t, "check_duplicate", map[string]any{"product_input": "An unrelated espresso grinder."}, &out)
	require.False(t, res.IsError)
	assert.False(t, out.IsDuplicate)

	res = f.call(t, "check_duplicate", map[string]any{"product_input": input, "threshold": 1.5}, nil)
	assert.True(t, res.IsError)
}

func TestAnalyticsTools(t *testing.T) {
	f := newFixture(t)
	created := time.Now().UTC().Format(time.RFC3339Nano)
	f.put(t, vectorstore.CollectionHistory, "seedance_x_dev_1", "Seedance is live for developers",
		map[string]string{retrieval.MetaContentType: string(content.TypeXDev), "created_at": created})
	f.put(t, vectorstore.CollectionHistory, "seedance_campaign_1", "Seedance 1.0 is a text-to-video API",
		map[string]string{retrieval.MetaContentType: string(content.TypeCampaign), "created_at": created})
	f.call(t, "record_metrics", map[string]any{"content_id": "seedance_x_dev_1", "reach": 5000, "sentiment": "positive"}, nil)

	var trends learner.Trends
	res := f.call(t, "analyze_trends", map[string]any{"days": 7}, &trends)
	require.False(t, res.IsError)
	assert.Equal(t, 7, trends.PeriodDays)
	assert.Equal(t, 1, trends.Runs)
	assert.Equal(t, 1, trends.ContentByType[content.TypeXDev])
	assert.InDelta(t, 0.3, trends.AverageScoreByType[content.TypeXDev], 1e-9)

	res = f.call(t, "analyze_trends", map[string]any{"days": 1000}, nil)
	assert.True(t, res.IsError)

	var insights learner.Insights
	res = f.call(t, "learning_insights", map[string]any{}, &insights)
	require.False(t, res.IsError)
	require.Len(t, insights.Patterns, 1)
	assert.Equal(t, "seedance_x_dev_1", insights.Patterns[0].ContentID)
	assert.Equal(t, "Seedance is live for developers", insights.Patterns[0].Example)
	assert.Len(t, insights.ImprovementAreas, 1)

	var report learner.Report
	res = f.call(t, "analytics_report", map[string]any{}, &report)
	require.False(t, res.IsError)
	assert.Len(t, report.Collections, len(vectorstore.Collections))
	require.NotNil(t, report.Trends)
	assert.Equal(t, 30, report.Trends.PeriodDays)
	assert.Len(t, report.TopPerformers, 1)
}
