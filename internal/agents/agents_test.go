package agents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/embeddings"
	"github.com/fyrsmithlabs/contentfactory/internal/guardrails"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// fakeCompleter returns queued answers per agent and falls back to the
// scripted completer when the queue is empty.
type fakeCompleter struct {
	mu       sync.Mutex
	answers  map[Name][]string
	errs     map[Name]error
	delay    map[Name]time.Duration
	requests []Request
	fallback *ScriptedCompleter
}

func newFake() *fakeCompleter {
	return &fakeCompleter{
		answers:  map[Name][]string{},
		errs:     map[Name]error{},
		delay:    map[Name]time.Duration{},
		fallback: NewScriptedCompleter(),
	}
}

func (f *fakeCompleter) queue(agent Name, answers ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[agent] = append(f.answers[agent], answers...)
}

func (f *fakeCompleter) calls(agent Name) []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Request
	for _, r := range f.requests {
		if r.Agent == agent {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeCompleter) Complete(ctx context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.errs[req.Agent]
	d := f.delay[req.Agent]
	var ans string
	queued := len(f.answers[req.Agent]) > 0
	if queued {
		ans = f.answers[req.Agent][0]
		f.answers[req.Agent] = f.answers[req.Agent][1:]
	}
	f.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if queued {
		return ans, nil
	}
	return f.fallback.Complete(ctx, req)
}

func newTestRunner(t *testing.T, c Completer, opts ...func(*RunnerConfig)) *Runner {
	t.Helper()
	cfg := RunnerConfig{
		Registry:  DefaultRegistry(Plan{K: 3, Floor: 0.2}),
		Completer: c,
		Validator: guardrails.NewValidator(guardrails.Static{Guide: guardrails.DefaultStyleGuide()}, nil),
		Timeout:   2 * time.Second,
	}
	for _, o := range opts {
		o(&cfg)
	}
	r, err := NewRunner(cfg)
	require.NoError(t, err)
	return r
}

func testBrief() *content.Brief {
	return &content.Brief{
		ProductName:    "Seedance 1.0",
		Summary:        "Seedance 1.0 is a text-to-video API.",
		TargetSegments: []string{"developers", "creators"},
		KeyMessages:    []string{"Text to video in one call"},
		CanonicalURL:   "https://example.com/seedance",
	}
}

func TestPlan_Scripted(t *testing.T) {
	r := newTestRunner(t, NewScriptedCompleter())

	brief, err := r.Plan(context.Background(), PlanInput{
		ProductInput: "Seedance 1.0 is a text-to-video API",
		CanonicalURL: "https://example.com/seedance",
	})
	require.NoError(t, err)
	assert.Equal(t, "Seedance 1.0", brief.ProductName)
	assert.Equal(t, "https://example.com/seedance", brief.CanonicalURL)
	assert.NotEmpty(t, brief.TargetSegments)
	assert.NotEmpty(t, brief.KeyMessages)
}

func TestPlan_RetriesOnceWithCorrection(t *testing.T) {
	fake := newFake()
	fake.queue(Planner, "not json at all")
	r := newTestRunner(t, fake)

	brief, err := r.Plan(context.Background(), PlanInput{ProductInput: "Seedance 1.0 is a text-to-video API"})
	require.NoError(t, err)
	assert.Equal(t, "Seedance 1.0", brief.ProductName)

	calls := fake.calls(Planner)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Prompt, "previous answer was rejected")
}

func TestPlan_StructuralFailureAfterRetry(t *testing.T) {
	fake := newFake()
	fake.queue(Planner, `{"product_name":""}`, "```json\n{\"summary\":\"only\"}\n```")
	r := newTestRunner(t, fake)

	_, err := r.Plan(context.Background(), PlanInput{ProductInput: "x"})
	assert.ErrorIs(t, err, ErrStructuralOutput)
	assert.Len(t, fake.calls(Planner), 2)
}

func TestInvoke_CompletionErrorIsNotRetried(t *testing.T) {
	fake := newFake()
	fake.errs[BlogWriter] = errors.New("upstream 500")
	r := newTestRunner(t, fake)

	_, err := r.WriteBlog(context.Background(), testBrief(), "seedance-1-0_blog_1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStructuralOutput)
	assert.Len(t, fake.calls(BlogWriter), 1)
}

func TestInvoke_Timeout(t *testing.T) {
	fake := newFake()
	fake.delay[LinkedIn] = time.Second
	r := newTestRunner(t, fake, func(c *RunnerConfig) { c.Timeout = 20 * time.Millisecond })

	_, err := r.WritePost(context.Background(), content.TypeLinkedIn, testBrief(), "seedance-1-0_linkedin_1")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWriteBlog_AssignsIDAndSlug(t *testing.T) {
	fake := newFake()
	fake.queue(BlogWriter, `{"content_id":"ignored","title":"Hello","slug":"Hello World!","meta_description":"m","body_markdown":"# Hello"}`)
	r := newTestRunner(t, fake)

	blog, err := r.WriteBlog(context.Background(), testBrief(), "seedance-1-0_blog_1")
	require.NoError(t, err)
	assert.Equal(t, "seedance-1-0_blog_1", blog.ContentID)
	assert.Equal(t, "hello-world", blog.Slug)
}

func TestWritePost_CreatorContractRetry(t *testing.T) {
	fake := newFake()
	fake.queue(XCreator, `{"variants":["line one\nline two\nline three 🎬🎬"]}`)
	r := newTestRunner(t, fake)

	post, err := r.WritePost(context.Background(), content.TypeXCreator, testBrief(), "seedance-1-0_x_creator_1")
	require.NoError(t, err)
	assert.Equal(t, content.PersonaCreator, post.Persona)
	for _, v := range post.Variants {
		assert.LessOrEqual(t, guardrails.CountLines(v), 2)
		assert.LessOrEqual(t, guardrails.CountEmojis(v), 1)
	}
	calls := fake.calls(XCreator)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Prompt, "lines")
}

type recordingShortener struct{ got string }

func (s *recordingShortener) Shorten(_ context.Context, link string) string {
	s.got = link
	return "https://bit.ly/abc"
}

func TestWritePost_TrackedLink(t *testing.T) {
	short := &recordingShortener{}
	r := newTestRunner(t, NewScriptedCompleter(), func(c *RunnerConfig) { c.Shortener = short })

	post, err := r.WritePost(context.Background(), content.TypeXDev, testBrief(), "seedance-1-0_x_dev_1")
	require.NoError(t, err)
	assert.Equal(t, "https://bit.ly/abc", post.Link)
	assert.Contains(t, short.got, "utm_source=x")
	assert.Contains(t, short.got, "utm_medium=social")
	assert.Contains(t, short.got, "utm_campaign=seedance-1-0")
	for _, h := range post.Hashtags {
		assert.True(t, strings.HasPrefix(h, "#"))
	}
}

func TestWritePost_RejectsNonPostType(t *testing.T) {
	r := newTestRunner(t, NewScriptedCompleter())
	_, err := r.WritePost(context.Background(), content.TypeBlog, testBrief(), "x_blog_1")
	assert.ErrorIs(t, err, content.ErrInvalidArtifact)
}

func TestDirectArtAndMakeImage(t *testing.T) {
	r := newTestRunner(t, NewScriptedCompleter())
	ctx := context.Background()

	concepts, err := r.DirectArt(ctx, testBrief())
	require.NoError(t, err)
	require.NotEmpty(t, concepts)

	img, err := r.MakeImage(ctx, testBrief(), concepts[0], "seedance-1-0_image1_1")
	require.NoError(t, err)
	assert.NotEmpty(t, img.URL)
	assert.NotEmpty(t, img.AltText)
	assert.Equal(t, 1920, img.Width)
	assert.Equal(t, 1080, img.Height)
}

func TestDirectArt_TooManyConcepts(t *testing.T) {
	fake := newFake()
	c := `{"usage":"x_card","prompt":"p","aspect_ratio":"1:1"}`
	four := `{"concepts":[` + strings.Join([]string{c, c, c, c}, ",") + `]}`
	fake.queue(ArtDirector, four, four)
	r := newTestRunner(t, fake)

	_, err := r.DirectArt(context.Background(), testBrief())
	assert.ErrorIs(t, err, ErrStructuralOutput)
}

type failingImages struct{}

func (failingImages) Generate(context.Context, ImageRequest) (ImageResult, error) {
	return ImageResult{}, errors.New("connection refused")
}

func TestMakeImage_ServiceFailure(t *testing.T) {
	r := newTestRunner(t, NewScriptedCompleter(), func(c *RunnerConfig) { c.Images = failingImages{} })
	concept := content.ImageConcept{Usage: content.UsageXCard, Prompt: "card", AspectRatio: "1:1"}

	_, err := r.MakeImage(context.Background(), testBrief(), concept, "s_image1_1")
	assert.ErrorIs(t, err, ErrImageService)
}

func TestMakeImage_ToolNotAllowed(t *testing.T) {
	reg, err := NewRegistry(Spec{Name: ImageMaker, Instructions: "x", Shape: imageShape})
	require.NoError(t, err)
	r := newTestRunner(t, NewScriptedCompleter(), func(c *RunnerConfig) { c.Registry = reg })
	concept := content.ImageConcept{Usage: content.UsageXCard, Prompt: "card", AspectRatio: "1:1"}

	_, err = r.MakeImage(context.Background(), testBrief(), concept, "s_image1_1")
	assert.ErrorIs(t, err, ErrToolNotAllowed)
}

func TestEdit_Decisions(t *testing.T) {
	blog := &content.BlogArticle{ContentID: "s_blog_1", Title: "T", Slug: "t", MetaDescription: "m", BodyMarkdown: "b"}
	dev := &content.SocialPost{ContentID: "s_x_dev_1", Platform: content.PlatformX, Persona: content.PersonaDev, Variants: []string{"v"}, Link: "https://l"}
	li := &content.SocialPost{ContentID: "s_linkedin_1", Platform: content.PlatformLinkedIn, Persona: content.PersonaLinkedIn, Variants: []string{"v"}}

	fake := newFake()
	fake.queue(Editor, `{"decisions":[
		{"content_id":"s_x_dev_1","action":"revise","revised":{"variants":["better"],"platform":"linkedin","link":"https://evil"}},
		{"content_id":"s_linkedin_1","action":"reject","reason":"off brief"}
	]}`)
	r := newTestRunner(t, fake)

	review, err := r.Edit(context.Background(), testBrief(), []content.Artifact{blog, dev, li})
	require.NoError(t, err)
	require.Len(t, review.Kept, 2)
	assert.Same(t, blog, review.Kept[0])

	rev := review.Kept[1].(*content.SocialPost)
	assert.Equal(t, []string{"better"}, rev.Variants)
	assert.Equal(t, content.PlatformX, rev.Platform)
	assert.Equal(t, "https://l", rev.Link)
	assert.Equal(t, []string{"v"}, dev.Variants, "original must not change")

	require.Len(t, review.Rejected, 1)
	assert.Equal(t, "off brief", review.Rejected[0].Reason)
	assert.Equal(t, content.TypeLinkedIn, review.Rejected[0].ArtifactType)
	assert.Equal(t, []string{"s_x_dev_1"}, review.Revised)
}

func TestEdit_UnknownIDIsContractBreak(t *testing.T) {
	blog := &content.BlogArticle{ContentID: "s_blog_1", Title: "T", Slug: "t", MetaDescription: "m", BodyMarkdown: "b"}
	fake := newFake()
	fake.queue(Editor, `{"decisions":[{"content_id":"nope","action":"accept"}]}`)
	r := newTestRunner(t, fake)

	review, err := r.Edit(context.Background(), testBrief(), []content.Artifact{blog})
	require.NoError(t, err)
	assert.Len(t, review.Kept, 1)
	assert.Len(t, fake.calls(Editor), 2)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"Sure!\n```json\n{\"a\":{\"b\":\"}\"}}\n```", `{"a":{"b":"}"}}`, true},
		{`{"a":"\"{"}`, `{"a":"\"{"}`, true},
		{`no object`, ``, false},
		{`{"open":`, ``, false},
	}
	for _, tt := range tests {
		got, ok := extractJSON(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry(Plan{K: 5})
	assert.Len(t, reg.Names(), 8)

	planner, err := reg.Lookup(Planner)
	require.NoError(t, err)
	assert.True(t, planner.Allows(ToolDuplicateCheck))
	assert.False(t, planner.Allows(ToolImageService))

	editor, err := reg.Lookup(Editor)
	require.NoError(t, err)
	assert.Equal(t, []Tool{ToolRetrieval}, editor.Tools)

	blog, err := reg.Lookup(BlogWriter)
	require.NoError(t, err)
	assert.True(t, blog.Allows(ToolQuickstart))
	assert.False(t, blog.Allows(ToolShortener))

	planner.Tools[0] = ToolImageService
	again, _ := reg.Lookup(Planner)
	assert.Equal(t, ToolRetrieval, again.Tools[0], "lookup must return a copy")

	_, err = reg.Lookup("ghost")
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = NewRegistry(Spec{Name: Editor}, Spec{Name: Editor})
	assert.Error(t, err)
}

func TestDefaultRegistry_RetrievalPlans(t *testing.T) {
	reg := DefaultRegistry(Plan{K: 4, Floor: 0.25, StyleMinScore: 0.7})

	type step struct {
		collection string
		filter     vectorstore.Filter
		minScore   float64
		query      string
	}
	plan := func(name Name) []step {
		spec, err := reg.Lookup(name)
		require.NoError(t, err)
		out := make([]step, 0, len(spec.Retrieval))
		for _, src := range spec.Retrieval {
			assert.Equal(t, 4, src.K, "%s %s", name, src.Collection)
			assert.Equal(t, float32(0.25), src.MinSimilarity, "%s %s", name, src.Collection)
			out = append(out, step{src.Collection, src.Filter, src.MinScore, src.Query})
		}
		return out
	}
	typed := func(t content.Type) vectorstore.Filter {
		return vectorstore.Filter{retrieval.MetaContentType: string(t)}
	}
	category := func(c string) vectorstore.Filter {
		return vectorstore.Filter{retrieval.MetaCategory: c}
	}

	assert.Equal(t, []step{
		{vectorstore.CollectionKnowledgeBase, category(retrieval.CategoryProduct), 0, ""},
		{vectorstore.CollectionHistory, typed(content.TypeBrief), 0, ""},
	}, plan(Planner))
	assert.Equal(t, []step{
		{vectorstore.CollectionStyleExamples, typed(content.TypeBlog), 0.7, ""},
		{vectorstore.CollectionHistory, typed(content.TypeBlog), 0, ""},
		{vectorstore.CollectionKnowledgeBase, category(retrieval.CategoryTechnical), 0, ""},
		{vectorstore.CollectionBrandAssets, nil, 0, ""},
	}, plan(BlogWriter))
	assert.Equal(t, []step{
		{vectorstore.CollectionStyleExamples, typed(content.TypeXDev), 0.7, ""},
		{vectorstore.CollectionHistory, typed(content.TypeXDev), 0, ""},
		{vectorstore.CollectionBrandAssets, nil, 0, ""},
	}, plan(XDevWriter))
	assert.Equal(t, []step{
		{vectorstore.CollectionStyleExamples, typed(content.TypeLinkedIn), 0.7, ""},
		{vectorstore.CollectionHistory, typed(content.TypeLinkedIn), 0, ""},
		{vectorstore.CollectionKnowledgeBase, category(retrieval.CategoryEnterprise), 0, ""},
		{vectorstore.CollectionBrandAssets, nil, 0, ""},
	}, plan(LinkedIn))
	assert.Equal(t, []step{
		{vectorstore.CollectionHistory, typed(content.TypeImage), 0, ""},
		{vectorstore.CollectionKnowledgeBase, category(retrieval.CategoryBrand), 0, "brand visual guidelines"},
		{vectorstore.CollectionBrandAssets, nil, 0, ""},
	}, plan(ArtDirector))
	assert.Equal(t, []step{
		{vectorstore.CollectionKnowledgeBase, category(retrieval.CategoryStyle), 0, "style guide tone voice"},
		{vectorstore.CollectionHistory, typed(content.TypeEdit), 0, ""},
	}, plan(Editor))
	assert.Empty(t, plan(ImageMaker))
}

func TestWriteBlog_PassesQuickstarts(t *testing.T) {
	fake := newFake()
	r := newTestRunner(t, fake, func(c *RunnerConfig) { c.QuickstartBaseURL = "https://api.example.com" })

	blog, err := r.WriteBlog(context.Background(), testBrief(), "seedance-1-0_blog_1")
	require.NoError(t, err)

	calls := fake.calls(BlogWriter)
	require.Len(t, calls, 1)
	var in writerInput
	require.NoError(t, json.Unmarshal(calls[0].Input, &in))
	require.Len(t, in.Quickstarts, 2)
	assert.Contains(t, in.Quickstarts[0], "```python")
	assert.Contains(t, in.Quickstarts[0], "https://api.example.com/v1/videos/generations")
	assert.Contains(t, in.Quickstarts[1], "```javascript")
	assert.Contains(t, in.Quickstarts[1], `model: "seedance-1-0"`)
	assert.Contains(t, blog.BodyMarkdown, "## Quickstart")

	// Other writers never see code samples.
	_, err = r.WritePost(context.Background(), content.TypeXDev, testBrief(), "seedance-1-0_x_dev_1")
	require.NoError(t, err)
	var post writerInput
	require.NoError(t, json.Unmarshal(fake.calls(XDevWriter)[0].Input, &post))
	assert.Empty(t, post.Quickstarts)
}

func TestEdit_GroundedInStyleKnowledge(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: 64}, nil)
	require.NoError(t, err)
	emb, err := embeddings.NewHashProvider(64)
	require.NoError(t, err)
	svc, err := retrieval.NewService(store, emb, retrieval.Config{MaxRetries: -1}, nil)
	require.NoError(t, err)

	put := func(collection, id, text string, md map[string]string) {
		v, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, collection, vectorstore.Record{ID: id, Text: text, Embedding: v, Metadata: md}))
	}
	put(vectorstore.CollectionKnowledgeBase, "kb_style", "style guide tone voice",
		map[string]string{retrieval.MetaCategory: retrieval.CategoryStyle})
	put(vectorstore.CollectionKnowledgeBase, "kb_price", "style guide tone voice",
		map[string]string{retrieval.MetaCategory: retrieval.CategoryPricing})

	fake := newFake()
	r := newTestRunner(t, fake, func(c *RunnerConfig) {
		c.Registry = DefaultRegistry(Plan{K: 3, Floor: 0.9})
		c.Retriever = svc
	})
	blog := &content.BlogArticle{ContentID: "seedance-1-0_blog_1", Title: "t", Slug: "t", MetaDescription: "m", BodyMarkdown: "# t"}

	_, err = r.Edit(ctx, testBrief(), []content.Artifact{blog})
	require.NoError(t, err)

	calls := fake.calls(Editor)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "[kb_style, similarity")
	assert.NotContains(t, calls[0].Prompt, "kb_price")
}
