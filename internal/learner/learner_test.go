package learner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/embeddings"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

const testDim = 32

type fixture struct {
	store   *vectorstore.ChromemStore
	emb     *embeddings.HashProvider
	learner *Learner
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: testDim}, nil)
	require.NoError(t, err)
	emb, err := embeddings.NewHashProvider(testDim)
	require.NoError(t, err)
	svc, err := retrieval.NewService(store, emb, retrieval.Config{MaxRetries: -1}, nil)
	require.NoError(t, err)
	l, err := New(svc, cfg, nil)
	require.NoError(t, err)
	return &fixture{store: store, emb: emb, learner: l}
}

func (f *fixture) history(t *testing.T, id, text string) {
	t.Helper()
	v, err := f.emb.Embed(context.Background(), text)
	require.NoError(t, err)
	require.NoError(t, f.store.Upsert(context.Background(), vectorstore.CollectionHistory, vectorstore.Record{
		ID: id, Text: text, Embedding: v,
		Metadata: map[string]string{retrieval.MetaContentType: "x_dev", "platform": "x"},
	}))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		m    Metrics
		want float64
	}{
		{"zero reach neutral", Metrics{Sentiment: SentimentNeutral}, 0.1},
		{"negative", Metrics{Sentiment: SentimentNegative}, 0},
		{"saturated", Metrics{Reach: 20000, Likes: 20000, Conversions: 500, Sentiment: SentimentPositive}, 1},
		{"typical", Metrics{Reach: 10000, Likes: 500, Comments: 100, Shares: 50, Conversions: 100, Sentiment: SentimentPositive}, 0.73},
		{"half reach", Metrics{Reach: 5000, Sentiment: SentimentPositive}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.m), 1e-9)
		})
	}
}

func TestEngagementRate(t *testing.T) {
	assert.Equal(t, 0.0, EngagementRate(Metrics{Likes: 10}))
	assert.InDelta(t, 0.085, EngagementRate(Metrics{Reach: 10000, Likes: 500, Comments: 100, Shares: 50}), 1e-9)
	assert.Equal(t, 1.0, EngagementRate(Metrics{Reach: 10, Shares: 10}))
}

func TestMetricsValidate(t *testing.T) {
	m := Metrics{Reach: 1}
	require.NoError(t, m.Validate())
	assert.Equal(t, SentimentNeutral, m.Sentiment)

	assert.ErrorIs(t, (&Metrics{Reach: -1}).Validate(), ErrInvalidMetrics)
	assert.ErrorIs(t, (&Metrics{Sentiment: "ecstatic"}).Validate(), ErrInvalidMetrics)
}

func TestRecordMetrics_StoresAndPromotes(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	id := "seedance-1-0_x_dev_1700000000"
	f.history(t, id, "Seedance 1.0 is live. Try the API.")

	rec, err := f.learner.RecordMetrics(ctx, id, Metrics{
		Reach: 20000, Likes: 20000, Conversions: 500, Sentiment: SentimentPositive,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.Score)
	assert.Equal(t, content.TypeXDev, rec.ContentType)
	require.NotNil(t, rec.Promotion)
	assert.True(t, rec.Promotion.Promoted)

	style, err := f.store.Get(ctx, vectorstore.CollectionStyleExamples, StyleID(id))
	require.NoError(t, err)
	assert.Equal(t, "Seedance 1.0 is live. Try the API.", style.Text)
	assert.Equal(t, "1.00", style.Metadata[retrieval.MetaPerformanceScore])
	assert.Equal(t, id, style.Metadata[MetaSourceID])
	assert.Equal(t, vectorstore.CollectionHistory, style.Metadata[MetaPromotedBy])
	assert.Equal(t, "x_dev", style.Metadata[retrieval.MetaContentType])

	// The source record is untouched.
	hist, err := f.store.Get(ctx, vectorstore.CollectionHistory, id)
	require.NoError(t, err)
	assert.NotContains(t, hist.Metadata, retrieval.MetaPerformanceScore)
	assert.NotContains(t, hist.Metadata, MetaSourceID)

	stats, err := f.store.Stats(ctx, vectorstore.CollectionPerformance)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
}

func TestRecordMetrics_Validation(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.learner.RecordMetrics(context.Background(), " ", Metrics{})
	assert.ErrorIs(t, err, ErrEmptyContentID)
	_, err = f.learner.RecordMetrics(context.Background(), "a_blog_1", Metrics{Shares: -2})
	assert.ErrorIs(t, err, ErrInvalidMetrics)
}

func TestEvaluatePromotion_Idempotent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	id := "seedance-1-0_blog_1"
	f.history(t, id, "Introducing Seedance")
	rec := &PerformanceRecord{ContentID: id, ContentType: content.TypeBlog, Score: 0.95}

	first, err := f.learner.EvaluatePromotion(ctx, rec)
	require.NoError(t, err)
	assert.True(t, first.Promoted)

	second, err := f.learner.EvaluatePromotion(ctx, rec)
	require.NoError(t, err)
	assert.False(t, second.Promoted)
	assert.True(t, second.AlreadyPromoted)

	stats, err := f.store.Stats(ctx, vectorstore.CollectionStyleExamples)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
}

func TestEvaluatePromotion_ThresholdBoundary(t *testing.T) {
	f := newFixture(t, Config{PromotionThreshold: 0.8})
	ctx := context.Background()
	f.history(t, "at_blog_1", "at threshold")
	f.history(t, "below_blog_1", "below threshold")

	at, err := f.learner.EvaluatePromotion(ctx, &PerformanceRecord{ContentID: "at_blog_1", Score: 0.8})
	require.NoError(t, err)
	assert.True(t, at.Promoted, "score equal to the threshold promotes")

	below, err := f.learner.EvaluatePromotion(ctx, &PerformanceRecord{ContentID: "below_blog_1", Score: 0.79})
	require.NoError(t, err)
	assert.False(t, below.Promoted)
	assert.Equal(t, "score below threshold", below.Reason)
}

func TestEvaluatePromotion_MissingHistory(t *testing.T) {
	f := newFixture(t, Config{})
	p, err := f.learner.EvaluatePromotion(context.Background(), &PerformanceRecord{ContentID: "ghost_blog_1", Score: 1})
	require.NoError(t, err)
	assert.False(t, p.Promoted)
	assert.Equal(t, "no history record", p.Reason)
}

func TestAnalyticsAndTopPerformers(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	f.learner.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	_, err := f.learner.RecordMetrics(ctx, "a_blog_1", Metrics{Reach: 5000, Sentiment: SentimentPositive})
	require.NoError(t, err)
	_, err = f.learner.RecordMetrics(ctx, "a_blog_1", Metrics{Reach: 10000, Sentiment: SentimentPositive})
	require.NoError(t, err)
	_, err = f.learner.RecordMetrics(ctx, "b_x_dev_1", Metrics{Reach: 10000, Conversions: 100, Sentiment: SentimentPositive})
	require.NoError(t, err)

	a, err := f.learner.ContentAnalytics(ctx, "a_blog_1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Records)
	assert.InDelta(t, 0.35, a.AverageScore, 1e-9)
	assert.InDelta(t, 0.4, a.BestScore, 1e-9)
	assert.Equal(t, 15000, a.TotalReach)
	require.NotNil(t, a.Latest)
	assert.Equal(t, 10000, a.Latest.Metrics.Reach)

	empty, err := f.learner.ContentAnalytics(ctx, "nothing_blog_1")
	require.NoError(t, err)
	assert.Zero(t, empty.Records)

	top, err := f.learner.TopPerformers(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b_x_dev_1", top[0].ContentID)

	blogs, err := f.learner.TopPerformers(ctx, content.TypeBlog, 10)
	require.NoError(t, err)
	assert.Len(t, blogs, 2)
}

func TestSweep_RemovesExpired(t *testing.T) {
	f := newFixture(t, Config{Retention: 24 * time.Hour})
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	f.learner.now = func() time.Time { return now.Add(-48 * time.Hour) }
	_, err := f.learner.RecordMetrics(ctx, "old_blog_1", Metrics{Reach: 1})
	require.NoError(t, err)
	f.learner.now = func() time.Time { return now }
	_, err = f.learner.RecordMetrics(ctx, "new_blog_1", Metrics{Reach: 1})
	require.NoError(t, err)

	removed, err := f.learner.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	left, err := f.store.Scan(ctx, vectorstore.CollectionPerformance, nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new_blog_1", left[0].Metadata[MetaContentID])
}

func TestSweeper_StartStop(t *testing.T) {
	f := newFixture(t, Config{})
	s, err := NewSweeper(f.learner, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop())
}
