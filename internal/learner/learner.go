package learner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// Metadata keys written on performance and promoted records.
const (
	MetaContentID   = "content_id"
	MetaRecordedAt  = "recorded_at"
	MetaPromotedAt  = "promoted_at"
	MetaPromotedBy  = "promoted_from"
	MetaSourceID    = "source_id"
	MetaSentiment   = "sentiment"
	MetaEngagement  = "engagement_rate"
	metaReach       = "reach"
	metaLikes       = "likes"
	metaComments    = "comments"
	metaShares      = "shares"
	metaConversions = "conversions"
)

// ErrEmptyContentID is returned when a submission names no content.
var ErrEmptyContentID = errors.New("content id is required")

// Config tunes scoring and promotion.
type Config struct {
	// PromotionThreshold is the inclusive minimum score for promotion.
	// Default: 0.8
	PromotionThreshold float64

	// Retention is how long performance records are kept.
	// Default: 90 days
	Retention time.Duration
}

func (c *Config) applyDefaults() {
	if c.PromotionThreshold <= 0 {
		c.PromotionThreshold = 0.8
	}
	if c.Retention <= 0 {
		c.Retention = 90 * 24 * time.Hour
	}
}

// PerformanceRecord is one scored metric submission.
type PerformanceRecord struct {
	ID             string       `json:"id"`
	ContentID      string       `json:"content_id"`
	ContentType    content.Type `json:"content_type,omitempty"`
	Metrics        Metrics      `json:"metrics"`
	EngagementRate float64      `json:"engagement_rate"`
	Score          float64      `json:"score"`
	RecordedAt     time.Time    `json:"recorded_at"`

	// Promotion is the outcome of the evaluation triggered by this record.
	Promotion *Promotion `json:"promotion,omitempty"`
}

// Promotion reports what EvaluatePromotion did.
type Promotion struct {
	// Promoted is true when this call wrote the style example.
	Promoted bool `json:"promoted"`

	// AlreadyPromoted is true when the style example existed before the call.
	AlreadyPromoted bool `json:"already_promoted,omitempty"`

	StyleID   string  `json:"style_id,omitempty"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`

	// Reason explains a skipped promotion.
	Reason string `json:"reason,omitempty"`
}

// Learner records metrics and promotes artifacts. It is safe for concurrent use.
type Learner struct {
	store     vectorstore.Store
	retriever *retrieval.Service
	cfg       Config
	logger    *zap.Logger

	// promoteMu serializes the exists-then-copy step of promotion.
	promoteMu sync.Mutex

	now func() time.Time
}

// New creates a Learner over the shared store.
func New(retriever *retrieval.Service, cfg Config, logger *zap.Logger) (*Learner, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retrieval service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Learner{
		store:     retriever.Store(),
		retriever: retriever,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Threshold returns the promotion threshold.
func (l *Learner) Threshold() float64 { return l.cfg.PromotionThreshold }

// StyleID is the id a promoted artifact takes in the style examples collection.
func StyleID(contentID string) string { return "style_" + contentID }

// RecordMetrics scores m, stores the performance record and evaluates
// promotion. A failed promotion is logged and reported on the record; the
// record itself is still stored.
func (l *Learner) RecordMetrics(ctx context.Context, contentID string, m Metrics) (*PerformanceRecord, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, ErrEmptyContentID
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	rec := &PerformanceRecord{
		ID:             fmt.Sprintf("perf_%s_%d", contentID, now.UnixNano()),
		ContentID:      contentID,
		Metrics:        m,
		EngagementRate: EngagementRate(m),
		Score:          Score(m),
		RecordedAt:     now,
	}
	if t, ok := content.TypeFromID(contentID); ok {
		rec.ContentType = t
	}

	text := fmt.Sprintf("performance of %s: score %.2f, sentiment %s", contentID, rec.Score, m.Sentiment)
	vec, err := l.retriever.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding performance record: %w", err)
	}
	if err := l.store.Upsert(ctx, vectorstore.CollectionPerformance, vectorstore.Record{
		ID:        rec.ID,
		Text:      text,
		Embedding: vec,
		Metadata:  rec.metadata(),
	}); err != nil {
		return nil, fmt.Errorf("storing performance record: %w", err)
	}
	metricsRecorded.WithLabelValues(string(rec.ContentType)).Inc()

	l.logger.Info("metrics recorded",
		zap.String("content_id", contentID),
		zap.Float64("score", rec.Score),
		zap.Float64("engagement_rate", rec.EngagementRate),
	)

	promo, err := l.EvaluatePromotion(ctx, rec)
	if err != nil {
		l.logger.Warn("promotion evaluation failed", zap.String("content_id", contentID), zap.Error(err))
		promo = &Promotion{Score: rec.Score, Threshold: l.cfg.PromotionThreshold, Reason: err.Error()}
	}
	rec.Promotion = promo
	return rec, nil
}

// EvaluatePromotion copies the artifact's history record into the style
// examples collection when rec.Score is at least the threshold. Calling it
// again for a promoted id is a no-op. The history record is not modified.
func (l *Learner) EvaluatePromotion(ctx context.Context, rec *PerformanceRecord) (*Promotion, error) {
	out := &Promotion{Score: rec.Score, Threshold: l.cfg.PromotionThreshold}
	if rec.Score < l.cfg.PromotionThreshold {
		out.Reason = "score below threshold"
		return out, nil
	}
	out.StyleID = StyleID(rec.ContentID)

	l.promoteMu.Lock()
	defer l.promoteMu.Unlock()

	if _, err := l.store.Get(ctx, vectorstore.CollectionStyleExamples, out.StyleID); err == nil {
		out.AlreadyPromoted = true
		return out, nil
	} else if !errors.Is(err, vectorstore.ErrNotFound) {
		return nil, fmt.Errorf("checking style example: %w", err)
	}

	src, err := l.store.Get(ctx, vectorstore.CollectionHistory, rec.ContentID)
	if errors.Is(err, vectorstore.ErrNotFound) {
		out.Reason = "no history record"
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history record: %w", err)
	}

	md := maps.Clone(src.Metadata)
	if md == nil {
		md = make(map[string]string)
	}
	md[MetaPromotedBy] = vectorstore.CollectionHistory
	md[MetaSourceID] = src.ID
	md[MetaPromotedAt] = l.now().UTC().Format(time.RFC3339Nano)
	md[retrieval.MetaPerformanceScore] = strconv.FormatFloat(rec.Score, 'f', 2, 64)
	if md[retrieval.MetaContentType] == "" && rec.ContentType != "" {
		md[retrieval.MetaContentType] = string(rec.ContentType)
	}

	if err := l.store.Upsert(ctx, vectorstore.CollectionStyleExamples, vectorstore.Record{
		ID:        out.StyleID,
		Text:      src.Text,
		Embedding: slices.Clone(src.Embedding),
		Metadata:  md,
	}); err != nil {
		return nil, fmt.Errorf("writing style example: %w", err)
	}
	promotions.Inc()
	out.Promoted = true

	l.logger.Info("artifact promoted to style examples",
		zap.String("content_id", rec.ContentID),
		zap.String("style_id", out.StyleID),
		zap.Float64("score", rec.Score),
	)
	return out, nil
}

func (r *PerformanceRecord) metadata() map[string]string {
	m := r.Metrics
	md := map[string]string{
		MetaContentID:                  r.ContentID,
		MetaRecordedAt:                 r.RecordedAt.Format(time.RFC3339Nano),
		MetaSentiment:                  string(m.Sentiment),
		MetaEngagement:                 strconv.FormatFloat(r.EngagementRate, 'f', 4, 64),
		retrieval.MetaPerformanceScore: strconv.FormatFloat(r.Score, 'f', 2, 64),
		metaReach:                      strconv.Itoa(m.Reach),
		metaLikes:                      strconv.Itoa(m.Likes),
		metaComments:                   strconv.Itoa(m.Comments),
		metaShares:                     strconv.Itoa(m.Shares),
		metaConversions:                strconv.Itoa(m.Conversions),
	}
	if r.ContentType != "" {
		md[retrieval.MetaContentType] = string(r.ContentType)
	}
	return md
}

// recordFromStore rebuilds a PerformanceRecord from its stored form.
func recordFromStore(r vectorstore.Record) PerformanceRecord {
	md := r.Metadata
	atoi := func(k string) int {
		n, _ := strconv.Atoi(md[k])
		return n
	}
	score, _ := strconv.ParseFloat(md[retrieval.MetaPerformanceScore], 64)
	eng, _ := strconv.ParseFloat(md[MetaEngagement], 64)
	recorded, err := time.Parse(time.RFC3339Nano, md[MetaRecordedAt])
	if err != nil {
		recorded = r.InsertedAt
	}
	return PerformanceRecord{
		ID:          r.ID,
		ContentID:   md[MetaContentID],
		ContentType: content.Type(md[retrieval.MetaContentType]),
		Metrics: Metrics{
			Reach:       atoi(metaReach),
			Likes:       atoi(metaLikes),
			Comments:    atoi(metaComments),
			Shares:      atoi(metaShares),
			Conversions: atoi(metaConversions),
			Sentiment:   Sentiment(md[MetaSentiment]),
		},
		EngagementRate: eng,
		Score:          score,
		RecordedAt:     recorded,
	}
}
