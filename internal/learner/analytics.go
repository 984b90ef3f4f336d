package learner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// Analytics aggregates every performance record of one artifact.
type Analytics struct {
	ContentID    string             `json:"content_id"`
	Records      int                `json:"records"`
	AverageScore float64            `json:"average_score"`
	BestScore    float64            `json:"best_score"`
	TotalReach   int                `json:"total_reach"`
	Latest       *PerformanceRecord `json:"latest,omitempty"`
	Promoted     bool               `json:"promoted"`
}

// ContentAnalytics summarizes the records of contentID. An id with no
// records yields zero counts, not an error.
func (l *Learner) ContentAnalytics(ctx context.Context, contentID string) (*Analytics, error) {
	if contentID == "" {
		return nil, ErrEmptyContentID
	}
	recs, err := l.store.Scan(ctx, vectorstore.CollectionPerformance, vectorstore.Filter{MetaContentID: contentID})
	if err != nil {
		return nil, fmt.Errorf("scanning performance records: %w", err)
	}

	out := &Analytics{ContentID: contentID}
	var sum float64
	for _, r := range recs {
		pr := recordFromStore(r)
		out.Records++
		sum += pr.Score
		out.BestScore = math.Max(out.BestScore, pr.Score)
		out.TotalReach += pr.Metrics.Reach
		if out.Latest == nil || pr.RecordedAt.After(out.Latest.RecordedAt) {
			latest := pr
			out.Latest = &latest
		}
	}
	if out.Records > 0 {
		out.AverageScore = math.Round(sum/float64(out.Records)*100) / 100
	}

	if _, err := l.store.Get(ctx, vectorstore.CollectionStyleExamples, StyleID(contentID)); err == nil {
		out.Promoted = true
	}
	return out, nil
}

// TopPerformers returns the best scoring records, optionally limited to one
// content type. Ties go to the most recent record.
func (l *Learner) TopPerformers(ctx context.Context, t content.Type, limit int) ([]PerformanceRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var filter vectorstore.Filter
	if t != "" {
		filter = vectorstore.Filter{retrieval.MetaContentType: string(t)}
	}
	recs, err := l.store.Scan(ctx, vectorstore.CollectionPerformance, filter)
	if err != nil {
		return nil, fmt.Errorf("scanning performance records: %w", err)
	}

	out := make([]PerformanceRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, recordFromStore(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Sweep deletes performance records older than the retention window and
// returns how many were removed.
func (l *Learner) Sweep(ctx context.Context) (int, error) {
	cutoff := l.now().Add(-l.cfg.Retention)
	recs, err := l.store.Scan(ctx, vectorstore.CollectionPerformance, nil)
	if err != nil {
		return 0, fmt.Errorf("scanning performance records: %w", err)
	}

	var expired []string
	for _, r := range recs {
		if recordFromStore(r).RecordedAt.Before(cutoff) {
			expired = append(expired, r.ID)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := l.store.Delete(ctx, vectorstore.CollectionPerformance, expired...); err != nil {
		return 0, fmt.Errorf("deleting expired records: %w", err)
	}
	recordsSwept.Add(float64(len(expired)))
	l.logger.Info("retention sweep removed performance records",
		zap.Int("removed", len(expired)),
		zap.Time("cutoff", cutoff.Truncate(time.Second)),
	)
	return len(expired), nil
}
