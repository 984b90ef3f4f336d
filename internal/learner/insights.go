package learner

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// metaCreatedAt is stamped on history records by the run controller.
const metaCreatedAt = "created_at"

const (
	defaultTrendDays = 30
	insightPatterns  = 5
	maxImprovements  = 3
	exampleLen       = 100

	// lowScore is the average score under which a content type needs work.
	lowScore = 0.5

	minStyleExamples = 10
	minKnowledge     = 20
)

// Trends summarizes what was produced and how it scored over a window.
type Trends struct {
	PeriodDays         int                      `json:"period_days"`
	Since              time.Time                `json:"since"`
	Runs               int                      `json:"runs"`
	TotalContent       int                      `json:"total_content_created"`
	ContentByType      map[content.Type]int     `json:"content_by_type"`
	AverageScoreByType map[content.Type]float64 `json:"average_performance_by_type"`
}

// Trends counts the artifacts written to history in the last days days
// and averages the performance scores recorded in the same window.
func (l *Learner) Trends(ctx context.Context, days int) (*Trends, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	since := l.now().Add(-time.Duration(days) * 24 * time.Hour)
	out := &Trends{
		PeriodDays:         days,
		Since:              since.UTC(),
		ContentByType:      map[content.Type]int{},
		AverageScoreByType: map[content.Type]float64{},
	}

	history, err := l.store.Scan(ctx, vectorstore.CollectionHistory, nil)
	if err != nil {
		return nil, fmt.Errorf("scanning history: %w", err)
	}
	for _, r := range history {
		if createdAt(r).Before(since) {
			continue
		}
		t := content.Type(r.Metadata[retrieval.MetaContentType])
		switch {
		case t == content.TypeCampaign:
			out.Runs++
		case artifactType(t):
			out.TotalContent++
			out.ContentByType[t]++
		}
	}

	avg, err := l.averageScores(ctx, since)
	if err != nil {
		return nil, err
	}
	out.AverageScoreByType = avg
	return out, nil
}

func createdAt(r vectorstore.Record) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, r.Metadata[metaCreatedAt]); err == nil {
		return ts
	}
	return r.InsertedAt
}

func artifactType(t content.Type) bool {
	_, err := content.ParseType(string(t))
	return err == nil
}

// averageScores averages performance scores per content type for records
// at or after since. A zero since includes everything.
func (l *Learner) averageScores(ctx context.Context, since time.Time) (map[content.Type]float64, error) {
	recs, err := l.store.Scan(ctx, vectorstore.CollectionPerformance, nil)
	if err != nil {
		return nil, fmt.Errorf("scanning performance records: %w", err)
	}
	sums := map[content.Type]float64{}
	counts := map[content.Type]int{}
	for _, r := range recs {
		pr := recordFromStore(r)
		if pr.ContentType == "" || pr.RecordedAt.Before(since) {
			continue
		}
		sums[pr.ContentType] += pr.Score
		counts[pr.ContentType]++
	}
	out := make(map[content.Type]float64, len(sums))
	for t, sum := range sums {
		out[t] = math.Round(sum/float64(counts[t])*100) / 100
	}
	return out, nil
}

// Pattern is one high performing artifact.
type Pattern struct {
	ContentID   string       `json:"content_id"`
	ContentType content.Type `json:"content_type"`
	Score       float64      `json:"score"`
	Example     string       `json:"example,omitempty"`
}

// Insights are what the learner suggests doing next.
type Insights struct {
	Patterns         []Pattern `json:"high_performing_patterns"`
	ImprovementAreas []string  `json:"improvement_areas"`
	Recommendations  []string  `json:"recommendations"`
}

// Insights describes the top performers, flags content types that score
// poorly and recommends growing thin collections.
func (l *Learner) Insights(ctx context.Context) (*Insights, error) {
	top, err := l.TopPerformers(ctx, "", insightPatterns)
	if err != nil {
		return nil, err
	}
	out := &Insights{Patterns: []Pattern{}, ImprovementAreas: []string{}, Recommendations: []string{}}
	for _, pr := range top {
		p := Pattern{ContentID: pr.ContentID, ContentType: pr.ContentType, Score: pr.Score}
		if rec, err := l.store.Get(ctx, vectorstore.CollectionHistory, pr.ContentID); err == nil {
			p.Example = excerpt(rec.Text)
		}
		out.Patterns = append(out.Patterns, p)
	}

	avg, err := l.averageScores(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	var low []content.Type
	for t, score := range avg {
		if score < lowScore {
			low = append(low, t)
		}
	}
	slices.SortFunc(low, func(a, b content.Type) int {
		if c := cmp.Compare(avg[a], avg[b]); c != 0 {
			return c
		}
		return strings.Compare(string(a), string(b))
	})
	for _, t := range low[:min(len(low), maxImprovements)] {
		out.ImprovementAreas = append(out.ImprovementAreas,
			fmt.Sprintf("content type %q averages %.2f, below %.2f", t, avg[t], lowScore))
	}

	style, err := l.store.Stats(ctx, vectorstore.CollectionStyleExamples)
	if err != nil {
		return nil, fmt.Errorf("reading style example stats: %w", err)
	}
	if style.Count < minStyleExamples {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("collect more performance data: %d style examples, want at least %d", style.Count, minStyleExamples))
	}
	kb, err := l.store.Stats(ctx, vectorstore.CollectionKnowledgeBase)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge base stats: %w", err)
	}
	if kb.Count < minKnowledge {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("expand the knowledge base with product documentation: %d entries, want at least %d", kb.Count, minKnowledge))
	}
	return out, nil
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= exampleLen {
		return s
	}
	return string(r[:exampleLen]) + "..."
}

// Report bundles collection statistics, trends, top performers and
// insights into one export.
type Report struct {
	GeneratedAt   time.Time                     `json:"generated_at"`
	Collections   []vectorstore.CollectionStats `json:"statistics"`
	Trends        *Trends                       `json:"trends"`
	TopPerformers []PerformanceRecord           `json:"top_performers"`
	Insights      *Insights                     `json:"insights"`
}

// Report builds the analytics export over the default trend window.
func (l *Learner) Report(ctx context.Context) (*Report, error) {
	out := &Report{GeneratedAt: l.now().UTC()}
	for _, name := range vectorstore.Collections {
		st, err := l.store.Stats(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("reading %s stats: %w", name, err)
		}
		out.Collections = append(out.Collections, st)
	}
	var err error
	if out.Trends, err = l.Trends(ctx, defaultTrendDays); err != nil {
		return nil, err
	}
	if out.TopPerformers, err = l.TopPerformers(ctx, "", 10); err != nil {
		return nil, err
	}
	if out.Insights, err = l.Insights(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
