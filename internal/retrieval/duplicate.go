package retrieval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// DuplicateCheck is the outcome of comparing a run input with past
// campaigns. It is derived and never stored.
type DuplicateCheck struct {
	IsDuplicate bool                `json:"is_duplicate"`
	Nearest     []vectorstore.Match `json:"nearest"`
	Threshold   float32             `json:"threshold"`
}

// Top returns the closest past campaign, if any.
func (d DuplicateCheck) Top() (vectorstore.Match, bool) {
	if len(d.Nearest) == 0 {
		return vectorstore.Match{}, false
	}
	return d.Nearest[0], true
}

const duplicateNeighbours = 3

// CheckDuplicate compares input with the campaign records in history. A
// similarity at or above threshold is a duplicate.
func (s *Service) CheckDuplicate(ctx context.Context, input string, threshold float32) (DuplicateCheck, error) {
	if threshold <= 0 || threshold > 1 {
		return DuplicateCheck{}, fmt.Errorf("%w: duplicate threshold %v outside (0, 1]", ErrInvalidQuery, threshold)
	}
	nearest, err := s.Retrieve(ctx, Query{
		Text:          input,
		Collection:    vectorstore.CollectionHistory,
		K:             duplicateNeighbours,
		MinSimilarity: -1,
		Filter:        vectorstore.Filter{MetaContentType: string(content.TypeCampaign)},
	})
	if err != nil {
		return DuplicateCheck{}, err
	}
	check := DuplicateCheck{Nearest: nearest, Threshold: threshold}
	if top, ok := check.Top(); ok && top.Similarity >= threshold {
		check.IsDuplicate = true
	}
	return check, nil
}

// StyleExamples returns promoted examples of one content type whose
// recorded performance score is at least minScore.
func (s *Service) StyleExamples(ctx context.Context, text string, t content.Type, minScore float64, k int) ([]vectorstore.Match, error) {
	return s.retrieveScored(ctx, Query{
		Text:          text,
		Collection:    vectorstore.CollectionStyleExamples,
		K:             k,
		MinSimilarity: -1,
		Filter:        vectorstore.Filter{MetaContentType: string(t)},
	}, minScore)
}

// scoreOverfetch is how many candidates per wanted match a scored query
// asks the store for.
const scoreOverfetch = 4

// retrieveScored runs q and keeps the first q.K matches whose
// performance_score is at least minScore. Matches without a parseable
// score are dropped.
func (s *Service) retrieveScored(ctx context.Context, q Query, minScore float64) ([]vectorstore.Match, error) {
	k := q.K
	if k <= 0 {
		k = s.cfg.DefaultK
	}
	q.K = k * scoreOverfetch
	matches, err := s.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, m := range matches {
		score, err := strconv.ParseFloat(m.Metadata[MetaPerformanceScore], 64)
		if err != nil || score < minScore {
			continue
		}
		out = append(out, m)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Metadata keys shared by writers and readers of the store.
const (
	MetaContentType      = "content_type"
	MetaPerformanceScore = "performance_score"
	MetaCategory         = "category"
)

// Knowledge base categories.
const (
	CategoryProduct    = "product"
	CategoryTechnical  = "technical"
	CategoryEnterprise = "enterprise"
	CategoryPricing    = "pricing"
	CategoryBrand      = "brand"
	CategoryStyle      = "style"
)
