// Package retrieval finds stored records similar to a query text.
//
// The same mechanism serves prompt grounding and duplicate detection:
// a duplicate check is a retrieval against the history collection with a
// high similarity floor.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contentfactory/internal/embeddings"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

var (
	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("retrieval: empty query")

	// ErrInvalidQuery is returned for out-of-range parameters.
	ErrInvalidQuery = errors.New("retrieval: invalid query")

	// ErrUnavailable wraps embedding or store failures that outlived retries.
	ErrUnavailable = errors.New("retrieval: backend unavailable")
)

// Config tunes the service.
type Config struct {
	// DefaultK applies when a query leaves K unset. Default: 5
	DefaultK int

	// MaxRetries bounds retries of a failed embed or query. Default: 3.
	// Negative disables retries.
	MaxRetries int

	// Backoff is the first retry delay; it doubles up to 20x. Default: 200ms
	Backoff time.Duration
}

func (c *Config) applyDefaults() {
	if c.DefaultK <= 0 {
		c.DefaultK = 5
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 200 * time.Millisecond
	}
}

// Query describes one retrieval.
type Query struct {
	Text          string
	Collection    string
	K             int
	MinSimilarity float32
	Filter        vectorstore.Filter
}

// Service retrieves context from the vector store. It never writes.
type Service struct {
	store    vectorstore.Store
	embedder embeddings.Provider
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer

	embedExec failsafe.Executor[[]float32]
	queryExec failsafe.Executor[[]vectorstore.Match]
}

// NewService creates a retrieval service over an explicit store handle.
func NewService(store vectorstore.Store, embedder embeddings.Provider, cfg Config, logger *zap.Logger) (*Service, error) {
	if store == nil || embedder == nil {
		return nil, fmt.Errorf("%w: store and embedder are required", ErrInvalidQuery)
	}
	if store.Dimension() != embedder.Dimension() {
		return nil, fmt.Errorf("%w: store dimension %d, embedder dimension %d",
			vectorstore.ErrDimensionMismatch, store.Dimension(), embedder.Dimension())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	s := &Service{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("contentfactory.retrieval"),
	}
	s.embedExec = failsafe.With[[]float32](newRetryPolicy[[]float32](cfg, logger))
	s.queryExec = failsafe.With[[]vectorstore.Match](newRetryPolicy[[]vectorstore.Match](cfg, logger))
	return s, nil
}

func newRetryPolicy[T any](cfg Config, logger *zap.Logger) retrypolicy.RetryPolicy[T] {
	return retrypolicy.NewBuilder[T]().
		WithBackoff(cfg.Backoff, cfg.Backoff*20).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ T, err error) bool { return retryable(err) }).
		OnRetry(func(e failsafe.ExecutionEvent[T]) {
			logger.Debug("retrying retrieval backend call",
				zap.Int("attempt", e.Attempts()),
				zap.Error(e.LastError()),
			)
		}).
		Build()
}

// retryable reports whether err is worth another attempt. Caller mistakes
// and cancellation are final.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	for _, final := range []error{
		context.Canceled,
		context.DeadlineExceeded,
		embeddings.ErrEmptyInput,
		embeddings.ErrInvalidConfig,
		vectorstore.ErrDimensionMismatch,
		vectorstore.ErrInvalidCollectionName,
		vectorstore.ErrInvalidConfig,
	} {
		if errors.Is(err, final) {
			return false
		}
	}
	return true
}

// Store returns the underlying store handle.
func (s *Service) Store() vectorstore.Store { return s.store }

// Embedder returns the embedding provider.
func (s *Service) Embedder() embeddings.Provider { return s.embedder }

// Embed embeds text with retries.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := s.embedExec.WithContext(ctx).Get(func() ([]float32, error) {
		return s.embedder.Embed(ctx, text)
	})
	if err != nil {
		return nil, unavailable("embed", err)
	}
	return v, nil
}

// Retrieve returns at most K records from the collection whose similarity
// to the query is at least MinSimilarity, most similar first. Equal
// similarities are ordered by most recent insertion. An empty result is
// not an error.
func (s *Service) Retrieve(ctx context.Context, q Query) ([]vectorstore.Match, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	if q.MinSimilarity < -1 || q.MinSimilarity > 1 {
		return nil, fmt.Errorf("%w: min similarity %v outside [-1, 1]", ErrInvalidQuery, q.MinSimilarity)
	}
	if err := vectorstore.ValidateCollectionName(q.Collection); err != nil {
		return nil, err
	}
	k := q.K
	if k <= 0 {
		k = s.cfg.DefaultK
	}

	ctx, span := s.tracer.Start(ctx, "retrieval.Retrieve", trace.WithAttributes(
		attribute.String("collection", q.Collection),
		attribute.Int("k", k),
		attribute.Float64("min_similarity", float64(q.MinSimilarity)),
	))
	defer span.End()

	vector, err := s.Embed(ctx, q.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		return nil, err
	}

	// Overfetch so that ties at the cut-off can be broken by recency. The
	// store returns an arbitrary subset of equally similar records, so the
	// window widens until the tie at the k-th place is fully loaded.
	fetch := k*2 + 8
	var (
		matches []vectorstore.Match
		out     []vectorstore.Match
		limit   = -1
	)
	for {
		matches, err = s.queryExec.WithContext(ctx).Get(func() ([]vectorstore.Match, error) {
			return s.store.Query(ctx, q.Collection, vector, fetch, q.Filter)
		})
		if err != nil {
			err = unavailable("query", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "query failed")
			return nil, err
		}
		out = rank(matches, k, q.MinSimilarity)
		if !tiedAtBoundary(matches, out, k, fetch) {
			break
		}
		if limit < 0 {
			stats, err := s.store.Stats(ctx, q.Collection)
			if err != nil {
				err = unavailable("stats", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, "stats failed")
				return nil, err
			}
			limit = stats.Count
		}
		if fetch >= limit {
			break
		}
		fetch = min(fetch*2, limit)
	}

	span.SetAttributes(attribute.Int("results", len(out)), attribute.Int("fetched", fetch))
	s.logger.Debug("retrieved context",
		zap.String("collection", q.Collection),
		zap.Int("candidates", len(matches)),
		zap.Int("results", len(out)),
	)
	return out, nil
}

// rank normalizes similarities, drops those under the floor, orders by
// similarity then recency, and truncates to k.
func rank(matches []vectorstore.Match, k int, floor float32) []vectorstore.Match {
	out := make([]vectorstore.Match, 0, len(matches))
	for _, m := range matches {
		m.Similarity = roundSimilarity(m.Similarity)
		if m.Similarity < floor {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].InsertedAt.After(out[j].InsertedAt)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// tiedAtBoundary reports whether a full window ended inside the tie at the
// k-th kept similarity, meaning newer tied records may not have been fetched.
func tiedAtBoundary(matches, kept []vectorstore.Match, k, fetch int) bool {
	if len(matches) < fetch || len(kept) < k || len(matches) == 0 {
		return false
	}
	lowest := matches[0].Similarity
	for _, m := range matches[1:] {
		lowest = min(lowest, m.Similarity)
	}
	return roundSimilarity(lowest) >= kept[k-1].Similarity
}

// roundSimilarity removes float noise so an identical text scores exactly 1.
func roundSimilarity(s float32) float32 {
	r := math.Round(float64(s)*1e6) / 1e6
	return float32(math.Max(-1, math.Min(1, r)))
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || !retryable(err) {
		return fmt.Errorf("retrieval %s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
