package embeddings

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedProvider memoizes vectors by text. Retrieval embeds the same brief
// several times per run (one plan per agent), so most lookups hit.
type CachedProvider struct {
	inner   Provider
	cache   *lru.Cache[string, []float32]
	metrics *Metrics
}

// NewCachedProvider wraps inner with an LRU cache of the given size.
func NewCachedProvider(inner Provider, size int) (*CachedProvider, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: cache size must be positive", ErrInvalidConfig)
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &CachedProvider{inner: inner, cache: c, metrics: NewMetrics(nil)}, nil
}

// Embed returns a cached copy when present.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		c.metrics.RecordCacheLookup(ctx, c.inner.Model(), true)
		return clone(v), nil
	}
	c.metrics.RecordCacheLookup(ctx, c.inner.Model(), false)

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, clone(v))
	return v, nil
}

// EmbedBatch sends only the uncached texts to the inner provider.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = clone(v)
			continue
		}
		missing = append(missing, t)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := checkBatch(vectors, missing, c.inner.Dimension()); err != nil {
		return nil, err
	}
	for j, v := range vectors {
		c.cache.Add(missing[j], clone(v))
		out[slots[j]] = v
	}
	return out, nil
}

// Dimension delegates to the wrapped provider.
func (c *CachedProvider) Dimension() int { return c.inner.Dimension() }

// Model delegates to the wrapped provider.
func (c *CachedProvider) Model() string { return c.inner.Model() }

// Len reports the number of cached vectors.
func (c *CachedProvider) Len() int { return c.cache.Len() }

// Close purges the cache and closes the wrapped provider.
func (c *CachedProvider) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
