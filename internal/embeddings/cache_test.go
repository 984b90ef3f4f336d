package embeddings

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/contentfactory/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	*HashProvider
	calls int
	texts int
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	c.texts++
	return c.HashProvider.Embed(ctx, text)
}

func (c *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts += len(texts)
	return c.HashProvider.EmbedBatch(ctx, texts)
}

func newCounting(t *testing.T) *countingProvider {
	t.Helper()
	h, err := NewHashProvider(16)
	require.NoError(t, err)
	return &countingProvider{HashProvider: h}
}

func TestCachedProvider_HitsSkipInner(t *testing.T) {
	inner := newCounting(t)
	c, err := NewCachedProvider(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.Embed(ctx, "brief")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "brief")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, c.Len())
}

func TestCachedProvider_ReturnsCopies(t *testing.T) {
	c, err := NewCachedProvider(newCounting(t), 8)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := c.Embed(ctx, "brief")
	require.NoError(t, err)
	v[0] = 42

	again, err := c.Embed(ctx, "brief")
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), again[0])
}

func TestCachedProvider_BatchOnlyMisses(t *testing.T) {
	inner := newCounting(t)
	c, err := NewCachedProvider(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Embed(ctx, "a")
	require.NoError(t, err)

	out, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 3, inner.texts, "a was cached, only b and c embedded")

	direct, _ := inner.HashProvider.Embed(ctx, "c")
	assert.Equal(t, direct, out[2])
}

func TestCachedProvider_InvalidSize(t *testing.T) {
	_, err := NewCachedProvider(newCounting(t), 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.EmbeddingsConfig{Provider: "hash", Dimension: 32, CacheSize: 4}, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, 32, p.Dimension())
	assert.IsType(t, &CachedProvider{}, p)

	uncached, err := NewProvider(config.EmbeddingsConfig{Provider: "hash", Dimension: 32}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fnv-hash-v1-32", uncached.Model())

	_, err = NewProvider(config.EmbeddingsConfig{Provider: "word2vec", Dimension: 32}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
