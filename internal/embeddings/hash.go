package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashProvider is a deterministic, offline embedding based on feature hashing
// of word unigrams and bigrams. It needs no model download and is the default
// for tests and local runs. Texts sharing vocabulary land near each other;
// identical texts map to identical unit vectors.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a HashProvider with the given output length.
func NewHashProvider(dimension int) (*HashProvider, error) {
	if dimension < 8 {
		return nil, fmt.Errorf("%w: hash dimension must be at least 8, got %d", ErrInvalidConfig, dimension)
	}
	return &HashProvider{dimension: dimension}, nil
}

// Embed hashes the tokens of text into a unit vector.
func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyInput
	}

	acc := make([]float64, p.dimension)
	add := func(feature string, weight float64) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dimension))
		// The top bit picks the sign so collisions cancel instead of pile up.
		if sum>>63 == 1 {
			weight = -weight
		}
		acc[idx] += weight
	}
	for i, tok := range tokens {
		add("u:"+tok, 1)
		if i > 0 {
			add("b:"+tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		// Every feature cancelled out; fall back to a fixed axis.
		acc[0], norm = 1, 1
	}

	out := make([]float32, p.dimension)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedBatch embeds each text in order.
func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimension returns the output length.
func (p *HashProvider) Dimension() int { return p.dimension }

// Model identifies the hashing scheme.
func (p *HashProvider) Model() string { return fmt.Sprintf("fnv-hash-v1-%d", p.dimension) }

// Close is a no-op.
func (p *HashProvider) Close() error { return nil }

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
