// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/contentfactory/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty input text.
	ErrEmptyInput = errors.New("empty input text")

	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the backend failed to produce a vector.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrDimensionMismatch indicates a vector of unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Provider maps text to fixed-length vectors.
//
// Implementations must be stable: the same text under the same model always
// yields the same vector. Queries and stored documents use the same mapping,
// so a stored text retrieved by itself scores a similarity of 1.0.
type Provider interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the fixed output length.
	Dimension() int
	// Model names the model version the vectors belong to.
	Model() string
	// Close releases resources held by the provider.
	Close() error
}

// NewProvider creates the configured provider wrapped in an LRU cache.
func NewProvider(cfg config.EmbeddingsConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case "hash", "":
		base, err = NewHashProvider(cfg.Dimension)
	case "fastembed":
		base, err = NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "openai":
		base, err = NewLangChainProvider(LangChainConfig{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey.Value(),
			Dimension: cfg.Dimension,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Dimension > 0 && base.Dimension() != cfg.Dimension {
		_ = base.Close()
		return nil, fmt.Errorf("%w: model %s produces %d dimensions, config says %d",
			ErrDimensionMismatch, base.Model(), base.Dimension(), cfg.Dimension)
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", base.Model()),
		zap.Int("dimension", base.Dimension()),
		zap.Int("cache_size", cfg.CacheSize),
	)

	if cfg.CacheSize <= 0 {
		return instrument(base, logger), nil
	}
	return NewCachedProvider(instrument(base, logger), cfg.CacheSize)
}

// checkBatch validates a batch result against its inputs.
func checkBatch(vectors [][]float32, texts []string, dim int) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}
