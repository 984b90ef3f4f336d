package embeddings

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainConfig configures an OpenAI-compatible embedding endpoint.
type LangChainConfig struct {
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int
}

// LangChainProvider embeds through langchaingo's OpenAI client. The same
// call serves documents and queries.
type LangChainProvider struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

// NewLangChainProvider builds an OpenAI-compatible embedder.
func NewLangChainProvider(cfg LangChainConfig) (*LangChainProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: openai embeddings need an explicit dimension", ErrInvalidConfig)
	}

	opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &LangChainProvider{embedder: embedder, model: cfg.Model, dimension: cfg.Dimension}, nil
}

// Embed embeds one text.
func (p *LangChainProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request.
func (p *LangChainProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyInput
		}
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if err := checkBatch(vectors, texts, p.dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Dimension returns the configured output length.
func (p *LangChainProvider) Dimension() int { return p.dimension }

// Model returns the embedding model name.
func (p *LangChainProvider) Model() string { return p.model }

// Close is a no-op.
func (p *LangChainProvider) Close() error { return nil }
