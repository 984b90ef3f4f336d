package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/contentfactory/internal/config"
	"go.uber.org/zap"
)

// NewStore builds the configured Store with the given embedding dimension.
func NewStore(cfg config.VectorStoreConfig, dimension int, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "", "chromem":
		return NewChromemStore(ChromemConfig{
			Path:      cfg.Chromem.Path,
			Compress:  cfg.Chromem.Compress,
			Dimension: dimension,
		}, logger)
	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:      cfg.Qdrant.Host,
			Port:      cfg.Qdrant.Port,
			APIKey:    cfg.Qdrant.APIKey.Value(),
			UseTLS:    cfg.Qdrant.UseTLS,
			Dimension: dimension,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown vector store provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
