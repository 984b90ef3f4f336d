// Package vectorstore provides vector storage implementations.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("contentfactory.vectorstore.chromem")

// errEmbedderDisabled is returned if chromem ever tries to embed text itself.
var errEmbedderDisabled = errors.New("chromem store only accepts precomputed embeddings")

// ChromemConfig holds configuration for the chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty keeps the DB in memory.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Dimension is the embedding length; must match the embedding provider.
	Dimension int
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable pure-Go vector database. Collections live in memory
// and, when a Path is configured, are persisted to gob files on every write.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
	clock  insertClock
}

// NewChromemStore creates a ChromemStore. A nil logger is replaced by a no-op logger.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandPath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem DB: %v", ErrConnectionFailed, err)
		}
		config.Path = path
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
		zap.Int("dimension", config.Dimension),
	)

	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc must never be called: every document carries its embedding.
// Passing nil instead would make chromem default to its OpenAI embedder.
func embeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errEmbedderDisabled
}

// Dimension returns the configured embedding length.
func (s *ChromemStore) Dimension() int {
	return s.config.Dimension
}

// Upsert writes records, replacing any existing record with the same id.
func (s *ChromemStore) Upsert(ctx context.Context, collectionName string, records ...Record) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("record_count", len(records)),
	)

	if len(records) == 0 {
		return ErrEmptyRecords
	}
	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i := range records {
		if err := records[i].validate(s.config.Dimension); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		docs[i] = chromem.Document{
			ID:        records[i].ID,
			Content:   records[i].Text,
			Metadata:  copyMetadata(records[i].Metadata, s.clock.next()),
			Embedding: append([]float32(nil), records[i].Embedding...),
		}
	}

	collection, err := s.db.GetOrCreateCollection(collectionName, nil, embeddingFunc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("getting/creating collection %s: %w", collectionName, err)
	}

	// AddDocuments replaces a document with the same id wholesale.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents to %s: %w", collectionName, err)
	}

	recordsWritten.WithLabelValues(collectionName).Add(float64(len(docs)))
	collectionSize.WithLabelValues(collectionName).Set(float64(collection.Count()))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("upserted records",
		zap.String("collection", collectionName),
		zap.Int("count", len(docs)),
	)
	return nil
}

// Query performs cosine similarity search over precomputed embeddings.
func (s *ChromemStore) Query(ctx context.Context, collectionName string, vector []float32, k int, filter Filter) ([]Match, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) != s.config.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d", ErrDimensionMismatch, len(vector), s.config.Dimension)
	}

	collection := s.db.GetCollection(collectionName, embeddingFunc)
	if collection == nil {
		span.SetAttributes(attribute.Int("results_count", 0))
		return []Match{}, nil
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return []Match{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.QueryEmbedding(ctx, vector, k, filter, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collectionName, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			Record:     fromChromem(collectionName, r.ID, r.Content, r.Metadata, r.Embedding),
			Similarity: r.Similarity,
		}
	}

	queriesTotal.WithLabelValues(collectionName).Inc()
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Get returns a record by id.
func (s *ChromemStore) Get(ctx context.Context, collectionName, id string) (*Record, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Get")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collectionName), attribute.String("id", id))

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	collection := s.db.GetCollection(collectionName, embeddingFunc)
	if collection == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collectionName, id)
	}
	doc, err := collection.GetByID(ctx, id)
	if err != nil {
		// chromem reports a missing id as a plain error.
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collectionName, id)
	}
	rec := fromChromem(collectionName, doc.ID, doc.Content, doc.Metadata, doc.Embedding)
	return &rec, nil
}

// Delete removes records by id.
func (s *ChromemStore) Delete(ctx context.Context, collectionName string, ids ...string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Delete")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("id_count", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}
	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}
	collection := s.db.GetCollection(collectionName, embeddingFunc)
	if collection == nil {
		return nil
	}
	present := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := collection.GetByID(ctx, id); err == nil {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := collection.Delete(ctx, nil, nil, present...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting from %s: %w", collectionName, err)
	}

	collectionSize.WithLabelValues(collectionName).Set(float64(collection.Count()))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Scan returns every record in the collection that matches filter.
func (s *ChromemStore) Scan(ctx context.Context, collectionName string, filter Filter) ([]Record, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Scan")
	defer span.End()

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	collection := s.db.GetCollection(collectionName, embeddingFunc)
	if collection == nil {
		return []Record{}, nil
	}
	count := collection.Count()
	if count == 0 {
		return []Record{}, nil
	}

	// chromem has no listing API; a full-width query over any unit vector
	// returns every matching document.
	probe := make([]float32, s.config.Dimension)
	probe[0] = 1
	results, err := collection.QueryEmbedding(ctx, probe, count, filter, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scanning %s: %w", collectionName, err)
	}

	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = fromChromem(collectionName, r.ID, r.Content, r.Metadata, r.Embedding)
	}
	span.SetAttributes(attribute.Int("results_count", len(records)))
	return records, nil
}

// Stats reports the record count of one collection.
func (s *ChromemStore) Stats(ctx context.Context, collectionName string) (CollectionStats, error) {
	if err := ValidateCollectionName(collectionName); err != nil {
		return CollectionStats{}, err
	}
	stats := CollectionStats{Name: collectionName, Dimension: s.config.Dimension}
	if collection := s.db.GetCollection(collectionName, embeddingFunc); collection != nil {
		stats.Exists = true
		stats.Count = collection.Count()
	}
	collectionSize.WithLabelValues(collectionName).Set(float64(stats.Count))
	return stats, nil
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}

func fromChromem(collection, id, content string, meta map[string]string, embedding []float32) Record {
	md := make(map[string]string, len(meta))
	for k, v := range meta {
		if k != MetaInsertedAt {
			md[k] = v
		}
	}
	return Record{
		ID:         id,
		Collection: collection,
		Text:       content,
		Embedding:  embedding,
		Metadata:   md,
		InsertedAt: parseInsertedAt(meta),
	}
}
