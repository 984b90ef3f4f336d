// Package vectorstore defines the interface for vector storage operations.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrNotFound is returned when a record id is not present in a collection.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyRecords indicates an upsert with nothing to write.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a vector whose length differs from the store's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidRecord indicates a record missing its id.
	ErrInvalidRecord = errors.New("invalid record")
)

// Collection names used by contentfactory.
const (
	CollectionHistory       = "history"
	CollectionKnowledgeBase = "knowledge_base"
	CollectionStyleExamples = "style_examples"
	CollectionBrandAssets   = "brand_assets"
	CollectionPerformance   = "performance"
)

// Collections lists every collection the store is expected to hold.
var Collections = []string{
	CollectionHistory,
	CollectionKnowledgeBase,
	CollectionStyleExamples,
	CollectionBrandAssets,
	CollectionPerformance,
}

// collectionNamePattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names outside ^[a-z0-9_]{1,64}$.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Filter is an exact-match filter over record metadata. All pairs must match.
type Filter map[string]string

// Store is the interface for vector storage operations.
//
// Stores hold records whose embeddings were computed by the caller; a store
// never embeds text itself. Every collection in a store shares one dimension.
//
// Records are never mutated in place. Upsert of an existing id replaces the whole
// record, and a store write for one id never touches any other id, so concurrent
// writers of distinct ids need no coordination beyond the store.
type Store interface {
	// Upsert writes records into a collection, creating it if needed.
	// InsertedAt is stamped by the store and strictly increases per store.
	Upsert(ctx context.Context, collection string, records ...Record) error

	// Query returns up to k records nearest to vector, highest similarity first.
	// An empty or missing collection yields an empty result, not an error.
	Query(ctx context.Context, collection string, vector []float32, k int, filter Filter) ([]Match, error)

	// Get returns one record by id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Record, error)

	// Delete removes records by id. Missing ids are ignored.
	Delete(ctx context.Context, collection string, ids ...string) error

	// Scan returns every record matching filter. Intended for maintenance paths
	// (retention sweeps, analytics), not for the request path.
	Scan(ctx context.Context, collection string, filter Filter) ([]Record, error)

	// Stats reports record counts for a collection.
	Stats(ctx context.Context, collection string) (CollectionStats, error)

	// Dimension is the embedding length every record must have.
	Dimension() int

	// Close releases backend resources.
	Close() error
}
