package vectorstore

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Reserved metadata keys maintained by the store.
const (
	MetaInsertedAt = "inserted_at"
)

// Record is a stored item: an id, its embedding, the source text, and string metadata.
type Record struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection,omitempty"`
	Text       string            `json:"text"`
	Embedding  []float32         `json:"-"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	InsertedAt time.Time         `json:"inserted_at"`
}

// Match is a record with its cosine similarity to the query vector.
type Match struct {
	Record
	Similarity float32 `json:"similarity"`
}

// CollectionStats reports the size of one collection.
type CollectionStats struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
	Exists    bool   `json:"exists"`
}

// validate checks a record against the store dimension.
func (r *Record) validate(dim int) error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if len(r.Embedding) != dim {
		return fmt.Errorf("%w: record %s has %d dimensions, store expects %d", ErrDimensionMismatch, r.ID, len(r.Embedding), dim)
	}
	return nil
}

// copyMetadata returns a copy of m with the insertion stamp set.
func copyMetadata(m map[string]string, insertedAt time.Time) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[MetaInsertedAt] = strconv.FormatInt(insertedAt.UnixNano(), 10)
	return out
}

// parseInsertedAt reads the insertion stamp written by copyMetadata.
func parseInsertedAt(m map[string]string) time.Time {
	ns, err := strconv.ParseInt(m[MetaInsertedAt], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// timeNow is a variable for testing purposes.
var timeNow = time.Now

// insertClock hands out strictly increasing insertion times so that
// "most recent insertion first" is a total order even within one nanosecond.
type insertClock struct {
	mu   sync.Mutex
	last int64
}

func (c *insertClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := timeNow().UnixNano()
	if now <= c.last {
		now = c.last + 1
	}
	c.last = now
	return time.Unix(0, now).UTC()
}
