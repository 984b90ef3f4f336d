package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 4

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	s, err := NewChromemStore(ChromemConfig{Dimension: testDim}, nil)
	require.NoError(t, err)
	return s
}

func unit(i int) []float32 {
	v := make([]float32, testDim)
	v[i] = 1
	return v
}

func TestNewChromemStore_RejectsZeroDimension(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.Upsert(ctx, CollectionHistory, Record{
		ID:        "seedance_blog_1",
		Text:      "Seedance ships text-to-video",
		Embedding: unit(0),
		Metadata:  map[string]string{"content_type": "blog"},
	})
	require.NoError(t, err)

	rec, err := s.Get(ctx, CollectionHistory, "seedance_blog_1")
	require.NoError(t, err)
	assert.Equal(t, "Seedance ships text-to-video", rec.Text)
	assert.Equal(t, "blog", rec.Metadata["content_type"])
	assert.NotContains(t, rec.Metadata, MetaInsertedAt)
	assert.False(t, rec.InsertedAt.IsZero())

	_, err = s.Get(ctx, CollectionHistory, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, CollectionStyleExamples, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChromemStore_UpsertReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, CollectionHistory, Record{
		ID: "a", Text: "v1", Embedding: unit(0), Metadata: map[string]string{"old": "yes"},
	}))
	require.NoError(t, s.Upsert(ctx, CollectionHistory, Record{
		ID: "a", Text: "v2", Embedding: unit(1),
	}))

	rec, err := s.Get(ctx, CollectionHistory, "a")
	require.NoError(t, err)
	assert.Equal(t, "v2", rec.Text)
	assert.NotContains(t, rec.Metadata, "old")

	stats, err := s.Stats(ctx, CollectionHistory)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
}

func TestChromemStore_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	assert.ErrorIs(t, s.Upsert(ctx, CollectionHistory), ErrEmptyRecords)
	assert.ErrorIs(t, s.Upsert(ctx, CollectionHistory, Record{ID: "x", Embedding: []float32{1, 0}}), ErrDimensionMismatch)
	assert.ErrorIs(t, s.Upsert(ctx, CollectionHistory, Record{Embedding: unit(0)}), ErrInvalidRecord)
	assert.ErrorIs(t, s.Upsert(ctx, "Bad-Name", Record{ID: "x", Embedding: unit(0)}), ErrInvalidCollectionName)
}

func TestChromemStore_QueryOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, CollectionKnowledgeBase,
		Record{ID: "exact", Text: "exact", Embedding: unit(0)},
		Record{ID: "near", Text: "near", Embedding: []float32{0.8, 0.6, 0, 0}},
		Record{ID: "far", Text: "far", Embedding: unit(2)},
	))

	matches, err := s.Query(ctx, CollectionKnowledgeBase, unit(0), 10, nil)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "exact", matches[0].ID)
	assert.Equal(t, "near", matches[1].ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-5)
	assert.InDelta(t, 0.8, matches[1].Similarity, 1e-5)

	top, err := s.Query(ctx, CollectionKnowledgeBase, unit(0), 1, nil)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "exact", top[0].ID)
}

func TestChromemStore_QueryFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, CollectionStyleExamples,
		Record{ID: "b", Embedding: unit(0), Metadata: map[string]string{"content_type": "blog"}},
		Record{ID: "x", Embedding: unit(0), Metadata: map[string]string{"content_type": "x_dev"}},
	))

	matches, err := s.Query(ctx, CollectionStyleExamples, unit(0), 5, Filter{"content_type": "x_dev"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "x", matches[0].ID)
}

func TestChromemStore_QueryMissingCollectionIsEmpty(t *testing.T) {
	s := newTestStore(t)
	matches, err := s.Query(context.Background(), CollectionHistory, unit(0), 3, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = s.Query(context.Background(), CollectionHistory, []float32{1}, 3, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStore_InsertedAtStrictlyIncreases(t *testing.T) {
	fixed := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = time.Now })

	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Upsert(ctx, CollectionHistory, Record{ID: "first", Embedding: unit(0)}))
	require.NoError(t, s.Upsert(ctx, CollectionHistory, Record{ID: "second", Embedding: unit(0)}))

	first, err := s.Get(ctx, CollectionHistory, "first")
	require.NoError(t, err)
	second, err := s.Get(ctx, CollectionHistory, "second")
	require.NoError(t, err)
	assert.True(t, second.InsertedAt.After(first.InsertedAt))
}

func TestChromemStore_DeleteAndScan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, CollectionPerformance,
		Record{ID: "m1", Embedding: unit(0), Metadata: map[string]string{"content_id": "c1"}},
		Record{ID: "m2", Embedding: unit(1), Metadata: map[string]string{"content_id": "c1"}},
		Record{ID: "m3", Embedding: unit(2), Metadata: map[string]string{"content_id": "c2"}},
	))

	all, err := s.Scan(ctx, CollectionPerformance, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	c1, err := s.Scan(ctx, CollectionPerformance, Filter{"content_id": "c1"})
	require.NoError(t, err)
	assert.Len(t, c1, 2)

	require.NoError(t, s.Delete(ctx, CollectionPerformance, "m1", "does-not-exist"))
	stats, err := s.Stats(ctx, CollectionPerformance)
	require.NoError(t, err)
	assert.True(t, stats.Exists)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, testDim, stats.Dimension)

	// Deleting from a collection that was never created is a no-op.
	assert.NoError(t, s.Delete(ctx, CollectionBrandAssets, "x"))
	empty, err := s.Stats(ctx, CollectionBrandAssets)
	require.NoError(t, err)
	assert.False(t, empty.Exists)
}

func TestChromemStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewChromemStore(ChromemConfig{Path: dir, Dimension: testDim}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, CollectionBrandAssets, Record{ID: "logo", Text: "logo usage", Embedding: unit(3)}))

	reopened, err := NewChromemStore(ChromemConfig{Path: dir, Dimension: testDim}, nil)
	require.NoError(t, err)
	rec, err := reopened.Get(ctx, CollectionBrandAssets, "logo")
	require.NoError(t, err)
	assert.Equal(t, "logo usage", rec.Text)
}

func TestValidateCollectionName(t *testing.T) {
	for _, name := range Collections {
		assert.NoError(t, ValidateCollectionName(name))
	}
	assert.Error(t, ValidateCollectionName(""))
	assert.Error(t, ValidateCollectionName("../etc"))
	assert.Error(t, ValidateCollectionName("History"))
}
