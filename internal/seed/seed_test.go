package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/embeddings"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

func TestDefaults(t *testing.T) {
	d, err := Defaults()
	require.NoError(t, err)
	assert.NotEmpty(t, d.KnowledgeBase)
	assert.NotEmpty(t, d.BrandAssets)

	types := map[string]bool{}
	for _, e := range d.StyleExamples {
		_, err := content.ParseType(e.Metadata[retrieval.MetaContentType])
		require.NoError(t, err, e.ID)
		assert.NotEmpty(t, e.Metadata[retrieval.MetaPerformanceScore], e.ID)
		types[e.Metadata[retrieval.MetaContentType]] = true
	}
	for _, wt := range content.WriterTypes {
		assert.True(t, types[string(wt)], "no style example for %s", wt)
	}

	categories := map[string]bool{}
	for _, e := range d.KnowledgeBase {
		categories[e.Metadata[retrieval.MetaCategory]] = true
	}
	for _, c := range []string{
		retrieval.CategoryProduct, retrieval.CategoryTechnical, retrieval.CategoryEnterprise,
		retrieval.CategoryPricing, retrieval.CategoryBrand, retrieval.CategoryStyle,
	} {
		assert.True(t, categories[c], "no knowledge entry for category %s", c)
	}
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("knowledge_base: [{id: a}]"))
	assert.ErrorContains(t, err, "id and text are required")

	_, err = Parse([]byte("brand_assets: [{id: a, text: x}, {id: a, text: y}]"))
	assert.ErrorContains(t, err, "duplicate id")

	_, err = Parse([]byte("knowledge_base: {"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Dimension: 32}, nil)
	require.NoError(t, err)
	emb, err := embeddings.NewHashProvider(32)
	require.NoError(t, err)

	d, err := Defaults()
	require.NoError(t, err)

	counts, err := Load(ctx, d, store, emb)
	require.NoError(t, err)
	assert.Equal(t, len(d.KnowledgeBase), counts[vectorstore.CollectionKnowledgeBase])
	assert.Equal(t, len(d.StyleExamples), counts[vectorstore.CollectionStyleExamples])

	// Seeding twice overwrites.
	_, err = Load(ctx, d, store, emb)
	require.NoError(t, err)
	stats, err := store.Stats(ctx, vectorstore.CollectionBrandAssets)
	require.NoError(t, err)
	assert.Equal(t, len(d.BrandAssets), stats.Count)

	svc, err := retrieval.NewService(store, emb, retrieval.Config{}, nil)
	require.NoError(t, err)
	examples, err := svc.StyleExamples(ctx, "text-to-video for teams", content.TypeLinkedIn, 0.8, 3)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "style_seed_linkedin_1", examples[0].ID)
	assert.Equal(t, "true", examples[0].Metadata[MetaSeeded])
}
