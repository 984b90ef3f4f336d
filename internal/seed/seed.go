// Package seed loads the default knowledge base, style examples and brand
// assets into the vector store.
package seed

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/contentfactory/internal/embeddings"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

//go:embed defaults.yaml
var defaults []byte

// Entry is one seed record.
type Entry struct {
	ID       string            `yaml:"id"`
	Text     string            `yaml:"text"`
	Metadata map[string]string `yaml:"metadata"`
}

// Data is a seed file: entries keyed by collection.
type Data struct {
	KnowledgeBase []Entry `yaml:"knowledge_base"`
	StyleExamples []Entry `yaml:"style_examples"`
	BrandAssets   []Entry `yaml:"brand_assets"`
}

// MetaSeeded marks records written by Load.
const MetaSeeded = "seeded"

// Defaults returns the embedded seed data.
func Defaults() (*Data, error) {
	return Parse(defaults)
}

// Parse decodes and validates seed YAML.
func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parsing seed data: %w", err)
	}
	seen := make(map[string]bool)
	for _, set := range d.sets() {
		for i, e := range set.entries {
			if e.ID == "" || e.Text == "" {
				return nil, fmt.Errorf("seed %s[%d]: id and text are required", set.collection, i)
			}
			key := set.collection + "/" + e.ID
			if seen[key] {
				return nil, fmt.Errorf("seed %s: duplicate id %q", set.collection, e.ID)
			}
			seen[key] = true
		}
	}
	return &d, nil
}

type entrySet struct {
	collection string
	entries    []Entry
}

func (d *Data) sets() []entrySet {
	return []entrySet{
		{vectorstore.CollectionKnowledgeBase, d.KnowledgeBase},
		{vectorstore.CollectionStyleExamples, d.StyleExamples},
		{vectorstore.CollectionBrandAssets, d.BrandAssets},
	}
}

// Load embeds every entry and upserts it. It returns the number of records
// written per collection.
func Load(ctx context.Context, d *Data, store vectorstore.Store, embedder embeddings.Provider) (map[string]int, error) {
	counts := make(map[string]int)
	for _, set := range d.sets() {
		if len(set.entries) == 0 {
			continue
		}
		texts := make([]string, len(set.entries))
		for i, e := range set.entries {
			texts[i] = e.Text
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return counts, fmt.Errorf("embedding %s seed: %w", set.collection, err)
		}

		records := make([]vectorstore.Record, len(set.entries))
		for i, e := range set.entries {
			meta := make(map[string]string, len(e.Metadata)+1)
			for k, v := range e.Metadata {
				meta[k] = v
			}
			meta[MetaSeeded] = "true"
			records[i] = vectorstore.Record{ID: e.ID, Text: e.Text, Embedding: vectors[i], Metadata: meta}
		}
		if err := store.Upsert(ctx, set.collection, records...); err != nil {
			return counts, fmt.Errorf("writing %s seed: %w", set.collection, err)
		}
		counts[set.collection] = len(records)
	}
	return counts, nil
}
