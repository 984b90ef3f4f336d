package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// Source is one retrieval step in an agent's context plan.
type Source struct {
	Collection    string             `json:"collection"`
	Filter        vectorstore.Filter `json:"filter,omitempty"`
	K             int                `json:"k"`
	MinSimilarity float32            `json:"min_similarity"`

	// MinScore keeps only matches whose performance_score is at least
	// this value. Zero disables the filter.
	MinScore float64 `json:"min_score,omitempty"`

	// Query replaces the caller's text for this source.
	Query string `json:"query,omitempty"`
}

// Section is what one Source returned.
type Section struct {
	Source  Source              `json:"source"`
	Matches []vectorstore.Match `json:"matches"`
}

// Bundle is the retrieved context handed to an agent.
type Bundle struct {
	Sections []Section `json:"sections"`
}

// Len counts all matches in the bundle.
func (b *Bundle) Len() int {
	n := 0
	for _, s := range b.Sections {
		n += len(s.Matches)
	}
	return n
}

const maxSnippet = 600

// Render formats the bundle as a prompt section. An empty bundle renders
// as the empty string.
func (b *Bundle) Render() string {
	if b == nil || b.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Retrieved context (ground your answer in it, do not copy it verbatim):\n")
	for _, sec := range b.Sections {
		if len(sec.Matches) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n### %s\n", sec.Source.Collection)
		for _, m := range sec.Matches {
			fmt.Fprintf(&sb, "- [%s, similarity %.2f] %s\n", m.ID, m.Similarity, snippet(m.Text))
		}
	}
	return sb.String()
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxSnippet {
		return s
	}
	r := []rune(s)
	return string(r[:maxSnippet]) + "..."
}

// Gather runs every source against text and collects the results. The
// first failing source fails the whole bundle.
func (s *Service) Gather(ctx context.Context, text string, sources []Source) (*Bundle, error) {
	b := &Bundle{Sections: make([]Section, 0, len(sources))}
	for _, src := range sources {
		q := Query{
			Text:          text,
			Collection:    src.Collection,
			K:             src.K,
			MinSimilarity: src.MinSimilarity,
			Filter:        src.Filter,
		}
		if src.Query != "" {
			q.Text = src.Query
		}
		var (
			matches []vectorstore.Match
			err     error
		)
		if src.MinScore > 0 {
			matches, err = s.retrieveScored(ctx, q, src.MinScore)
		} else {
			matches, err = s.Retrieve(ctx, q)
		}
		if err != nil {
			return nil, fmt.Errorf("gathering %s: %w", src.Collection, err)
		}
		b.Sections = append(b.Sections, Section{Source: src, Matches: matches})
	}
	return b, nil
}
