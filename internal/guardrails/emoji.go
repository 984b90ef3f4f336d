package guardrails

import (
	"strings"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
)

// CountEmojis counts emoji grapheme clusters, so a flag or a skin-toned
// emoji counts once.
func CountEmojis(s string) int {
	n := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		if gomoji.ContainsEmoji(g.Str()) {
			n++
		}
	}
	return n
}

// CountChars counts user-perceived characters.
func CountChars(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// CountLines counts non-trailing lines.
func CountLines(s string) int {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
