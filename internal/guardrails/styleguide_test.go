package guardrails

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStyleGuide_OverridesDefaults(t *testing.T) {
	g, err := ParseStyleGuide(`
banned_phrases = ["disruptive"]

[limits]
x_chars = 200

[disclosure]
text = "Sponsored"
types = ["blog"]
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"disruptive"}, g.BannedPhrases)
	assert.Equal(t, 200, g.Limits.XChars)
	assert.Equal(t, 3000, g.Limits.LinkedInChars, "unset keys keep defaults")
	assert.Equal(t, "Sponsored", g.Disclosure.Text)
	assert.True(t, g.DetectSecrets)
}

func TestParseStyleGuide_Rejects(t *testing.T) {
	_, err := ParseStyleGuide(`not = [valid`)
	assert.ErrorIs(t, err, ErrInvalidStyleGuide)

	_, err = ParseStyleGuide(`unknown_key = 1`)
	assert.ErrorIs(t, err, ErrInvalidStyleGuide)

	_, err = ParseStyleGuide("[limits]\nx_chars = 0")
	assert.ErrorIs(t, err, ErrInvalidStyleGuide)

	_, err = ParseStyleGuide("[disclosure]\ntypes = [\"podcast\"]")
	assert.ErrorIs(t, err, ErrInvalidStyleGuide)
}

// replace swaps the file in one rename so the watcher never sees a
// half-written file.
func replace(t *testing.T, path, data string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(data), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatcher_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "style.toml")
	require.NoError(t, os.WriteFile(path, []byte(`banned_phrases = ["first"]`), 0o600))

	w, err := NewWatcher(path, "#ad", nil)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []string{"first"}, w.Current().BannedPhrases)
	assert.Equal(t, "#ad", w.Current().Disclosure.Text)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	replace(t, path, `banned_phrases = ["second"]`)
	require.Eventually(t, func() bool {
		bp := w.Current().BannedPhrases
		return len(bp) == 1 && bp[0] == "second"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "#ad", w.Current().Disclosure.Text)

	// A broken file keeps the previous guide.
	reloads := w.Reloads()
	replace(t, path, `banned_phrases = [`)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []string{"second"}, w.Current().BannedPhrases)
	assert.GreaterOrEqual(t, w.Reloads(), reloads)
}

func TestNewWatcher_MissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope.toml"), "", nil)
	assert.Error(t, err)
}
