package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contentfactory/internal/config"
	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/seed"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

const seedance = "Seedance 1.0 turns text prompts into 10 second videos for product and developer teams."

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Embeddings.Dimension = 64
	cfg.Embeddings.CacheSize = 0
	cfg.Observability.LogLevel = "error"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, appOptions{stderrLogs: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func testCmd() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "contentd by Fyrsmith Labs")
	assert.Contains(t, out.String(), version)
}

func TestNewApp_RejectsMissingStyleGuide(t *testing.T) {
	cfg := testConfig()
	cfg.Guardrails.StyleGuidePath = filepath.Join(t.TempDir(), "missing.toml")
	_, err := newApp(context.Background(), cfg, appOptions{stderrLogs: true})
	assert.Error(t, err)
}

func TestNewApp_WatchedStyleGuide(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.toml")
	require.NoError(t, os.WriteFile(path, []byte("banned_phrases = [\"revolutionary\"]\n"), 0o600))

	cfg := testConfig()
	cfg.Guardrails.StyleGuidePath = path
	cfg.Guardrails.Watch = true
	a := newTestApp(t, cfg)
	require.NotNil(t, a.watcher)
	assert.Equal(t, []string{"revolutionary"}, a.guide.Current().BannedPhrases)
}

func TestRunGenerate(t *testing.T) {
	a := newTestApp(t, testConfig())
	cmd, out := testCmd()
	pkgPath := filepath.Join(t.TempDir(), "package.json")

	err := runGenerate(cmd, a, seedance, generateFlags{url: "https://seedance.ai", out: pkgPath, quiet: true})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Seedance")

	raw, err := os.ReadFile(pkgPath)
	require.NoError(t, err)
	var pkg content.Package
	require.NoError(t, json.Unmarshal(raw, &pkg))
	assert.NotEmpty(t, pkg.RunID)
	assert.NotNil(t, pkg.Blog)

	stats, err := a.store.Stats(context.Background(), vectorstore.CollectionHistory)
	require.NoError(t, err)
	// Accepted artifacts plus the campaign input.
	assert.Greater(t, stats.Count, 1)
}

func TestRunGenerate_BlockedDuplicate(t *testing.T) {
	cfg := testConfig()
	cfg.Controller.DuplicatePolicy = config.PolicyBlock
	a := newTestApp(t, cfg)

	cmd, _ := testCmd()
	require.NoError(t, runGenerate(cmd, a, seedance, generateFlags{quiet: true}))

	err := runGenerate(cmd, a, seedance, generateFlags{quiet: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate_campaign")
}

func TestRunGenerate_BadSchedule(t *testing.T) {
	a := newTestApp(t, testConfig())
	cmd, _ := testCmd()
	err := runGenerate(cmd, a, seedance, generateFlags{schedule: "tomorrow"})
	assert.ErrorContains(t, err, "RFC3339")
}

func TestReadInput(t *testing.T) {
	got, err := readInput(strings.NewReader("ignored"), []string{"from arg"})
	require.NoError(t, err)
	assert.Equal(t, "from arg", got)

	got, err = readInput(strings.NewReader("  from stdin\n"), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	_, err = readInput(strings.NewReader("   "), nil)
	assert.Error(t, err)
}

func TestSeedThenStyleExamples(t *testing.T) {
	a := newTestApp(t, testConfig())
	data, err := seedData("")
	require.NoError(t, err)

	counts, err := seed.Load(context.Background(), data, a.store, a.embedder)
	require.NoError(t, err)
	assert.Equal(t, len(data.StyleExamples), counts[vectorstore.CollectionStyleExamples])

	_, err = seedData(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRenderTop_Empty(t *testing.T) {
	var out bytes.Buffer
	renderTop(&out, nil)
	assert.Contains(t, out.String(), "no performance records")
}
