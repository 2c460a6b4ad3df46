package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loreweave.toml")

	content := `
[resolver]
language = "de"
min_summary_length = 80

[sources.dbpedia]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	// File values win
	assert.Equal(t, "de", cfg.Resolver.Language)
	assert.Equal(t, 80, cfg.Resolver.MinSummaryLength)
	assert.False(t, cfg.Sources.DBpedia.Enabled)

	// Defaults fill the rest
	assert.Equal(t, "loreweave.db", cfg.Database.Path)
	assert.Equal(t, 45, cfg.RateLimit.MaxCalls)
	assert.Equal(t, 50, cfg.Sources.Wikipedia.BatchSize)
	assert.True(t, cfg.Sources.Wikipedia.Enabled)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/loreweave.toml")
	assert.Error(t, err)
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := LoadFromFile(writeMinimalConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "45 per 1m0s", cfg.RateLimit.String())
	assert.Equal(t, 24, cfg.Cache.NegativeTTLHours)
	assert.Equal(t, 15, cfg.Resolver.RequestTimeoutSeconds)
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "loreweave.toml")

	require.NoError(t, WriteDefault(path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Resolver.Language)
	assert.Equal(t, 4, cfg.Batch.Workers)

	// Refuses to clobber an existing file
	assert.Error(t, WriteDefault(path))
}

func writeMinimalConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loreweave.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))
	return path
}
