package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data:
  dir: ./testdata
  backend: csv
policies:
  dir: ./policies
rag:
  chunk_size: 250
  chunk_overlap: 25
embed_llm:
  provider: ollama
  base_url: http://localhost:11434
  model: nomic-embed-text
llm:
  base_url: https://openrouter.ai/api
  model: some-model
  key: Bearer abc
rules:
  local_nationality: Singaporean
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./testdata", cfg.Data.Dir)
	assert.Equal(t, 250, cfg.RAG.ChunkSize)
	assert.Equal(t, 25, cfg.RAG.ChunkOverlap)
	assert.Equal(t, "nomic-embed-text", cfg.EmbedLLM.Model)
	assert.Equal(t, "Singaporean", cfg.Rules.LocalNationality)
	// Unset values fall back to defaults.
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, "./data/loan_decisions.json", cfg.Data.LedgerFile)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, "csv", cfg.Data.Backend)
	assert.Equal(t, "Singaporean", cfg.Rules.LocalNationality)
}
