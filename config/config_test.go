package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "bookrec.db", cfg.Storage.Path)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.Host)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 1536, cfg.Embedder.Dimension)
	assert.Equal(t, "memory", cfg.Index.Type)
	assert.Equal(t, "ebooks", cfg.Index.Collection)
	assert.Nil(t, cfg.Index.Qdrant)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 10, cfg.Recommend.TopK)
	assert.Equal(t, 7, cfg.Recommend.StaleAfterDays)
}

func TestLoadFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookrec.yaml")
	content := `storage:
  path: /tmp/custom.db
embedder:
  model: nomic-embed-text
  dimension: 768
index:
  type: qdrant
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Storage.Path)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Model)
	assert.Equal(t, 768, cfg.Embedder.Dimension)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.Host, "unset fields fall back to defaults")

	require.NotNil(t, cfg.Index.Qdrant, "qdrant block is filled in when the type asks for it")
	assert.Equal(t, "http://localhost:6333", cfg.Index.Qdrant.URL)
	assert.Equal(t, 15, cfg.Index.Qdrant.TimeoutSecs)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookrec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [not a mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "bookrec.yaml")

	cfg := defaultConfig()
	cfg.Storage.Path = "/var/lib/bookrec/db"
	cfg.Index.Type = "qdrant"
	cfg.Index.Qdrant = &QdrantConfig{URL: "http://qdrant:6333", APIKey: "secret"}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/bookrec/db", loaded.Storage.Path)
	assert.Equal(t, "http://qdrant:6333", loaded.Index.Qdrant.URL)
	assert.Equal(t, "secret", loaded.Index.Qdrant.APIKey)
}

func TestAPIKeyFromEnv(t *testing.T) {
	cfg := defaultConfig()
	cfg.Embedder.APIKeyEnv = "BOOKREC_TEST_API_KEY"
	t.Setenv("BOOKREC_TEST_API_KEY", "sk-test")

	assert.Equal(t, "sk-test", cfg.APIKey())
}
