package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/wiki-pathfinder/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "https://en.wikipedia.org", cfg.WikiBaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 320, cfg.ContextWindowChars)
	assert.Equal(t, 120, cfg.ContextRadiusChars)
	assert.Equal(t, 150, cfg.MaxLinksPerPage)
	assert.Equal(t, 50, cfg.MaxSteps)
	assert.Equal(t, 8, cfg.TopK)
	assert.Equal(t, 4, cfg.PrefetchWorkers)
	assert.Equal(t, 16, cfg.PrefetchCacheSize)
	assert.Equal(t, 10000, cfg.RequestTimeoutMs)
	assert.Equal(t, 15000, cfg.JoinTimeoutMs)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 200, cfg.StepDelayMs)
	assert.Equal(t, 128, cfg.EncodeBatchSize)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Embedding.OllamaEndpoint)
	assert.Contains(t, cfg.UserAgent, "wiki-pathfinder")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"start_article": "GitHub",
		"target_article": "YouTube",
		"max_steps": 10,
		"top_k": 3,
		"embedding": {"provider": "genai", "genai_model": "gemini-embedding-001"}
	}`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "GitHub", cfg.StartArticle)
	assert.Equal(t, "YouTube", cfg.TargetArticle)
	assert.Equal(t, 10, cfg.MaxSteps)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, "genai", cfg.Embedding.Provider)

	// Untouched keys still get defaults
	assert.Equal(t, 4, cfg.PrefetchWorkers)
	assert.Equal(t, "https://en.wikipedia.org", cfg.WikiBaseURL)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"start_article": `)

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadAppliesEnvironmentOverlay(t *testing.T) {
	t.Setenv("GENAI_API_KEY", "key-from-env")
	t.Setenv("OLLAMA_ENDPOINT", "http://ollama.internal:11434")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.Embedding.GenAIAPIKey)
	assert.Equal(t, "http://ollama.internal:11434", cfg.Embedding.OllamaEndpoint)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
		require.NoError(t, err)
		cfg.StartArticle = "GitHub"
		cfg.TargetArticle = "YouTube"
		return cfg
	}

	t.Run("complete config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "missing start", mutate: func(c *config.Config) { c.StartArticle = "" }},
		{name: "missing target", mutate: func(c *config.Config) { c.TargetArticle = "" }},
		{name: "zero max steps", mutate: func(c *config.Config) { c.MaxSteps = 0 }},
		{name: "zero top k", mutate: func(c *config.Config) { c.TopK = 0 }},
		{name: "zero workers", mutate: func(c *config.Config) { c.PrefetchWorkers = 0 }},
		{name: "tiny request timeout", mutate: func(c *config.Config) { c.RequestTimeoutMs = 10 }},
		{name: "radius exceeds window", mutate: func(c *config.Config) { c.ContextRadiusChars = 300 }},
		{name: "unknown provider", mutate: func(c *config.Config) { c.Embedding.Provider = "word2vec" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
