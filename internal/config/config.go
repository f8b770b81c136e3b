package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alvmarrod/wiki-pathfinder/internal/scorer"
	"github.com/alvmarrod/wiki-pathfinder/internal/version"
)

// Config holds all runtime configuration parameters
type Config struct {
	StartArticle          string              `json:"start_article"`
	TargetArticle         string              `json:"target_article"`
	WikiBaseURL           string              `json:"wiki_base_url"`
	UserAgent             string              `json:"user_agent"`
	LogLevel              string              `json:"log_level"`
	ContextWindowChars    int                 `json:"context_window_chars"`
	ContextRadiusChars    int                 `json:"context_radius_chars"`
	MaxLinksPerPage       int                 `json:"max_links_per_page"`
	MaxSteps              int                 `json:"max_steps"`
	TopK                  int                 `json:"top_k"`
	PrefetchWorkers       int                 `json:"prefetch_workers"`
	PrefetchCacheSize     int                 `json:"prefetch_cache_size"`
	RequestTimeoutMs      int                 `json:"request_timeout_ms"`
	JoinTimeoutMs         int                 `json:"join_timeout_ms"`
	RetryAttempts         int                 `json:"retry_attempts"`
	RetryInitialBackoffMs int                 `json:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int                 `json:"retry_max_backoff_ms"`
	StepDelayMs           int                 `json:"step_delay_ms"`
	EncodeBatchSize       int                 `json:"encode_batch_size"`
	EmbeddingCacheSize    int                 `json:"embedding_cache_size"`
	Embedding             scorer.EngineConfig `json:"embedding"`
	HistoryDBPath         string              `json:"history_db_path"`
	MetricsPath           string              `json:"metrics_path"`
}

// Load reads configuration from a JSON file, overlays environment values and
// fills defaults. A missing file is not an error: defaults plus environment
// plus command-line arguments can fully describe a run
func Load(path string) (*Config, error) {
	var cfg Config

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// applyEnv overlays secrets and endpoints that belong in the environment
func applyEnv(cfg *Config) {
	if v := os.Getenv("GENAI_API_KEY"); v != "" {
		cfg.Embedding.GenAIAPIKey = v
	}
	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		cfg.Embedding.OllamaEndpoint = v
	}
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.WikiBaseURL == "" {
		cfg.WikiBaseURL = "https://en.wikipedia.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; wiki-pathfinder/" + version.Version + ")"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ContextWindowChars == 0 {
		cfg.ContextWindowChars = 320
	}
	if cfg.ContextRadiusChars == 0 {
		cfg.ContextRadiusChars = 120
	}
	if cfg.MaxLinksPerPage == 0 {
		cfg.MaxLinksPerPage = 150
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = 50
	}
	if cfg.TopK == 0 {
		cfg.TopK = 8
	}
	if cfg.PrefetchWorkers == 0 {
		cfg.PrefetchWorkers = 4
	}
	if cfg.PrefetchCacheSize == 0 {
		cfg.PrefetchCacheSize = 16
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 10000
	}
	if cfg.JoinTimeoutMs == 0 {
		cfg.JoinTimeoutMs = 15000
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryInitialBackoffMs == 0 {
		cfg.RetryInitialBackoffMs = 500
	}
	if cfg.RetryMaxBackoffMs == 0 {
		cfg.RetryMaxBackoffMs = 4000
	}
	if cfg.StepDelayMs == 0 {
		cfg.StepDelayMs = 200
	}
	if cfg.EncodeBatchSize == 0 {
		cfg.EncodeBatchSize = 128
	}
	if cfg.EmbeddingCacheSize == 0 {
		cfg.EmbeddingCacheSize = 4096
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.OllamaEndpoint == "" {
		cfg.Embedding.OllamaEndpoint = "http://localhost:11434"
	}
	if cfg.Embedding.OllamaModel == "" {
		cfg.Embedding.OllamaModel = "embeddinggemma"
	}
	if cfg.Embedding.GenAIModel == "" {
		cfg.Embedding.GenAIModel = "gemini-embedding-001"
	}
	if cfg.Embedding.TaskType == "" {
		cfg.Embedding.TaskType = "SEMANTIC_SIMILARITY"
	}
	if cfg.HistoryDBPath == "" {
		cfg.HistoryDBPath = "pathfinder.db"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
}

// Validate checks that required fields are present and values are sensible.
// Called after command-line overrides have been applied
func (cfg *Config) Validate() error {
	if cfg.StartArticle == "" {
		return fmt.Errorf("start_article is required")
	}
	if cfg.TargetArticle == "" {
		return fmt.Errorf("target_article is required")
	}
	if cfg.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be >= 1")
	}
	if cfg.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1")
	}
	if cfg.PrefetchWorkers < 1 {
		return fmt.Errorf("prefetch_workers must be >= 1")
	}
	if cfg.RequestTimeoutMs < 1000 {
		return fmt.Errorf("request_timeout_ms must be >= 1000")
	}
	if cfg.ContextRadiusChars*2 > cfg.ContextWindowChars {
		return fmt.Errorf("context_window_chars must be at least twice context_radius_chars")
	}
	if cfg.Embedding.Provider != "ollama" && cfg.Embedding.Provider != "genai" {
		return fmt.Errorf("embedding.provider must be 'ollama' or 'genai'")
	}
	return nil
}
