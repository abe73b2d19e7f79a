package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/MrWong99/tieredmem/internal/model"
)

// ValidEmbeddingProviders lists recognised embeddings.Provider names.
var ValidEmbeddingProviders = []string{"openai", "ollama", "local"}

// ValidLLMProviders lists recognised any-llm-go provider names.
var ValidLLMProviders = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"}

// Load reads configuration from environment variables, applies defaults, and
// returns a validated [Config]. See SPEC_FULL.md §6 for the full variable
// list; unset variables fall back to the defaults below.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			HTTPAddr: getEnv("MEMORY_HTTP_ADDR", ":8080"),
			LogLevel: LogLevel(getEnv("MEMORY_LOG_LEVEL", string(LogInfo))),
			Debug:    getEnvBool("MEMORY_DEBUG", false),
		},
		Store: StoreConfig{
			Backend:     Backend(getEnv("MEMORY_BACKEND", string(BackendEmbedded))),
			PostgresDSN: os.Getenv("MEMORY_POSTGRES_DSN"),
			DataDir:     getEnv("MEMORY_DATA_DIR", "./data"),
		},
		Embedding: EmbeddingConfig{
			Provider:   getEnv("MEMORY_EMBEDDING_PROVIDER", "local"),
			Model:      os.Getenv("MEMORY_EMBEDDING_MODEL"),
			Dimensions: getEnvInt("MEMORY_EMBEDDING_DIMENSIONS", 384),
		},
		LLM: LLMConfig{
			Provider: os.Getenv("MEMORY_LLM_PROVIDER"),
			Model:    os.Getenv("MEMORY_LLM_MODEL"),
		},
		Ingest: IngestConfig{
			ConflictStrategy: getEnv("MEMORY_CONFLICT_STRATEGY", string(model.ConflictStrategyRecency)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks cfg for internally inconsistent or out-of-range settings.
// All violations are collected and returned together via [errors.Join].
func (c *Config) Validate() error {
	var errs []error

	if c.Server.LogLevel != "" && !c.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("MEMORY_LOG_LEVEL %q is invalid; valid values: debug, info, warn, error", c.Server.LogLevel))
	}
	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("MEMORY_HTTP_ADDR must not be empty"))
	}

	if !c.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("MEMORY_BACKEND %q is invalid; valid values: postgres, embedded", c.Store.Backend))
	}
	if c.Store.Backend == BackendPostgres && c.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("MEMORY_POSTGRES_DSN must be set when MEMORY_BACKEND=postgres"))
	}
	if c.Store.Backend == BackendEmbedded && c.Store.DataDir == "" {
		errs = append(errs, errors.New("MEMORY_DATA_DIR must not be empty when MEMORY_BACKEND=embedded"))
	}

	if c.Embedding.Provider != "" && !slicesContain(ValidEmbeddingProviders, c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("MEMORY_EMBEDDING_PROVIDER %q is not a recognised provider; valid values: %v", c.Embedding.Provider, ValidEmbeddingProviders))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("MEMORY_EMBEDDING_DIMENSIONS must be positive, got %d", c.Embedding.Dimensions))
	}

	if c.LLM.Provider != "" && !slicesContain(ValidLLMProviders, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("MEMORY_LLM_PROVIDER %q is not a recognised provider; valid values: %v", c.LLM.Provider, ValidLLMProviders))
	}

	switch model.ConflictStrategy(c.Ingest.ConflictStrategy) {
	case model.ConflictStrategyRecency, model.ConflictStrategyConfidence:
	default:
		errs = append(errs, fmt.Errorf("MEMORY_CONFLICT_STRATEGY %q is invalid; valid values: recency, confidence", c.Ingest.ConflictStrategy))
	}

	return errors.Join(errs...)
}

func slicesContain(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
