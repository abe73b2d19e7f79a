// Package llm is the domain layer over pkg/provider/llm: a thin factory
// plus the fact-extraction, classification, conflict-check, and
// summarization operations the ingest and maintenance pipelines call. The
// Provider interface itself is untouched — this package only adds prompts
// and response parsing on top of it.
//
// The four prompt constants (extractionSystemPrompt et al., in extract.go /
// classify.go / conflict.go / summarize.go) are ported verbatim from
// original_source/kiroku_memory's extract.py / classify.py / conflict.py /
// summarize.py — the exact wording an LLM was tuned against, so changing it
// would silently change extraction/classification quality.
package llm

import (
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/tieredmem/pkg/provider/llm"
	"github.com/MrWong99/tieredmem/pkg/provider/llm/anyllm"
)

// Config selects and configures one LLM provider.
type Config struct {
	Provider string // "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"
	Model    string
	APIKey   string
	BaseURL  string
}

// New constructs the llm.Provider named by cfg.Provider via any-llm-go.
func New(cfg Config) (llm.Provider, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm: provider must not be empty")
	}
	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	return anyllm.New(strings.ToLower(cfg.Provider), cfg.Model, opts...)
}
