// Package embedding supplies the domain-specific glue around
// pkg/provider/embeddings.Provider: turning an Item into the text that gets
// embedded, adapting a vector across dimension changes, and selecting a
// concrete provider by name. The Provider interface itself is the teacher's
// (pkg/provider/embeddings) unmodified — this package never redefines it.
package embedding

import (
	"fmt"
	"strings"

	"github.com/MrWong99/tieredmem/internal/embedding/local"
	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/pkg/provider/embeddings"
	"github.com/MrWong99/tieredmem/pkg/provider/embeddings/ollama"
	"github.com/MrWong99/tieredmem/pkg/provider/embeddings/openai"
)

// Config selects and configures one embedding provider.
type Config struct {
	Provider string // "openai", "ollama", or "local"
	Model    string
	APIKey   string
	BaseURL  string
}

// New constructs the embeddings.Provider named by cfg.Provider.
func New(cfg Config) (embeddings.Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(cfg.APIKey, cfg.Model, opts...)
	case "ollama":
		return ollama.New(cfg.BaseURL, cfg.Model)
	case "local", "":
		return local.New(cfg.Model), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}

// BuildTextForItem renders the text that gets embedded for an item: the
// natural-language sentence "<subject> <predicate> <object>" the same way a
// reader would parse the fact, so that semantic search matches on meaning
// rather than on the raw field boundaries.
//
// Grounded on original_source/kiroku_memory/jobs/monthly.py's
// build_text_for_item, which joins subject/predicate/object the same way.
func BuildTextForItem(it model.Item) string {
	parts := make([]string, 0, 3)
	if it.Subject != "" {
		parts = append(parts, it.Subject)
	}
	parts = append(parts, it.Predicate, it.Object)
	return strings.Join(parts, " ")
}

// AdaptVector resizes vec to targetDims: truncates if longer, zero-pads if
// shorter. Used by the monthly re-embedding job when the configured
// embedding model's dimension differs from what's already stored (a model
// swap), so that old and new vectors stay comparable in the same index.
func AdaptVector(vec []float32, targetDims int) []float32 {
	if len(vec) == targetDims {
		return vec
	}
	out := make([]float32, targetDims)
	copy(out, vec)
	return out
}
