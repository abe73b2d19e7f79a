package local_test

import (
	"context"
	"math"
	"testing"

	"github.com/MrWong99/tieredmem/internal/embedding/local"
)

func TestEmbed_DeterministicForEqualText(t *testing.T) {
	p := local.New("")
	ctx := context.Background()

	a, err := p.Embed(ctx, "the cat sat on the mat")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := p.Embed(ctx, "the cat sat on the mat")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbed_SimilarTextMoreSimilarThanUnrelated(t *testing.T) {
	p := local.New("")
	ctx := context.Background()

	base, _ := p.Embed(ctx, "the quick brown fox jumps over the lazy dog")
	similar, _ := p.Embed(ctx, "the quick brown fox leaps over the lazy dog")
	unrelated, _ := p.Embed(ctx, "quantum mechanics describes subatomic particles")

	simScore := cosine(base, similar)
	unrelatedScore := cosine(base, unrelated)
	if simScore <= unrelatedScore {
		t.Errorf("similar-text cosine %v should exceed unrelated-text cosine %v", simScore, unrelatedScore)
	}
}

func TestEmbed_IsL2Normalized(t *testing.T) {
	p := local.New("")
	vec, err := p.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if math.Abs(norm-1.0) > 1e-4 {
		t.Errorf("vector norm = %v, want ~1.0", norm)
	}
}

func TestEmbedBatch_MatchesEmbed(t *testing.T) {
	p := local.New("")
	ctx := context.Background()
	texts := []string{"alpha beta", "gamma delta"}

	batch, err := p.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, text := range texts {
		single, _ := p.Embed(ctx, text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("EmbedBatch[%d] diverges from Embed at index %d", i, j)
			}
		}
	}
}

func TestDimensions_DefaultsTo256(t *testing.T) {
	p := local.New("")
	if p.Dimensions() != 256 {
		t.Errorf("Dimensions() = %d, want 256", p.Dimensions())
	}
}

func TestModelID_DefaultsWhenEmpty(t *testing.T) {
	p := local.New("")
	if p.ModelID() != "local-hash-v1" {
		t.Errorf("ModelID() = %q, want local-hash-v1", p.ModelID())
	}
}

func TestModelID_PreservesGivenName(t *testing.T) {
	p := local.New("custom-model")
	if p.ModelID() != "custom-model" {
		t.Errorf("ModelID() = %q, want custom-model", p.ModelID())
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
