// Package maintenance implements the three admin-triggered background
// pipelines (C8): nightly consolidation, weekly decay/propagation/cleanup,
// and monthly re-indexing.
//
// Grounded on internal/session/consolidator.go's Consolidator: the
// mutex-guarded "one run at a time" guard and "continue past individual
// errors, count them instead of aborting" shape are reused directly, but the
// trigger is an HTTP POST handled by internal/api rather than a
// time.Ticker loop — §4.8 requires admin-triggered pipelines with
// scheduling left external to the process.
package maintenance

import (
	"sync"
	"time"

	"github.com/MrWong99/tieredmem/internal/store"
	embedprovider "github.com/MrWong99/tieredmem/pkg/provider/embeddings"
	llmprovider "github.com/MrWong99/tieredmem/pkg/provider/llm"
)

// itemCap bounds how many items a single pipeline run iterates, per §5's
// "pipelines iterate items with a configurable hard cap (default 10 000)".
const defaultItemCap = 10_000

// Config tunes pipeline behavior.
type Config struct {
	ItemCap             int
	EmbedBatchSize      int // default 50
	EmbeddingDimensions int
	UseLLMSummaries     bool
}

func (c Config) itemCap() int {
	if c.ItemCap > 0 {
		return c.ItemCap
	}
	return defaultItemCap
}

func (c Config) embedBatchSize() int {
	if c.EmbedBatchSize > 0 {
		return c.EmbedBatchSize
	}
	return 50
}

// Stats is the per-run report every pipeline returns: started/completed
// timestamps, per-step counters, and a running error log. Errors accumulated
// during a step never abort the remaining steps, per §7's maintenance-job
// error policy.
type Stats struct {
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Counters    map[string]int `json:"counters"`
	Errors      []string       `json:"errors"`
}

func newStats() *Stats {
	return &Stats{StartedAt: time.Now().UTC(), Counters: make(map[string]int)}
}

func (s *Stats) finish() *Stats {
	s.CompletedAt = time.Now().UTC()
	return s
}

func (s *Stats) count(key string, n int) {
	s.Counters[key] += n
}

func (s *Stats) addError(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
}

// Runner executes the three maintenance pipelines against a store, an
// embedding provider, and an LLM provider. A single mutex serializes all
// three pipelines against each other — mirroring Consolidator's single-flight
// guard against overlapping runs, generalized from one periodic job to
// three, admin-triggered ones that must still never run concurrently against
// the same backend.
type Runner struct {
	st       store.Store
	embedder embedprovider.Provider
	llmProv  llmprovider.Provider
	cfg      Config

	mu sync.Mutex
}

// New builds a Runner. embedder or llmProv may be nil: embedding-recompute
// and LLM-summary steps are then skipped rather than erroring.
func New(st store.Store, embedder embedprovider.Provider, llmProv llmprovider.Provider, cfg Config) *Runner {
	return &Runner{st: st, embedder: embedder, llmProv: llmProv, cfg: cfg}
}

func otherEndpoint(subject, object, node string) string {
	if subject == node {
		return object
	}
	return subject
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
