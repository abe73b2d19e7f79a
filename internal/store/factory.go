package store

import (
	"context"
	"fmt"
)

// Opener constructs a Store for one Backend. Concrete backend packages
// register themselves via Register in an init() func so that
// internal/store never imports internal/store/postgres or
// internal/store/embedded directly — the same registry-by-name pattern the
// teacher uses for its LLM/embedding provider construction in
// cmd/glyphoxa/main.go, generalized to storage backends.
type Opener func(ctx context.Context, dsn string, embeddingDimensions int) (Store, error)

var openers = map[Backend]Opener{}

// Register associates an Opener with a Backend name. Called from the
// concrete backend package's init(); panics on a duplicate registration
// since that only happens from a programming error at init time.
func Register(name Backend, open Opener) {
	if _, exists := openers[name]; exists {
		panic(fmt.Sprintf("store: backend %q already registered", name))
	}
	openers[name] = open
}

// Open constructs a Store for the named backend. dsn is backend-specific: a
// Postgres connection string for BackendPostgres, a filesystem path for
// BackendEmbedded.
func Open(ctx context.Context, backend Backend, dsn string, embeddingDimensions int) (Store, error) {
	open, ok := openers[backend]
	if !ok {
		return nil, fmt.Errorf("store: unknown backend %q (forgot a blank import?)", backend)
	}
	return open(ctx, dsn, embeddingDimensions)
}
