package embedded

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/tieredmem/internal/store"
)

func init() {
	store.Register(store.BackendEmbedded, func(ctx context.Context, dsn string, embeddingDimensions int) (store.Store, error) {
		return NewStore(ctx, dsn, embeddingDimensions)
	})
}

// Store is the sqlite-backed implementation of store.Store. dsn is a
// filesystem path (":memory:" for an ephemeral in-process database, used by
// tests).
type Store struct {
	db   *sql.DB
	dims int
}

func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("embedded store: open: %w", err)
	}
	// A single shared connection avoids "database is locked" errors from
	// sqlite's file-level write lock under concurrent goroutines.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("embedded store: ping: %w", err)
	}
	if err := Migrate(ctx, db, embeddingDimensions); err != nil {
		db.Close()
		return nil, fmt.Errorf("embedded store: migrate: %w", err)
	}
	return &Store{db: db, dims: embeddingDimensions}, nil
}

func (s *Store) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("embedded store: begin tx: %w", err)
	}
	return newUnitOfWork(tx, s.dims), nil
}

func (s *Store) Close() error { return s.db.Close() }
