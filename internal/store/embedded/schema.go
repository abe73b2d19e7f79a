// Package embedded is the single-file, CGo-free implementation of
// internal/store: modernc.org/sqlite for the six relational tables, with
// vector similarity search done as a brute-force in-process cosine scan
// (see embedding_repo.go) instead of an index, since sqlite has no native
// vector extension available without CGo.
//
// Grounded on pkg/memory/postgres's schema/store shape from the teacher
// repository (same Migrate-is-idempotent, single-handle-holds-pool idiom),
// adapted to a pure-Go database/sql driver per SPEC_FULL.md's decision to
// use modernc.org/sqlite rather than require CGo or an external service for
// the embedded backend.
package embedded

import (
	"context"
	"database/sql"
	"fmt"
)

const ddl = `
CREATE TABLE IF NOT EXISTS resources (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	extracted  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_resources_source ON resources (source);
CREATE INDEX IF NOT EXISTS idx_resources_created_at ON resources (created_at);

CREATE TABLE IF NOT EXISTS items (
	id                TEXT PRIMARY KEY,
	created_at        TEXT NOT NULL,
	resource_id       TEXT REFERENCES resources (id) ON DELETE SET NULL,
	subject           TEXT NOT NULL DEFAULT '',
	predicate         TEXT NOT NULL,
	object            TEXT NOT NULL,
	category          TEXT NOT NULL,
	confidence        REAL NOT NULL DEFAULT 0.8,
	status            TEXT NOT NULL DEFAULT 'active',
	supersedes        TEXT REFERENCES items (id) ON DELETE SET NULL,
	canonical_subject TEXT NOT NULL DEFAULT '',
	canonical_object  TEXT NOT NULL DEFAULT '',
	meta_about        TEXT REFERENCES items (id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_items_status ON items (status);
CREATE INDEX IF NOT EXISTS idx_items_category ON items (category);
CREATE INDEX IF NOT EXISTS idx_items_resource ON items (resource_id);
CREATE INDEX IF NOT EXISTS idx_items_canonical_subject ON items (canonical_subject);
CREATE INDEX IF NOT EXISTS idx_items_meta_about ON items (meta_about);

CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	summary    TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS graph_edges (
	id         TEXT PRIMARY KEY,
	subject    TEXT NOT NULL,
	predicate  TEXT NOT NULL,
	object     TEXT NOT NULL,
	weight     REAL NOT NULL DEFAULT 1.0,
	created_at TEXT NOT NULL,
	UNIQUE (subject, predicate, object)
);
CREATE INDEX IF NOT EXISTS idx_graph_edges_subject ON graph_edges (subject);
CREATE INDEX IF NOT EXISTS idx_graph_edges_object ON graph_edges (object);

CREATE TABLE IF NOT EXISTS category_accesses (
	id          TEXT PRIMARY KEY,
	category    TEXT NOT NULL,
	accessed_at TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT 'api'
);
CREATE INDEX IF NOT EXISTS idx_category_accesses_category ON category_accesses (category);

CREATE TABLE IF NOT EXISTS embeddings (
	item_id   TEXT PRIMARY KEY REFERENCES items (id) ON DELETE CASCADE,
	dims      INTEGER NOT NULL,
	vector    BLOB NOT NULL
);
`

// Migrate applies the schema. embeddingDimensions is accepted for interface
// parity with the postgres backend's Migrate — sqlite's BLOB column isn't
// dimension-typed, so the value is only used to sanity-check vectors at
// write time (see embedding_repo.go).
func Migrate(ctx context.Context, db *sql.DB, embeddingDimensions int) error {
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("embedded migrate: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("embedded migrate: enable foreign keys: %w", err)
	}
	return nil
}
