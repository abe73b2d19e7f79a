// Package postgres is the PostgreSQL-backed implementation of
// internal/store: six repositories plus a pgx.Tx-scoped UnitOfWork, using
// pgvector for embedding similarity search.
//
// Grounded on pkg/memory/postgres from the teacher repository: same
// pgxpool.Pool + AfterConnect-registers-pgvector-types + idempotent Migrate
// shape, generalized from the teacher's three fixed layers (session log,
// chunks, knowledge graph) to this domain's six tables.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlResources = `
CREATE TABLE IF NOT EXISTS resources (
    id          UUID         PRIMARY KEY,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    source      TEXT         NOT NULL DEFAULT '',
    content     TEXT         NOT NULL,
    metadata    JSONB        NOT NULL DEFAULT '{}',
    extracted   BOOLEAN      NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_resources_source ON resources (source);
CREATE INDEX IF NOT EXISTS idx_resources_created_at ON resources (created_at);
CREATE INDEX IF NOT EXISTS idx_resources_unextracted ON resources (extracted) WHERE NOT extracted;
`

const ddlItems = `
CREATE TABLE IF NOT EXISTS items (
    id                UUID         PRIMARY KEY,
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now(),
    resource_id       UUID         REFERENCES resources (id) ON DELETE SET NULL,
    subject           TEXT         NOT NULL DEFAULT '',
    predicate         TEXT         NOT NULL,
    object            TEXT         NOT NULL,
    category          TEXT         NOT NULL,
    confidence        DOUBLE PRECISION NOT NULL DEFAULT 0.8,
    status            TEXT         NOT NULL DEFAULT 'active',
    supersedes        UUID         REFERENCES items (id) ON DELETE SET NULL,
    canonical_subject TEXT         NOT NULL DEFAULT '',
    canonical_object  TEXT         NOT NULL DEFAULT '',
    meta_about        UUID         REFERENCES items (id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items (status);
CREATE INDEX IF NOT EXISTS idx_items_category ON items (category);
CREATE INDEX IF NOT EXISTS idx_items_resource ON items (resource_id);
CREATE INDEX IF NOT EXISTS idx_items_canonical_subject ON items (canonical_subject);
CREATE INDEX IF NOT EXISTS idx_items_subject_predicate ON items (canonical_subject, predicate);
CREATE INDEX IF NOT EXISTS idx_items_meta_about ON items (meta_about) WHERE meta_about IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_items_created_at ON items (created_at);
`

const ddlCategories = `
CREATE TABLE IF NOT EXISTS categories (
    id         UUID         PRIMARY KEY,
    name       TEXT         NOT NULL UNIQUE,
    summary    TEXT         NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlGraphEdges = `
CREATE TABLE IF NOT EXISTS graph_edges (
    id         UUID         PRIMARY KEY,
    subject    TEXT         NOT NULL,
    predicate  TEXT         NOT NULL,
    object     TEXT         NOT NULL,
    weight     DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (subject, predicate, object)
);

CREATE INDEX IF NOT EXISTS idx_graph_edges_subject ON graph_edges (subject);
CREATE INDEX IF NOT EXISTS idx_graph_edges_object ON graph_edges (object);
`

const ddlCategoryAccesses = `
CREATE TABLE IF NOT EXISTS category_accesses (
    id          UUID         PRIMARY KEY,
    category    TEXT         NOT NULL,
    accessed_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    source      TEXT         NOT NULL DEFAULT 'api'
);

CREATE INDEX IF NOT EXISTS idx_category_accesses_category ON category_accesses (category);
CREATE INDEX IF NOT EXISTS idx_category_accesses_accessed_at ON category_accesses (accessed_at);
`

// ddlEmbeddings returns the embeddings DDL with the vector dimension baked
// into the column type, mirroring the teacher's ddlL2 pattern.
func ddlEmbeddings(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS embeddings (
    item_id   UUID PRIMARY KEY REFERENCES items (id) ON DELETE CASCADE,
    embedding vector(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_embeddings_vector
    ON embeddings USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables, indices, and the pgvector
// extension exist. Idempotent; safe to call on every process start.
//
// embeddingDimensions must match the configured embedding provider's output
// dimension. Changing it after the first migration requires a manual schema
// change — the same constraint the teacher documents for pkg/memory/postgres.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlResources,
		ddlItems,
		ddlCategories,
		ddlEmbeddings(embeddingDimensions),
		ddlGraphEdges,
		ddlCategoryAccesses,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
