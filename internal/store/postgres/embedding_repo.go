package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/tieredmem/internal/model"
)

// embeddingRepo is grounded on the teacher's SemanticIndexImpl
// (pkg/memory/postgres/semantic_index.go): same upsert-via-ON-CONFLICT and
// cosine-distance-via-<=>-operator pattern, generalized from a chunk table
// to a one-row-per-item embeddings table and from distance to similarity
// (1 - distance, since pgvector's <=> is cosine distance, not similarity).
type embeddingRepo struct{ q querier }

func (r *embeddingRepo) Upsert(ctx context.Context, itemID uuid.UUID, vec []float32) error {
	const q = `
		INSERT INTO embeddings (item_id, embedding) VALUES ($1, $2)
		ON CONFLICT (item_id) DO UPDATE SET embedding = EXCLUDED.embedding`
	if _, err := r.q.Exec(ctx, q, itemID, pgvector.NewVector(vec)); err != nil {
		return fmt.Errorf("embeddings: upsert: %w", err)
	}
	return nil
}

func (r *embeddingRepo) Get(ctx context.Context, itemID uuid.UUID) ([]float32, error) {
	var v pgvector.Vector
	if err := r.q.QueryRow(ctx, `SELECT embedding FROM embeddings WHERE item_id = $1`, itemID).Scan(&v); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("embeddings: get: %w", err)
	}
	return v.Slice(), nil
}

func (r *embeddingRepo) Delete(ctx context.Context, itemID uuid.UUID) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM embeddings WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("embeddings: delete: %w", err)
	}
	return nil
}

func (r *embeddingRepo) Search(ctx context.Context, queryVec []float32, limit int, minSimilarity float64, statusFilter string) ([]model.EmbeddingMatch, error) {
	q := `
		SELECT ` + itemColumns + `, 1 - (emb.embedding <=> $1) AS similarity
		FROM embeddings emb
		JOIN items i ON i.id = emb.item_id
		WHERE i.meta_about IS NULL AND ($3 = '' OR i.status = $3)
		  AND 1 - (emb.embedding <=> $1) >= $2
		ORDER BY similarity DESC
		LIMIT $4`
	rows, err := r.q.Query(ctx, q, pgvector.NewVector(queryVec), minSimilarity, statusFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("embeddings: search: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.EmbeddingMatch, error) {
		var (
			it model.Item
			sim float64
		)
		if err := row.Scan(
			&it.ID, &it.CreatedAt, &it.ResourceID, &it.Subject, &it.Predicate, &it.Object, &it.Category,
			&it.Confidence, &it.Status, &it.Supersedes, &it.CanonicalSubject, &it.CanonicalObject, &it.MetaAbout,
			&sim,
		); err != nil {
			return model.EmbeddingMatch{}, err
		}
		return model.EmbeddingMatch{Item: it, Similarity: sim}, nil
	})
}

func (r *embeddingRepo) BatchUpsert(ctx context.Context, vecs map[uuid.UUID][]float32) (int, error) {
	n := 0
	for itemID, vec := range vecs {
		if err := r.Upsert(ctx, itemID, vec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *embeddingRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("embeddings: count: %w", err)
	}
	return n, nil
}

func (r *embeddingRepo) DeleteStale(ctx context.Context, activeIDs []uuid.UUID) (int, error) {
	const q = `DELETE FROM embeddings WHERE NOT (item_id = ANY($1))`
	tag, err := r.q.Exec(ctx, q, activeIDs)
	if err != nil {
		return 0, fmt.Errorf("embeddings: delete stale: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
