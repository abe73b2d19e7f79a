package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
)

// embeddingRepo performs similarity search as a brute-force in-process
// cosine scan: read every stored vector back out of sqlite, score it
// against the query vector in Go, then sort. sqlite has no native vector
// index without CGo, so this stands in for the postgres backend's pgvector
// HNSW index — correct for the corpus sizes the embedded backend targets
// (single-user, thousands of items), explicitly not built for scale.
type embeddingRepo struct {
	tx   *sql.Tx
	dims int
}

func (r *embeddingRepo) Upsert(ctx context.Context, itemID uuid.UUID, vec []float32) error {
	if r.dims > 0 && len(vec) != r.dims {
		return fmt.Errorf("embeddings: upsert: vector has %d dimensions, store expects %d", len(vec), r.dims)
	}
	const q = `
		INSERT INTO embeddings (item_id, dims, vector) VALUES (?,?,?)
		ON CONFLICT (item_id) DO UPDATE SET dims = excluded.dims, vector = excluded.vector`
	if _, err := r.tx.ExecContext(ctx, q, itemID.String(), len(vec), encodeVector(vec)); err != nil {
		return fmt.Errorf("embeddings: upsert: %w", err)
	}
	return nil
}

func (r *embeddingRepo) Get(ctx context.Context, itemID uuid.UUID) ([]float32, error) {
	var blob []byte
	err := r.tx.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE item_id = ?`, itemID.String()).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("embeddings: get: %w", err)
	}
	return decodeVector(blob), nil
}

func (r *embeddingRepo) Delete(ctx context.Context, itemID uuid.UUID) error {
	if _, err := r.tx.ExecContext(ctx, `DELETE FROM embeddings WHERE item_id = ?`, itemID.String()); err != nil {
		return fmt.Errorf("embeddings: delete: %w", err)
	}
	return nil
}

func (r *embeddingRepo) Search(ctx context.Context, queryVec []float32, limit int, minSimilarity float64, statusFilter string) ([]model.EmbeddingMatch, error) {
	q := `
		SELECT ` + itemColumns + `, emb.vector
		FROM embeddings emb
		JOIN items i ON i.id = emb.item_id
		WHERE i.meta_about IS NULL`
	var args []any
	if statusFilter != "" {
		q += ` AND i.status = ?`
		args = append(args, statusFilter)
	}
	rows, err := r.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("embeddings: search: %w", err)
	}
	defer rows.Close()

	var candidates []model.EmbeddingMatch
	for rows.Next() {
		var (
			it                               model.Item
			id, created                      string
			resourceID, supersedes, metaAbout sql.NullString
			blob                             []byte
		)
		if err := rows.Scan(
			&id, &created, &resourceID, &it.Subject, &it.Predicate, &it.Object, &it.Category,
			&it.Confidence, &it.Status, &supersedes, &it.CanonicalSubject, &it.CanonicalObject, &metaAbout,
			&blob,
		); err != nil {
			return nil, fmt.Errorf("embeddings: scan search row: %w", err)
		}
		it.ID = uuid.MustParse(id)
		it.CreatedAt = strToTime(created)
		it.ResourceID = scanNullUUID(resourceID)
		it.Supersedes = scanNullUUID(supersedes)
		it.MetaAbout = scanNullUUID(metaAbout)

		sim := cosineSimilarity(queryVec, decodeVector(blob))
		if sim >= minSimilarity {
			candidates = append(candidates, model.EmbeddingMatch{Item: it, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
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
	if err := r.tx.QueryRowContext(ctx, `SELECT count(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("embeddings: count: %w", err)
	}
	return n, nil
}

func (r *embeddingRepo) DeleteStale(ctx context.Context, activeIDs []uuid.UUID) (int, error) {
	active := make(map[string]bool, len(activeIDs))
	for _, id := range activeIDs {
		active[id.String()] = true
	}
	rows, err := r.tx.QueryContext(ctx, `SELECT item_id FROM embeddings`)
	if err != nil {
		return 0, fmt.Errorf("embeddings: delete stale: list: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if !active[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	for _, id := range stale {
		if _, err := r.tx.ExecContext(ctx, `DELETE FROM embeddings WHERE item_id = ?`, id); err != nil {
			return 0, fmt.Errorf("embeddings: delete stale: %w", err)
		}
	}
	return len(stale), nil
}
