package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/tieredmem/internal/model"
)

type graphRepo struct{ q querier }

func scanEdge(row pgx.CollectableRow) (model.GraphEdge, error) {
	var e model.GraphEdge
	if err := row.Scan(&e.ID, &e.Subject, &e.Predicate, &e.Object, &e.Weight, &e.CreatedAt); err != nil {
		return model.GraphEdge{}, err
	}
	return e, nil
}

func (r *graphRepo) Create(ctx context.Context, e *model.GraphEdge) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO graph_edges (id, subject, predicate, object, weight, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (subject, predicate, object) DO UPDATE SET weight = EXCLUDED.weight`
	if _, err := r.q.Exec(ctx, q, e.ID, e.Subject, e.Predicate, e.Object, e.Weight, e.CreatedAt); err != nil {
		return uuid.Nil, fmt.Errorf("graph: create edge: %w", err)
	}
	return e.ID, nil
}

func (r *graphRepo) CreateMany(ctx context.Context, edges []model.GraphEdge) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(edges))
	for i := range edges {
		id, err := r.Create(ctx, &edges[i])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *graphRepo) GetBySubject(ctx context.Context, subject string) ([]model.GraphEdge, error) {
	const q = `SELECT id, subject, predicate, object, weight, created_at FROM graph_edges WHERE subject = $1 ORDER BY weight DESC`
	rows, err := r.q.Query(ctx, q, subject)
	if err != nil {
		return nil, fmt.Errorf("graph: get by subject: %w", err)
	}
	return pgx.CollectRows(rows, scanEdge)
}

func (r *graphRepo) GetByObject(ctx context.Context, object string) ([]model.GraphEdge, error) {
	const q = `SELECT id, subject, predicate, object, weight, created_at FROM graph_edges WHERE object = $1 ORDER BY weight DESC`
	rows, err := r.q.Query(ctx, q, object)
	if err != nil {
		return nil, fmt.Errorf("graph: get by object: %w", err)
	}
	return pgx.CollectRows(rows, scanEdge)
}

// GetNeighbors returns every edge touching entity as either endpoint, within
// depth hops, via a recursive CTE walking both directions. Deeper BFS
// semantics (path reconstruction, cycle guard, weight-product scoring) live
// in internal/graph, built on top of this and ListAll — see that package's
// doc comment for why the heavier traversal logic isn't pushed into SQL.
func (r *graphRepo) GetNeighbors(ctx context.Context, entity string, depth int) ([]model.GraphEdge, error) {
	const q = `
		WITH RECURSIVE walk(node, hop) AS (
			SELECT $1::text, 0
			UNION
			SELECT CASE WHEN e.subject = w.node THEN e.object ELSE e.subject END, w.hop + 1
			FROM graph_edges e
			JOIN walk w ON e.subject = w.node OR e.object = w.node
			WHERE w.hop < $2
		)
		SELECT DISTINCT ge.id, ge.subject, ge.predicate, ge.object, ge.weight, ge.created_at
		FROM graph_edges ge
		JOIN walk w ON (ge.subject = w.node OR ge.object = w.node) AND w.hop < $2
		ORDER BY ge.weight DESC`
	rows, err := r.q.Query(ctx, q, entity, depth)
	if err != nil {
		return nil, fmt.Errorf("graph: get neighbors: %w", err)
	}
	return pgx.CollectRows(rows, scanEdge)
}

func (r *graphRepo) DeleteBySubject(ctx context.Context, subject string) (int, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM graph_edges WHERE subject = $1`, subject)
	if err != nil {
		return 0, fmt.Errorf("graph: delete by subject: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *graphRepo) ListAll(ctx context.Context) ([]model.GraphEdge, error) {
	rows, err := r.q.Query(ctx, `SELECT id, subject, predicate, object, weight, created_at FROM graph_edges`)
	if err != nil {
		return nil, fmt.Errorf("graph: list all: %w", err)
	}
	return pgx.CollectRows(rows, scanEdge)
}

func (r *graphRepo) DeleteAll(ctx context.Context) (int, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM graph_edges`)
	if err != nil {
		return 0, fmt.Errorf("graph: delete all: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *graphRepo) UpdateWeight(ctx context.Context, subject, predicate, object string, weight float64) (bool, error) {
	const q = `UPDATE graph_edges SET weight = $4 WHERE subject = $1 AND predicate = $2 AND object = $3`
	tag, err := r.q.Exec(ctx, q, subject, predicate, object, weight)
	if err != nil {
		return false, fmt.Errorf("graph: update weight: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *graphRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM graph_edges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("graph: count: %w", err)
	}
	return n, nil
}
