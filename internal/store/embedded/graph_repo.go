package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
)

type graphRepo struct{ tx *sql.Tx }

func scanEdgeRow(row interface{ Scan(...any) error }) (model.GraphEdge, error) {
	var (
		e           model.GraphEdge
		id, created string
	)
	if err := row.Scan(&id, &e.Subject, &e.Predicate, &e.Object, &e.Weight, &created); err != nil {
		return model.GraphEdge{}, err
	}
	e.ID = uuid.MustParse(id)
	e.CreatedAt = strToTime(created)
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
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (subject, predicate, object) DO UPDATE SET weight = excluded.weight`
	if _, err := r.tx.ExecContext(ctx, q, e.ID.String(), e.Subject, e.Predicate, e.Object, e.Weight, timeToStr(e.CreatedAt)); err != nil {
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

func (r *graphRepo) queryEdges(ctx context.Context, q string, args ...any) ([]model.GraphEdge, error) {
	rows, err := r.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.GraphEdge
	for rows.Next() {
		e, err := scanEdgeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *graphRepo) GetBySubject(ctx context.Context, subject string) ([]model.GraphEdge, error) {
	edges, err := r.queryEdges(ctx, `SELECT id, subject, predicate, object, weight, created_at FROM graph_edges WHERE subject = ? ORDER BY weight DESC`, subject)
	if err != nil {
		return nil, fmt.Errorf("graph: get by subject: %w", err)
	}
	return edges, nil
}

func (r *graphRepo) GetByObject(ctx context.Context, object string) ([]model.GraphEdge, error) {
	edges, err := r.queryEdges(ctx, `SELECT id, subject, predicate, object, weight, created_at FROM graph_edges WHERE object = ? ORDER BY weight DESC`, object)
	if err != nil {
		return nil, fmt.Errorf("graph: get by object: %w", err)
	}
	return edges, nil
}

// GetNeighbors mirrors the postgres backend's recursive-CTE walk; sqlite
// supports WITH RECURSIVE natively so the query translates directly.
func (r *graphRepo) GetNeighbors(ctx context.Context, entity string, depth int) ([]model.GraphEdge, error) {
	const q = `
		WITH RECURSIVE walk(node, hop) AS (
			SELECT ?, 0
			UNION
			SELECT CASE WHEN e.subject = w.node THEN e.object ELSE e.subject END, w.hop + 1
			FROM graph_edges e
			JOIN walk w ON e.subject = w.node OR e.object = w.node
			WHERE w.hop < ?
		)
		SELECT DISTINCT ge.id, ge.subject, ge.predicate, ge.object, ge.weight, ge.created_at
		FROM graph_edges ge
		JOIN walk w ON (ge.subject = w.node OR ge.object = w.node) AND w.hop < ?
		ORDER BY ge.weight DESC`
	edges, err := r.queryEdges(ctx, q, entity, depth, depth)
	if err != nil {
		return nil, fmt.Errorf("graph: get neighbors: %w", err)
	}
	return edges, nil
}

func (r *graphRepo) DeleteBySubject(ctx context.Context, subject string) (int, error) {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM graph_edges WHERE subject = ?`, subject)
	if err != nil {
		return 0, fmt.Errorf("graph: delete by subject: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *graphRepo) ListAll(ctx context.Context) ([]model.GraphEdge, error) {
	edges, err := r.queryEdges(ctx, `SELECT id, subject, predicate, object, weight, created_at FROM graph_edges`)
	if err != nil {
		return nil, fmt.Errorf("graph: list all: %w", err)
	}
	return edges, nil
}

func (r *graphRepo) DeleteAll(ctx context.Context) (int, error) {
	res, err := r.tx.ExecContext(ctx, `DELETE FROM graph_edges`)
	if err != nil {
		return 0, fmt.Errorf("graph: delete all: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *graphRepo) UpdateWeight(ctx context.Context, subject, predicate, object string, weight float64) (bool, error) {
	const q = `UPDATE graph_edges SET weight = ? WHERE subject = ? AND predicate = ? AND object = ?`
	res, err := r.tx.ExecContext(ctx, q, weight, subject, predicate, object)
	if err != nil {
		return false, fmt.Errorf("graph: update weight: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *graphRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.tx.QueryRowContext(ctx, `SELECT count(*) FROM graph_edges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("graph: count: %w", err)
	}
	return n, nil
}
