package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/tieredmem/internal/model"
)

type categoryAccessRepo struct{ q querier }

func (r *categoryAccessRepo) Create(ctx context.Context, a *model.CategoryAccess) (uuid.UUID, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AccessedAt.IsZero() {
		a.AccessedAt = time.Now().UTC()
	}
	const q = `INSERT INTO category_accesses (id, category, accessed_at, source) VALUES ($1,$2,$3,$4)`
	if _, err := r.q.Exec(ctx, q, a.ID, a.Category, a.AccessedAt, a.Source); err != nil {
		return uuid.Nil, fmt.Errorf("category_accesses: create: %w", err)
	}
	return a.ID, nil
}

func (r *categoryAccessRepo) GetRecent(ctx context.Context, category string, since *time.Time, limit int) ([]model.CategoryAccess, error) {
	args := []any{category}
	where := "WHERE category = $1"
	if since != nil {
		args = append(args, *since)
		where += fmt.Sprintf(" AND accessed_at >= $%d", len(args))
	}
	args = append(args, limit)
	q := fmt.Sprintf(`SELECT id, category, accessed_at, source FROM category_accesses %s ORDER BY accessed_at DESC LIMIT $%d`, where, len(args))
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("category_accesses: get recent: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.CategoryAccess, error) {
		var a model.CategoryAccess
		err := row.Scan(&a.ID, &a.Category, &a.AccessedAt, &a.Source)
		return a, err
	})
}

func (r *categoryAccessRepo) CountByCategory(ctx context.Context, since *time.Time) (map[string]int, error) {
	q := `SELECT category, count(*) FROM category_accesses`
	var args []any
	if since != nil {
		q += ` WHERE accessed_at >= $1`
		args = append(args, *since)
	}
	q += ` GROUP BY category`
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("category_accesses: count by category: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	return out, rows.Err()
}

func (r *categoryAccessRepo) CleanupOld(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM category_accesses WHERE accessed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("category_accesses: cleanup old: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
