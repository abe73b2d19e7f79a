package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
)

type categoryAccessRepo struct{ tx *sql.Tx }

func (r *categoryAccessRepo) Create(ctx context.Context, a *model.CategoryAccess) (uuid.UUID, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AccessedAt.IsZero() {
		a.AccessedAt = time.Now().UTC()
	}
	const q = `INSERT INTO category_accesses (id, category, accessed_at, source) VALUES (?,?,?,?)`
	if _, err := r.tx.ExecContext(ctx, q, a.ID.String(), a.Category, timeToStr(a.AccessedAt), a.Source); err != nil {
		return uuid.Nil, fmt.Errorf("category_accesses: create: %w", err)
	}
	return a.ID, nil
}

func (r *categoryAccessRepo) GetRecent(ctx context.Context, category string, since *time.Time, limit int) ([]model.CategoryAccess, error) {
	q := `SELECT id, category, accessed_at, source FROM category_accesses WHERE category = ?`
	args := []any{category}
	if since != nil {
		q += ` AND accessed_at >= ?`
		args = append(args, timeToStr(*since))
	}
	q += ` ORDER BY accessed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("category_accesses: get recent: %w", err)
	}
	defer rows.Close()
	var out []model.CategoryAccess
	for rows.Next() {
		var (
			a          model.CategoryAccess
			id, access string
		)
		if err := rows.Scan(&id, &a.Category, &access, &a.Source); err != nil {
			return nil, err
		}
		a.ID = uuid.MustParse(id)
		a.AccessedAt = strToTime(access)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *categoryAccessRepo) CountByCategory(ctx context.Context, since *time.Time) (map[string]int, error) {
	q := `SELECT category, count(*) FROM category_accesses`
	var args []any
	if since != nil {
		q += ` WHERE accessed_at >= ?`
		args = append(args, timeToStr(*since))
	}
	q += ` GROUP BY category`
	rows, err := r.tx.QueryContext(ctx, q, args...)
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
	res, err := r.tx.ExecContext(ctx, `DELETE FROM category_accesses WHERE accessed_at < ?`, timeToStr(before))
	if err != nil {
		return 0, fmt.Errorf("category_accesses: cleanup old: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
