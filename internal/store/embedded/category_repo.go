package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
)

type categoryRepo struct{ tx *sql.Tx }

func scanCategoryRow(row interface{ Scan(...any) error }) (model.Category, error) {
	var (
		c         model.Category
		id, upd   string
	)
	if err := row.Scan(&id, &c.Name, &c.Summary, &upd); err != nil {
		return model.Category{}, err
	}
	c.ID = uuid.MustParse(id)
	c.UpdatedAt = strToTime(upd)
	return c, nil
}

func (r *categoryRepo) Create(ctx context.Context, c *model.Category) (uuid.UUID, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO categories (id, name, summary, updated_at) VALUES (?,?,?,?)`
	if _, err := r.tx.ExecContext(ctx, q, c.ID.String(), c.Name, c.Summary, timeToStr(c.UpdatedAt)); err != nil {
		return uuid.Nil, fmt.Errorf("categories: create: %w", err)
	}
	return c.ID, nil
}

func (r *categoryRepo) Get(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT id, name, summary, updated_at FROM categories WHERE id = ?`, id.String())
	c, err := scanCategoryRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("categories: get: %w", err)
	}
	return &c, nil
}

func (r *categoryRepo) GetByName(ctx context.Context, name string) (*model.Category, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT id, name, summary, updated_at FROM categories WHERE name = ?`, name)
	c, err := scanCategoryRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("categories: get by name: %w", err)
	}
	return &c, nil
}

func (r *categoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT id, name, summary, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("categories: list: %w", err)
	}
	defer rows.Close()
	var out []model.Category
	for rows.Next() {
		c, err := scanCategoryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *categoryRepo) UpdateSummary(ctx context.Context, name, summary string) error {
	const q = `UPDATE categories SET summary = ?, updated_at = ? WHERE name = ?`
	if _, err := r.tx.ExecContext(ctx, q, summary, timeToStr(time.Now().UTC()), name); err != nil {
		return fmt.Errorf("categories: update summary: %w", err)
	}
	return nil
}

func (r *categoryRepo) Upsert(ctx context.Context, c *model.Category) (uuid.UUID, error) {
	existing, err := r.GetByName(ctx, c.Name)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		if err := r.UpdateSummary(ctx, c.Name, c.Summary); err != nil {
			return uuid.Nil, err
		}
		return existing.ID, nil
	}
	return r.Create(ctx, c)
}

func (r *categoryRepo) CountItemsPerCategory(ctx context.Context, status string) (map[string]int, error) {
	q := `SELECT category, count(*) FROM items WHERE meta_about IS NULL`
	var args []any
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` GROUP BY category`
	rows, err := r.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("categories: count items per category: %w", err)
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
