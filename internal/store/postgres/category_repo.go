package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/tieredmem/internal/model"
)

type categoryRepo struct{ q querier }

func scanCategory(row pgx.CollectableRow) (model.Category, error) {
	var c model.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Summary, &c.UpdatedAt); err != nil {
		return model.Category{}, err
	}
	return c, nil
}

func (r *categoryRepo) Create(ctx context.Context, c *model.Category) (uuid.UUID, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO categories (id, name, summary, updated_at) VALUES ($1,$2,$3,$4)`
	if _, err := r.q.Exec(ctx, q, c.ID, c.Name, c.Summary, c.UpdatedAt); err != nil {
		return uuid.Nil, fmt.Errorf("categories: create: %w", err)
	}
	return c.ID, nil
}

func (r *categoryRepo) Get(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, summary, updated_at FROM categories WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("categories: get: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepo) GetByName(ctx context.Context, name string) (*model.Category, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, summary, updated_at FROM categories WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("categories: get by name: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, summary, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("categories: list: %w", err)
	}
	return pgx.CollectRows(rows, scanCategory)
}

func (r *categoryRepo) UpdateSummary(ctx context.Context, name, summary string) error {
	const q = `UPDATE categories SET summary = $2, updated_at = now() WHERE name = $1`
	if _, err := r.q.Exec(ctx, q, name, summary); err != nil {
		return fmt.Errorf("categories: update summary: %w", err)
	}
	return nil
}

func (r *categoryRepo) Upsert(ctx context.Context, c *model.Category) (uuid.UUID, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	const q = `
		INSERT INTO categories (id, name, summary, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (name) DO UPDATE SET summary = EXCLUDED.summary, updated_at = now()
		RETURNING id`
	var id uuid.UUID
	if err := r.q.QueryRow(ctx, q, c.ID, c.Name, c.Summary).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("categories: upsert: %w", err)
	}
	return id, nil
}

func (r *categoryRepo) CountItemsPerCategory(ctx context.Context, status string) (map[string]int, error) {
	const q = `SELECT category, count(*) FROM items
		WHERE meta_about IS NULL AND ($1 = '' OR status = $1)
		GROUP BY category`
	rows, err := r.q.Query(ctx, q, status)
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
