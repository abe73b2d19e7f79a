package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/tieredmem/internal/model"
)

type resourceRepo struct{ q querier }

func (r *resourceRepo) Create(ctx context.Context, res *model.Resource) (uuid.UUID, error) {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resources: marshal metadata: %w", err)
	}
	const q = `
		INSERT INTO resources (id, created_at, source, content, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)`
	if _, err := r.q.Exec(ctx, q, res.ID, res.CreatedAt, res.Source, res.Content, string(meta)); err != nil {
		return uuid.Nil, fmt.Errorf("resources: create: %w", err)
	}
	return res.ID, nil
}

func scanResource(row pgx.CollectableRow) (model.Resource, error) {
	var (
		res  model.Resource
		meta string
	)
	if err := row.Scan(&res.ID, &res.CreatedAt, &res.Source, &res.Content, &meta); err != nil {
		return model.Resource{}, err
	}
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &res.Metadata)
	}
	return res, nil
}

func (r *resourceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	const q = `SELECT id, created_at, source, content, metadata FROM resources WHERE id = $1`
	rows, err := r.q.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("resources: get: %w", err)
	}
	res, err := pgx.CollectExactlyOneRow(rows, scanResource)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *resourceRepo) List(ctx context.Context, source string, since *time.Time, limit int) ([]model.Resource, error) {
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	where := ""
	var conds []string
	if source != "" {
		conds = append(conds, "source = "+next(source))
	}
	if since != nil {
		conds = append(conds, "created_at >= "+next(*since))
	}
	for i, c := range conds {
		if i == 0 {
			where = "WHERE " + c
		} else {
			where += " AND " + c
		}
	}
	args = append(args, limit)
	q := fmt.Sprintf(`SELECT id, created_at, source, content, metadata FROM resources %s ORDER BY created_at DESC LIMIT $%d`, where, len(args))
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("resources: list: %w", err)
	}
	results, err := pgx.CollectRows(rows, scanResource)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *resourceRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM resources`).Scan(&n); err != nil {
		return 0, fmt.Errorf("resources: count: %w", err)
	}
	return n, nil
}

func (r *resourceRepo) ListUnextracted(ctx context.Context, limit int) ([]model.Resource, error) {
	const q = `SELECT id, created_at, source, content, metadata FROM resources WHERE NOT extracted ORDER BY created_at LIMIT $1`
	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("resources: list unextracted: %w", err)
	}
	results, err := pgx.CollectRows(rows, scanResource)
	if err != nil {
		return nil, err
	}
	// Mark returned rows extracted so a second call doesn't re-extract them.
	ids := make([]uuid.UUID, len(results))
	for i, res := range results {
		ids[i] = res.ID
	}
	if len(ids) > 0 {
		if _, err := r.q.Exec(ctx, `UPDATE resources SET extracted = true WHERE id = ANY($1)`, ids); err != nil {
			return nil, fmt.Errorf("resources: mark extracted: %w", err)
		}
	}
	return results, nil
}

func (r *resourceRepo) DeleteOrphaned(ctx context.Context, maxAgeDays int) (int, error) {
	const q = `
		DELETE FROM resources
		WHERE created_at < now() - make_interval(days => $1)
		  AND NOT EXISTS (SELECT 1 FROM items WHERE items.resource_id = resources.id)`
	tag, err := r.q.Exec(ctx, q, maxAgeDays)
	if err != nil {
		return 0, fmt.Errorf("resources: delete orphaned: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
