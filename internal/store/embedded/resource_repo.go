package embedded

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
)

type resourceRepo struct{ tx *sql.Tx }

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
	const q = `INSERT INTO resources (id, created_at, source, content, metadata) VALUES (?,?,?,?,?)`
	if _, err := r.tx.ExecContext(ctx, q, res.ID.String(), timeToStr(res.CreatedAt), res.Source, res.Content, string(meta)); err != nil {
		return uuid.Nil, fmt.Errorf("resources: create: %w", err)
	}
	return res.ID, nil
}

func scanResourceRow(row interface{ Scan(...any) error }) (model.Resource, error) {
	var (
		res          model.Resource
		id, created  string
		meta         string
	)
	if err := row.Scan(&id, &created, &res.Source, &res.Content, &meta); err != nil {
		return model.Resource{}, err
	}
	res.ID = uuid.MustParse(id)
	res.CreatedAt = strToTime(created)
	if meta != "" {
		_ = json.Unmarshal([]byte(meta), &res.Metadata)
	}
	return res, nil
}

func (r *resourceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT id, created_at, source, content, metadata FROM resources WHERE id = ?`, id.String())
	res, err := scanResourceRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("resources: get: %w", err)
	}
	return &res, nil
}

func (r *resourceRepo) List(ctx context.Context, source string, since *time.Time, limit int) ([]model.Resource, error) {
	q := `SELECT id, created_at, source, content, metadata FROM resources WHERE 1=1`
	var args []any
	if source != "" {
		q += ` AND source = ?`
		args = append(args, source)
	}
	if since != nil {
		q += ` AND created_at >= ?`
		args = append(args, timeToStr(*since))
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("resources: list: %w", err)
	}
	defer rows.Close()
	var out []model.Resource
	for rows.Next() {
		res, err := scanResourceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *resourceRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.tx.QueryRowContext(ctx, `SELECT count(*) FROM resources`).Scan(&n); err != nil {
		return 0, fmt.Errorf("resources: count: %w", err)
	}
	return n, nil
}

func (r *resourceRepo) ListUnextracted(ctx context.Context, limit int) ([]model.Resource, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT id, created_at, source, content, metadata FROM resources WHERE extracted = 0 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("resources: list unextracted: %w", err)
	}
	defer rows.Close()
	var out []model.Resource
	for rows.Next() {
		res, err := scanResourceRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, res := range out {
		if _, err := r.tx.ExecContext(ctx, `UPDATE resources SET extracted = 1 WHERE id = ?`, res.ID.String()); err != nil {
			return nil, fmt.Errorf("resources: mark extracted: %w", err)
		}
	}
	return out, nil
}

func (r *resourceRepo) DeleteOrphaned(ctx context.Context, maxAgeDays int) (int, error) {
	cutoff := timeToStr(time.Now().UTC().AddDate(0, 0, -maxAgeDays))
	const q = `
		DELETE FROM resources
		WHERE created_at < ?
		  AND NOT EXISTS (SELECT 1 FROM items WHERE items.resource_id = resources.id)`
	res, err := r.tx.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("resources: delete orphaned: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
