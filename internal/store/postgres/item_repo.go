package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/tieredmem/internal/model"
)

type itemRepo struct{ q querier }

const itemColumns = `id, created_at, resource_id, subject, predicate, object, category,
	confidence, status, supersedes, canonical_subject, canonical_object, meta_about`

func scanItem(row pgx.CollectableRow) (model.Item, error) {
	var it model.Item
	if err := row.Scan(
		&it.ID, &it.CreatedAt, &it.ResourceID, &it.Subject, &it.Predicate, &it.Object, &it.Category,
		&it.Confidence, &it.Status, &it.Supersedes, &it.CanonicalSubject, &it.CanonicalObject, &it.MetaAbout,
	); err != nil {
		return model.Item{}, err
	}
	return it, nil
}

func (r *itemRepo) Create(ctx context.Context, it *model.Item) (uuid.UUID, error) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	if it.Status == "" {
		it.Status = model.StatusActive
	}
	const q = `
		INSERT INTO items (id, created_at, resource_id, subject, predicate, object, category,
			confidence, status, supersedes, canonical_subject, canonical_object, meta_about)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.q.Exec(ctx, q, it.ID, it.CreatedAt, it.ResourceID, it.Subject, it.Predicate, it.Object,
		it.Category, it.Confidence, it.Status, it.Supersedes, it.CanonicalSubject, it.CanonicalObject, it.MetaAbout)
	if err != nil {
		return uuid.Nil, fmt.Errorf("items: create: %w", err)
	}
	return it.ID, nil
}

func (r *itemRepo) CreateMany(ctx context.Context, items []model.Item) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for i := range items {
		id, err := r.Create(ctx, &items[i])
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *itemRepo) Get(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	rows, err := r.q.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("items: get: %w", err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *itemRepo) Update(ctx context.Context, it *model.Item) error {
	const q = `
		UPDATE items SET subject=$2, predicate=$3, object=$4, category=$5, confidence=$6,
			status=$7, supersedes=$8, canonical_subject=$9, canonical_object=$10
		WHERE id = $1`
	_, err := r.q.Exec(ctx, q, it.ID, it.Subject, it.Predicate, it.Object, it.Category,
		it.Confidence, it.Status, it.Supersedes, it.CanonicalSubject, it.CanonicalObject)
	if err != nil {
		return fmt.Errorf("items: update: %w", err)
	}
	return nil
}

func (r *itemRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if _, err := r.q.Exec(ctx, `UPDATE items SET status = $2 WHERE id = $1`, id, status); err != nil {
		return fmt.Errorf("items: update status: %w", err)
	}
	return nil
}

func (r *itemRepo) List(ctx context.Context, category, status string, limit int) ([]model.Item, error) {
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	conds := []string{"meta_about IS NULL"}
	if category != "" {
		conds = append(conds, "category = "+next(category))
	}
	if status != "" {
		conds = append(conds, "status = "+next(status))
	}
	where := "WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	args = append(args, limit)
	q := fmt.Sprintf(`SELECT %s FROM items %s ORDER BY created_at DESC LIMIT $%d`, itemColumns, where, len(args))
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("items: list: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

func (r *itemRepo) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]model.Item, error) {
	rows, err := r.q.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE resource_id = $1 ORDER BY created_at`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("items: list by resource: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

func (r *itemRepo) ListBySubject(ctx context.Context, canonicalSubject, status string) ([]model.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items
		WHERE canonical_subject = $1 AND meta_about IS NULL AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`
	rows, err := r.q.Query(ctx, q, canonicalSubject, status)
	if err != nil {
		return nil, fmt.Errorf("items: list by subject: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

func (r *itemRepo) Count(ctx context.Context, category, status string) (int, error) {
	const q = `SELECT count(*) FROM items
		WHERE meta_about IS NULL AND ($1 = '' OR category = $1) AND ($2 = '' OR status = $2)`
	var n int
	if err := r.q.QueryRow(ctx, q, category, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("items: count: %w", err)
	}
	return n, nil
}

func (r *itemRepo) FindPotentialConflicts(ctx context.Context, canonicalSubject, predicate string, excludeID *uuid.UUID) ([]model.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items
		WHERE canonical_subject = $1 AND predicate = $2 AND status = 'active' AND meta_about IS NULL
		  AND ($3::uuid IS NULL OR id != $3)`
	rows, err := r.q.Query(ctx, q, canonicalSubject, predicate, excludeID)
	if err != nil {
		return nil, fmt.Errorf("items: find potential conflicts: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

func (r *itemRepo) ListDuplicates(ctx context.Context) ([][2]model.Item, error) {
	const q = `
		SELECT a.id, b.id FROM items a
		JOIN items b ON a.canonical_subject = b.canonical_subject
			AND a.predicate = b.predicate
			AND a.canonical_object = b.canonical_object
			AND a.id < b.id
		WHERE a.status = 'active' AND b.status = 'active'
			AND a.meta_about IS NULL AND b.meta_about IS NULL`
	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("items: list duplicates: %w", err)
	}
	defer rows.Close()

	var pairs [][2]uuid.UUID
	for rows.Next() {
		var a, b uuid.UUID
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("items: scan duplicate pair: %w", err)
		}
		pairs = append(pairs, [2]uuid.UUID{a, b})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([][2]model.Item, 0, len(pairs))
	for _, p := range pairs {
		older, err := r.Get(ctx, p[0])
		if err != nil {
			return nil, err
		}
		newer, err := r.Get(ctx, p[1])
		if err != nil {
			return nil, err
		}
		if older.CreatedAt.After(newer.CreatedAt) {
			older, newer = newer, older
		}
		out = append(out, [2]model.Item{*older, *newer})
	}
	return out, nil
}

func (r *itemRepo) CountBySubjectRecent(ctx context.Context, canonicalSubject string, days int) (int, error) {
	const q = `SELECT count(*) FROM items
		WHERE canonical_subject = $1 AND created_at >= now() - make_interval(days => $2)`
	var n int
	if err := r.q.QueryRow(ctx, q, canonicalSubject, days).Scan(&n); err != nil {
		return 0, fmt.Errorf("items: count by subject recent: %w", err)
	}
	return n, nil
}

func (r *itemRepo) ListDistinctCategories(ctx context.Context, status string) ([]string, error) {
	const q = `SELECT DISTINCT category FROM items
		WHERE category != $1 AND ($2 = '' OR status = $2)`
	rows, err := r.q.Query(ctx, q, model.MetaCategory, status)
	if err != nil {
		return nil, fmt.Errorf("items: list distinct categories: %w", err)
	}
	defer rows.Close()
	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *itemRepo) ListOldLowConfidence(ctx context.Context, maxAgeDays int, minConfidence float64) ([]model.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items
		WHERE status = 'active' AND created_at < now() - make_interval(days => $1) AND confidence < $2`
	rows, err := r.q.Query(ctx, q, maxAgeDays, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("items: list old low confidence: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

func (r *itemRepo) GetStatsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.q.Query(ctx, `SELECT status, count(*) FROM items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("items: stats by status: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *itemRepo) GetAvgConfidence(ctx context.Context, status string) (float64, error) {
	var avg *float64
	const q = `SELECT avg(confidence) FROM items WHERE ($1 = '' OR status = $1)`
	if err := r.q.QueryRow(ctx, q, status).Scan(&avg); err != nil {
		return 0, fmt.Errorf("items: avg confidence: %w", err)
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *itemRepo) ListAllIDs(ctx context.Context, status string) ([]uuid.UUID, error) {
	const q = `SELECT id FROM items WHERE meta_about IS NULL AND ($1 = '' OR status = $1)`
	rows, err := r.q.Query(ctx, q, status)
	if err != nil {
		return nil, fmt.Errorf("items: list all ids: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *itemRepo) ListArchived(ctx context.Context, limit int) ([]model.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE status = 'archived' ORDER BY created_at DESC LIMIT $1`
	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("items: list archived: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

func (r *itemRepo) GetSupersedingItem(ctx context.Context, archivedID uuid.UUID) (*model.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE supersedes = $1`
	rows, err := r.q.Query(ctx, q, archivedID)
	if err != nil {
		return nil, fmt.Errorf("items: get superseding item: %w", err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

func (r *itemRepo) GetMetaFacts(ctx context.Context, itemID uuid.UUID) ([]model.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE meta_about = $1 ORDER BY created_at`
	rows, err := r.q.Query(ctx, q, itemID)
	if err != nil {
		return nil, fmt.Errorf("items: get meta facts: %w", err)
	}
	return pgx.CollectRows(rows, scanItem)
}

func (r *itemRepo) CreateMetaFact(ctx context.Context, aboutItemID uuid.UUID, predicate, object string, confidence float64) (*model.Item, error) {
	meta := &model.Item{
		ID:         uuid.New(),
		CreatedAt:  time.Now().UTC(),
		Predicate:  predicate,
		Object:     object,
		Category:   model.MetaCategory,
		Confidence: confidence,
		Status:     model.StatusActive,
		MetaAbout:  &aboutItemID,
	}
	if _, err := r.Create(ctx, meta); err != nil {
		return nil, err
	}
	return meta, nil
}
