package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
)

type itemRepo struct{ tx *sql.Tx }

const itemColumns = `id, created_at, resource_id, subject, predicate, object, category,
	confidence, status, supersedes, canonical_subject, canonical_object, meta_about`

func scanItemRow(row interface{ Scan(...any) error }) (model.Item, error) {
	var (
		it                               model.Item
		id, created                      string
		resourceID, supersedes, metaAbout sql.NullString
	)
	if err := row.Scan(
		&id, &created, &resourceID, &it.Subject, &it.Predicate, &it.Object, &it.Category,
		&it.Confidence, &it.Status, &supersedes, &it.CanonicalSubject, &it.CanonicalObject, &metaAbout,
	); err != nil {
		return model.Item{}, err
	}
	it.ID = uuid.MustParse(id)
	it.CreatedAt = strToTime(created)
	it.ResourceID = scanNullUUID(resourceID)
	it.Supersedes = scanNullUUID(supersedes)
	it.MetaAbout = scanNullUUID(metaAbout)
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
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	var resourceID, supersedes, metaAbout *string
	if it.ResourceID != nil {
		s := it.ResourceID.String()
		resourceID = &s
	}
	if it.Supersedes != nil {
		s := it.Supersedes.String()
		supersedes = &s
	}
	if it.MetaAbout != nil {
		s := it.MetaAbout.String()
		metaAbout = &s
	}
	_, err := r.tx.ExecContext(ctx, q, it.ID.String(), timeToStr(it.CreatedAt), resourceID, it.Subject, it.Predicate,
		it.Object, it.Category, it.Confidence, it.Status, supersedes, it.CanonicalSubject, it.CanonicalObject, metaAbout)
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
	row := r.tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id.String())
	it, err := scanItemRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("items: get: %w", err)
	}
	return &it, nil
}

func (r *itemRepo) Update(ctx context.Context, it *model.Item) error {
	var supersedes *string
	if it.Supersedes != nil {
		s := it.Supersedes.String()
		supersedes = &s
	}
	const q = `
		UPDATE items SET subject=?, predicate=?, object=?, category=?, confidence=?,
			status=?, supersedes=?, canonical_subject=?, canonical_object=?
		WHERE id = ?`
	_, err := r.tx.ExecContext(ctx, q, it.Subject, it.Predicate, it.Object, it.Category,
		it.Confidence, it.Status, supersedes, it.CanonicalSubject, it.CanonicalObject, it.ID.String())
	if err != nil {
		return fmt.Errorf("items: update: %w", err)
	}
	return nil
}

func (r *itemRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if _, err := r.tx.ExecContext(ctx, `UPDATE items SET status = ? WHERE id = ?`, status, id.String()); err != nil {
		return fmt.Errorf("items: update status: %w", err)
	}
	return nil
}

func (r *itemRepo) queryItems(ctx context.Context, q string, args ...any) ([]model.Item, error) {
	rows, err := r.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Item
	for rows.Next() {
		it, err := scanItemRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *itemRepo) List(ctx context.Context, category, status string, limit int) ([]model.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE meta_about IS NULL`
	var args []any
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	items, err := r.queryItems(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("items: list: %w", err)
	}
	return items, nil
}

func (r *itemRepo) ListByResource(ctx context.Context, resourceID uuid.UUID) ([]model.Item, error) {
	items, err := r.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE resource_id = ? ORDER BY created_at`, resourceID.String())
	if err != nil {
		return nil, fmt.Errorf("items: list by resource: %w", err)
	}
	return items, nil
}

func (r *itemRepo) ListBySubject(ctx context.Context, canonicalSubject, status string) ([]model.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE canonical_subject = ? AND meta_about IS NULL`
	args := []any{canonicalSubject}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`
	items, err := r.queryItems(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("items: list by subject: %w", err)
	}
	return items, nil
}

func (r *itemRepo) Count(ctx context.Context, category, status string) (int, error) {
	q := `SELECT count(*) FROM items WHERE meta_about IS NULL`
	var args []any
	if category != "" {
		q += ` AND category = ?`
		args = append(args, category)
	}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	var n int
	if err := r.tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("items: count: %w", err)
	}
	return n, nil
}

func (r *itemRepo) FindPotentialConflicts(ctx context.Context, canonicalSubject, predicate string, excludeID *uuid.UUID) ([]model.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items
		WHERE canonical_subject = ? AND predicate = ? AND status = 'active' AND meta_about IS NULL`
	args := []any{canonicalSubject, predicate}
	if excludeID != nil {
		q += ` AND id != ?`
		args = append(args, excludeID.String())
	}
	items, err := r.queryItems(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("items: find potential conflicts: %w", err)
	}
	return items, nil
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
	rows, err := r.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("items: list duplicates: %w", err)
	}
	defer rows.Close()
	var pairs [][2]string
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]string{a, b})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([][2]model.Item, 0, len(pairs))
	for _, p := range pairs {
		older, err := r.Get(ctx, uuid.MustParse(p[0]))
		if err != nil {
			return nil, err
		}
		newer, err := r.Get(ctx, uuid.MustParse(p[1]))
		if err != nil {
			return nil, err
		}
		if older == nil || newer == nil {
			continue
		}
		if older.CreatedAt.After(newer.CreatedAt) {
			older, newer = newer, older
		}
		out = append(out, [2]model.Item{*older, *newer})
	}
	return out, nil
}

func (r *itemRepo) CountBySubjectRecent(ctx context.Context, canonicalSubject string, days int) (int, error) {
	cutoff := timeToStr(time.Now().UTC().AddDate(0, 0, -days))
	var n int
	const q = `SELECT count(*) FROM items WHERE canonical_subject = ? AND created_at >= ?`
	if err := r.tx.QueryRowContext(ctx, q, canonicalSubject, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("items: count by subject recent: %w", err)
	}
	return n, nil
}

func (r *itemRepo) ListDistinctCategories(ctx context.Context, status string) ([]string, error) {
	q := `SELECT DISTINCT category FROM items WHERE category != ?`
	args := []any{model.MetaCategory}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	rows, err := r.tx.QueryContext(ctx, q, args...)
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
	cutoff := timeToStr(time.Now().UTC().AddDate(0, 0, -maxAgeDays))
	q := `SELECT ` + itemColumns + ` FROM items WHERE status = 'active' AND created_at < ? AND confidence < ?`
	items, err := r.queryItems(ctx, q, cutoff, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("items: list old low confidence: %w", err)
	}
	return items, nil
}

func (r *itemRepo) GetStatsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT status, count(*) FROM items GROUP BY status`)
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
	q := `SELECT avg(confidence) FROM items WHERE 1=1`
	var args []any
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	var avg sql.NullFloat64
	if err := r.tx.QueryRowContext(ctx, q, args...).Scan(&avg); err != nil {
		return 0, fmt.Errorf("items: avg confidence: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

func (r *itemRepo) ListAllIDs(ctx context.Context, status string) ([]uuid.UUID, error) {
	q := `SELECT id FROM items WHERE meta_about IS NULL`
	var args []any
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	rows, err := r.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("items: list all ids: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		ids = append(ids, uuid.MustParse(s))
	}
	return ids, rows.Err()
}

func (r *itemRepo) ListArchived(ctx context.Context, limit int) ([]model.Item, error) {
	items, err := r.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE status = 'archived' ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("items: list archived: %w", err)
	}
	return items, nil
}

func (r *itemRepo) GetSupersedingItem(ctx context.Context, archivedID uuid.UUID) (*model.Item, error) {
	row := r.tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE supersedes = ?`, archivedID.String())
	it, err := scanItemRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("items: get superseding item: %w", err)
	}
	return &it, nil
}

func (r *itemRepo) GetMetaFacts(ctx context.Context, itemID uuid.UUID) ([]model.Item, error) {
	items, err := r.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE meta_about = ? ORDER BY created_at`, itemID.String())
	if err != nil {
		return nil, fmt.Errorf("items: get meta facts: %w", err)
	}
	return items, nil
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
