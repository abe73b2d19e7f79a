package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/tieredmem/internal/model"
)

// mockRow and mockRows mirror the teacher's npcstore postgres_test.go mock
// DB doubles: plain structs implementing pgx.Row/pgx.Rows so every repo can
// be exercised without a live Postgres connection.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type mockRows struct {
	data    [][]any
	idx     int
	err     error
	scanErr error
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx-1]
	for i, v := range row {
		switch d := dest[i].(type) {
		case *uuid.UUID:
			*d = v.(uuid.UUID)
		case *string:
			*d = v.(string)
		case *time.Time:
			*d = v.(time.Time)
		case *float64:
			*d = v.(float64)
		case **uuid.UUID:
			*d = v.(*uuid.UUID)
		case *int:
			*d = v.(int)
		case *map[string]string:
			*d = v.(map[string]string)
		default:
			return errors.New("mockRows.Scan: unsupported destination type")
		}
	}
	return nil
}

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func TestCategoryRepo_Create_InsertsWithGeneratedID(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	db := &mockDB{execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		capturedSQL = sql
		capturedArgs = args
		return pgconn.CommandTag{}, nil
	}}
	r := &categoryRepo{q: db}

	id, err := r.Create(context.Background(), &model.Category{Name: "preferences", Summary: "s"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == uuid.Nil {
		t.Error("expected a generated, non-nil ID")
	}
	if !strings.Contains(capturedSQL, "INSERT INTO categories") {
		t.Errorf("SQL = %q, want INSERT INTO categories", capturedSQL)
	}
	if len(capturedArgs) != 4 {
		t.Errorf("args = %v, want 4 columns", capturedArgs)
	}
}

func TestCategoryRepo_GetByName_NotFoundReturnsNilNoError(t *testing.T) {
	db := &mockDB{queryFunc: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
		return &mockRows{}, nil
	}}
	r := &categoryRepo{q: db}

	got, err := r.GetByName(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got != nil {
		t.Errorf("GetByName = %v, want nil for a missing category", got)
	}
}

func TestCategoryRepo_List_CollectsEveryRow(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	id1, id2 := uuid.New(), uuid.New()
	db := &mockDB{queryFunc: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
		return &mockRows{data: [][]any{
			{id1, "facts", "a summary", now},
			{id2, "preferences", "another summary", now},
		}}, nil
	}}
	r := &categoryRepo{q: db}

	cats, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("List() len = %d, want 2", len(cats))
	}
	if cats[0].Name != "facts" || cats[1].Name != "preferences" {
		t.Errorf("List() = %+v, names out of order", cats)
	}
}

func TestCategoryRepo_Upsert_UsesOnConflict(t *testing.T) {
	var capturedSQL string
	db := &mockDB{queryRowFunc: func(_ context.Context, sql string, _ ...any) pgx.Row {
		capturedSQL = sql
		return &mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*uuid.UUID)) = uuid.New()
			return nil
		}}
	}}
	r := &categoryRepo{q: db}

	if _, err := r.Upsert(context.Background(), &model.Category{Name: "facts"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !strings.Contains(capturedSQL, "ON CONFLICT") {
		t.Errorf("SQL = %q, want ON CONFLICT clause", capturedSQL)
	}
}

func TestCategoryRepo_CountItemsPerCategory_BuildsMap(t *testing.T) {
	db := &mockDB{queryFunc: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
		return &mockRows{data: [][]any{
			{"facts", 3},
			{"preferences", 1},
		}}, nil
	}}
	r := &categoryRepo{q: db}

	counts, err := r.CountItemsPerCategory(context.Background(), "active")
	if err != nil {
		t.Fatalf("CountItemsPerCategory: %v", err)
	}
	if counts["facts"] != 3 || counts["preferences"] != 1 {
		t.Errorf("counts = %v, want facts=3 preferences=1", counts)
	}
}

func TestResourceRepo_Create_MarshalsMetadataAndDefaultsCreatedAt(t *testing.T) {
	var capturedArgs []any
	db := &mockDB{execFunc: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
		capturedArgs = args
		return pgconn.CommandTag{}, nil
	}}
	r := &resourceRepo{q: db}

	res := &model.Resource{Source: "chat", Content: "alice likes tea", Metadata: map[string]string{"k": "v"}}
	id, err := r.Create(context.Background(), res)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == uuid.Nil {
		t.Error("expected generated ID")
	}
	if res.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to default to now")
	}
	if capturedArgs[4] != `{"k":"v"}` {
		t.Errorf("marshaled metadata = %v, want {\"k\":\"v\"}", capturedArgs[4])
	}
}

func TestResourceRepo_Count_ScansSingleValue(t *testing.T) {
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
		return &mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*int)) = 7
			return nil
		}}
	}}
	r := &resourceRepo{q: db}

	n, err := r.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 7 {
		t.Errorf("Count() = %d, want 7", n)
	}
}

func TestResourceRepo_List_FiltersBySourceAndSince(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	db := &mockDB{queryFunc: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
		capturedSQL = sql
		capturedArgs = args
		return &mockRows{}, nil
	}}
	r := &resourceRepo{q: db}

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := r.List(context.Background(), "chat", &since, 10); err != nil {
		t.Fatalf("List: %v", err)
	}
	if !strings.Contains(capturedSQL, "source = $1") || !strings.Contains(capturedSQL, "created_at >= $2") {
		t.Errorf("SQL = %q, want source and created_at filters", capturedSQL)
	}
	if len(capturedArgs) != 3 {
		t.Errorf("args = %v, want 3 (source, since, limit)", capturedArgs)
	}
}

func TestResourceRepo_DeleteOrphaned_ReturnsRowsAffected(t *testing.T) {
	db := &mockDB{execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		if !strings.Contains(sql, "DELETE FROM resources") {
			t.Errorf("SQL = %q, want DELETE FROM resources", sql)
		}
		return pgconn.NewCommandTag("DELETE 3"), nil
	}}
	r := &resourceRepo{q: db}

	n, err := r.DeleteOrphaned(context.Background(), 30)
	if err != nil {
		t.Fatalf("DeleteOrphaned: %v", err)
	}
	if n != 3 {
		t.Errorf("DeleteOrphaned() = %d, want 3", n)
	}
}

func TestEmbeddingRepo_Upsert_EncodesVector(t *testing.T) {
	var capturedArgs []any
	db := &mockDB{execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		capturedArgs = args
		if !strings.Contains(sql, "ON CONFLICT (item_id)") {
			t.Errorf("SQL = %q, want upsert-by-item_id", sql)
		}
		return pgconn.CommandTag{}, nil
	}}
	r := &embeddingRepo{q: db}

	if err := r.Upsert(context.Background(), uuid.New(), []float32{1, 2, 3}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	vec, ok := capturedArgs[1].(pgvector.Vector)
	if !ok {
		t.Fatalf("second arg = %T, want pgvector.Vector", capturedArgs[1])
	}
	if got := vec.Slice(); len(got) != 3 {
		t.Errorf("Vector.Slice() = %v, want length 3", got)
	}
}

func TestEmbeddingRepo_Get_NoRowsReturnsNilNoError(t *testing.T) {
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
		return &mockRow{scanFunc: func(_ ...any) error { return pgx.ErrNoRows }}
	}}
	r := &embeddingRepo{q: db}

	vec, err := r.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if vec != nil {
		t.Errorf("Get() = %v, want nil for a missing embedding", vec)
	}
}

func TestEmbeddingRepo_DeleteStale_PassesActiveIDs(t *testing.T) {
	var capturedArgs []any
	db := &mockDB{execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
		capturedArgs = args
		if !strings.Contains(sql, "NOT (item_id = ANY($1))") {
			t.Errorf("SQL = %q, want NOT ANY($1) filter", sql)
		}
		return pgconn.NewCommandTag("DELETE 2"), nil
	}}
	r := &embeddingRepo{q: db}

	active := []uuid.UUID{uuid.New()}
	n, err := r.DeleteStale(context.Background(), active)
	if err != nil {
		t.Fatalf("DeleteStale: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteStale() = %d, want 2", n)
	}
	if len(capturedArgs) != 1 {
		t.Fatalf("args = %v, want 1 (active id slice)", capturedArgs)
	}
}

func TestGraphRepo_Create_UpsertsOnConflict(t *testing.T) {
	var capturedSQL string
	db := &mockDB{execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		capturedSQL = sql
		return pgconn.CommandTag{}, nil
	}}
	r := &graphRepo{q: db}

	edge := model.GraphEdge{Subject: "alice", Predicate: "relates_to", Object: "bob", Weight: 1}
	if _, err := r.Create(context.Background(), &edge); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.Contains(capturedSQL, "ON CONFLICT (subject, predicate, object)") {
		t.Errorf("SQL = %q, want dedup on the (subject,predicate,object) triple", capturedSQL)
	}
}

func TestGraphRepo_GetBySubject_CollectsEdges(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	db := &mockDB{queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
		if args[0] != "alice" {
			t.Errorf("subject arg = %v, want alice", args[0])
		}
		return &mockRows{data: [][]any{
			{id, "alice", "relates_to", "bob", 1.0, now},
		}}, nil
	}}
	r := &graphRepo{q: db}

	edges, err := r.GetBySubject(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetBySubject: %v", err)
	}
	if len(edges) != 1 || edges[0].Object != "bob" {
		t.Errorf("GetBySubject() = %+v, want one edge to bob", edges)
	}
}

func TestGraphRepo_UpdateWeight_ReportsWhetherARowChanged(t *testing.T) {
	db := &mockDB{execFunc: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	r := &graphRepo{q: db}

	changed, err := r.UpdateWeight(context.Background(), "alice", "relates_to", "bob", 2.0)
	if err != nil {
		t.Fatalf("UpdateWeight: %v", err)
	}
	if changed {
		t.Error("UpdateWeight() = true, want false when zero rows matched")
	}
}

func TestGraphRepo_Count_ScansSingleValue(t *testing.T) {
	db := &mockDB{queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
		return &mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*int)) = 5
			return nil
		}}
	}}
	r := &graphRepo{q: db}

	n, err := r.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 5 {
		t.Errorf("Count() = %d, want 5", n)
	}
}

func TestStore_Begin_NeedsLivePool(t *testing.T) {
	// NewStore itself requires a live dsn/pool to construct meaningfully, so
	// this package only exercises the repos (above) against a mocked
	// querier — opening an actual *pgxpool.Pool needs a reachable Postgres
	// instance and is left to integration/e2e coverage, same as the
	// teacher's own npcstore package never substitutes a fake pgxpool.Pool
	// either. See DESIGN.md for why Store.Begin/NewStore aren't unit-tested
	// here directly.
	t.Skip("Store.Begin requires a live pgxpool.Pool; repos are covered directly against a mocked querier above")
}
