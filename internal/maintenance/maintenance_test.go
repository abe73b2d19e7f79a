package maintenance_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/tieredmem/internal/maintenance"
	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/store"
	"github.com/MrWong99/tieredmem/internal/store/embedded"
	embedmock "github.com/MrWong99/tieredmem/pkg/provider/embeddings/mock"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := embedded.NewStore(context.Background(), ":memory:", 3)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createItem(t *testing.T, uow store.UnitOfWork, it model.Item) model.Item {
	t.Helper()
	id, err := uow.Items().Create(context.Background(), &it)
	if err != nil {
		t.Fatalf("Items().Create: %v", err)
	}
	it.ID = id
	return it
}

func TestNightly_MergesDuplicatesAndPromotesHotness(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	older := createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour), CanonicalSubject: "alice",
		Predicate: "likes", CanonicalObject: "coffee", Object: "coffee", Category: "preferences",
		Confidence: 0.6, Status: model.StatusActive,
	})
	createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC(), CanonicalSubject: "alice",
		Predicate: "likes", CanonicalObject: "coffee", Object: "coffee", Category: "preferences",
		Confidence: 0.9, Status: model.StatusActive,
	})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := maintenance.New(st, nil, nil, maintenance.Config{})
	stats, err := r.Nightly(ctx)
	if err != nil {
		t.Fatalf("Nightly: %v", err)
	}
	if stats.Counters["duplicates_merged"] != 1 {
		t.Errorf("duplicates_merged = %d, want 1", stats.Counters["duplicates_merged"])
	}
	if stats.Counters["hotness_promoted"] != 1 {
		t.Errorf("hotness_promoted = %d, want 1", stats.Counters["hotness_promoted"])
	}

	uow2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer uow2.Rollback(ctx)
	got, err := uow2.Items().Get(ctx, older.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusArchived {
		t.Errorf("older duplicate status = %q, want archived", got.Status)
	}
}

func TestNightly_SkipsSummariesWithoutLLM(t *testing.T) {
	st := newTestStore(t)
	r := maintenance.New(st, nil, nil, maintenance.Config{})
	stats, err := r.Nightly(context.Background())
	if err != nil {
		t.Fatalf("Nightly: %v", err)
	}
	if stats.Counters["summaries_updated"] != 0 {
		t.Errorf("summaries_updated = %d, want 0 without an LLM provider", stats.Counters["summaries_updated"])
	}
}

func TestWeekly_DecaysOldLowValueItems(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	old := createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC().AddDate(0, 0, -60), CanonicalSubject: "bob",
		Predicate: "livesIn", Object: "paris", Category: "facts", Confidence: 0.8, Status: model.StatusActive,
	})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := maintenance.New(st, nil, nil, maintenance.Config{})
	stats, err := r.Weekly(ctx)
	if err != nil {
		t.Fatalf("Weekly: %v", err)
	}
	if stats.Counters["decayed"] != 1 {
		t.Errorf("decayed = %d, want 1", stats.Counters["decayed"])
	}

	uow2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer uow2.Rollback(ctx)
	got, err := uow2.Items().Get(ctx, old.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Confidence >= 0.8 {
		t.Errorf("Confidence = %v, want it to have decayed below 0.8", got.Confidence)
	}
}

func TestWeekly_ArchivesOldLowConfidenceItems(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	stale := createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC().AddDate(0, 0, -120), CanonicalSubject: "carol",
		Predicate: "knows", Object: "dave", Category: "relationships", Confidence: 0.15, Status: model.StatusActive,
	})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := maintenance.New(st, nil, nil, maintenance.Config{})
	stats, err := r.Weekly(ctx)
	if err != nil {
		t.Fatalf("Weekly: %v", err)
	}
	if stats.Counters["archived_stale"] != 1 {
		t.Errorf("archived_stale = %d, want 1", stats.Counters["archived_stale"])
	}

	uow2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer uow2.Rollback(ctx)
	got, err := uow2.Items().Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.StatusArchived {
		t.Errorf("Status = %q, want archived", got.Status)
	}
}

func TestWeekly_CompressesNearDuplicateObjects(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	a := createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC(), CanonicalSubject: "eve", Predicate: "worksAt",
		Object: "Acme Corp", Category: "facts", Confidence: 0.5, Status: model.StatusActive,
	})
	b := createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC(), CanonicalSubject: "eve", Predicate: "worksAt",
		Object: "Acme", Category: "facts", Confidence: 0.9, Status: model.StatusActive,
	})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := maintenance.New(st, nil, nil, maintenance.Config{})
	stats, err := r.Weekly(ctx)
	if err != nil {
		t.Fatalf("Weekly: %v", err)
	}
	if stats.Counters["compressed"] != 1 {
		t.Errorf("compressed = %d, want 1", stats.Counters["compressed"])
	}

	uow2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer uow2.Rollback(ctx)
	gotA, err := uow2.Items().Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	gotB, err := uow2.Items().Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotA.Status != model.StatusArchived {
		t.Error("lower-confidence near-duplicate should be archived")
	}
	if gotB.Status != model.StatusActive {
		t.Error("higher-confidence survivor should remain active")
	}
}

func TestMonthly_RebuildsGraphFromActiveItems(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC(), CanonicalSubject: "alice", CanonicalObject: "bob",
		Predicate: "knows", Object: "bob", Category: "relationships", Confidence: 0.8, Status: model.StatusActive,
	})
	createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC(), CanonicalSubject: "alice", CanonicalObject: "carol",
		Predicate: "knows", Object: "carol", Category: "relationships", Confidence: 0.6, Status: model.StatusActive,
	})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := maintenance.New(st, nil, nil, maintenance.Config{})
	stats, err := r.Monthly(ctx)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if stats.Counters["edges_created"] == 0 {
		t.Error("expected Monthly to rebuild at least one graph edge")
	}

	uow2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer uow2.Rollback(ctx)
	edges, err := uow2.Graph().GetBySubject(ctx, "alice")
	if err != nil {
		t.Fatalf("GetBySubject: %v", err)
	}
	if len(edges) == 0 {
		t.Error("expected a relates_to edge for alice after rebuild")
	}
}

func TestMonthly_RecomputesEmbeddingsInBatches(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	item := createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC(), CanonicalSubject: "alice", Predicate: "likes",
		Object: "tea", Category: "preferences", Confidence: 0.8, Status: model.StatusActive,
	})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	embedder := &embedmock.Provider{EmbedBatchResult: [][]float32{{1, 2, 3}}}
	r := maintenance.New(st, embedder, nil, maintenance.Config{EmbedBatchSize: 10, EmbeddingDimensions: 3})
	stats, err := r.Monthly(ctx)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if stats.Counters["embeddings_recomputed"] != 1 {
		t.Errorf("embeddings_recomputed = %d, want 1", stats.Counters["embeddings_recomputed"])
	}

	uow2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer uow2.Rollback(ctx)
	vec, err := uow2.Embeddings().Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if vec == nil {
		t.Error("expected embedding to be persisted after recompute")
	}
}

func TestMonthly_RecordsFinalCounts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	createItem(t, uow, model.Item{
		CreatedAt: time.Now().UTC(), CanonicalSubject: "a", Predicate: "p",
		Object: "o", Category: "facts", Confidence: 0.8, Status: model.StatusActive,
	})
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := maintenance.New(st, nil, nil, maintenance.Config{})
	stats, err := r.Monthly(ctx)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if stats.Counters["items_total"] != 1 {
		t.Errorf("items_total = %d, want 1", stats.Counters["items_total"])
	}
}
