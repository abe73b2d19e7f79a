package embedded_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/store"
	"github.com/MrWong99/tieredmem/internal/store/embedded"
)

func newTestStore(t *testing.T) *embedded.Store {
	t.Helper()
	st, err := embedded.NewStore(context.Background(), ":memory:", 8)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore_BeginCommit_PersistsAcrossTransactions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	it := &model.Item{Subject: "alice", Predicate: "likes", Object: "coffee", Category: "preferences", Confidence: 0.9}
	id, err := uow.Items().Create(ctx, it)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	uow2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer uow2.Rollback(ctx)
	got, err := uow2.Items().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected item to persist after commit")
	}
	if got.Subject != "alice" || got.Object != "coffee" {
		t.Errorf("got %+v, want subject=alice object=coffee", got)
	}
}

func TestStore_Rollback_DiscardsChanges(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	uow, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	it := &model.Item{Subject: "bob", Predicate: "owns", Object: "car", Category: "facts"}
	id, err := uow.Items().Create(ctx, it)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := uow.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	uow2, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer uow2.Rollback(ctx)
	got, err := uow2.Items().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("expected item to be absent after rollback")
	}
}

func TestItemRepo_ListBySubject_FiltersByStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, _ := st.Begin(ctx)
	defer uow.Rollback(ctx)

	active := &model.Item{CanonicalSubject: "alice", Predicate: "likes", Object: "tea", Category: "preferences", Status: model.StatusActive}
	archived := &model.Item{CanonicalSubject: "alice", Predicate: "likes", Object: "coffee", Category: "preferences", Status: model.StatusArchived}
	if _, err := uow.Items().Create(ctx, active); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := uow.Items().Create(ctx, archived); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := uow.Items().ListBySubject(ctx, "alice", model.StatusActive)
	if err != nil {
		t.Fatalf("ListBySubject: %v", err)
	}
	if len(got) != 1 || got[0].Object != "tea" {
		t.Errorf("ListBySubject(active) = %+v, want only the tea item", got)
	}
}

func TestItemRepo_FindPotentialConflicts_ExcludesGivenID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, _ := st.Begin(ctx)
	defer uow.Rollback(ctx)

	a := &model.Item{CanonicalSubject: "alice", Predicate: "livesIn", Object: "paris", Category: "facts", Status: model.StatusActive}
	b := &model.Item{CanonicalSubject: "alice", Predicate: "livesIn", Object: "berlin", Category: "facts", Status: model.StatusActive}
	idA, _ := uow.Items().Create(ctx, a)
	if _, err := uow.Items().Create(ctx, b); err != nil {
		t.Fatalf("Create: %v", err)
	}

	conflicts, err := uow.Items().FindPotentialConflicts(ctx, "alice", "livesIn", &idA)
	if err != nil {
		t.Fatalf("FindPotentialConflicts: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Object != "berlin" {
		t.Errorf("FindPotentialConflicts = %+v, want only berlin item", conflicts)
	}
}

func TestItemRepo_MetaFacts_CreateAndRetrieve(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, _ := st.Begin(ctx)
	defer uow.Rollback(ctx)

	base := &model.Item{Subject: "alice", Predicate: "likes", Object: "coffee", Category: "preferences"}
	baseID, err := uow.Items().Create(ctx, base)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	meta, err := uow.Items().CreateMetaFact(ctx, baseID, "confidence_source", "user_stated", 0.95)
	if err != nil {
		t.Fatalf("CreateMetaFact: %v", err)
	}
	if !meta.IsMetaFact() {
		t.Fatal("expected created fact to be a meta fact")
	}

	facts, err := uow.Items().GetMetaFacts(ctx, baseID)
	if err != nil {
		t.Fatalf("GetMetaFacts: %v", err)
	}
	if len(facts) != 1 || facts[0].Object != "user_stated" {
		t.Errorf("GetMetaFacts = %+v, want one fact with object user_stated", facts)
	}

	// Meta facts must not show up in plain listings.
	listed, err := uow.Items().List(ctx, "", "", 100)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, it := range listed {
		if it.ID == meta.ID {
			t.Error("meta fact leaked into List()")
		}
	}
}

func TestResourceRepo_ListUnextracted_MarksExtracted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, _ := st.Begin(ctx)
	defer uow.Rollback(ctx)

	res := &model.Resource{Source: "chat", Content: "hello world"}
	if _, err := uow.Resources().Create(ctx, res); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := uow.Resources().ListUnextracted(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnextracted: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first ListUnextracted = %d items, want 1", len(first))
	}

	second, err := uow.Resources().ListUnextracted(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnextracted: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second ListUnextracted = %d items, want 0 (already marked extracted)", len(second))
	}
}

func TestCategoryRepo_Upsert_UpdatesExistingSummary(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, _ := st.Begin(ctx)
	defer uow.Rollback(ctx)

	id1, err := uow.Categories().Upsert(ctx, &model.Category{Name: "preferences", Summary: "first"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	id2, err := uow.Categories().Upsert(ctx, &model.Category{Name: "preferences", Summary: "second"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("Upsert on existing category should return the same ID, got %v and %v", id1, id2)
	}
	got, err := uow.Categories().GetByName(ctx, "preferences")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.Summary != "second" {
		t.Errorf("Summary = %q, want %q", got.Summary, "second")
	}
}

func TestEmbeddingRepo_Search_OrdersBySimilarityAndRespectsMinimum(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, _ := st.Begin(ctx)
	defer uow.Rollback(ctx)

	near := &model.Item{Subject: "a", Predicate: "p", Object: "near", Category: "facts"}
	far := &model.Item{Subject: "a", Predicate: "p", Object: "far", Category: "facts"}
	nearID, _ := uow.Items().Create(ctx, near)
	farID, _ := uow.Items().Create(ctx, far)

	query := []float32{1, 0, 0, 0, 0, 0, 0, 0}
	if err := uow.Embeddings().Upsert(ctx, nearID, []float32{1, 0, 0, 0, 0, 0, 0, 0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := uow.Embeddings().Upsert(ctx, farID, []float32{0, 1, 0, 0, 0, 0, 0, 0}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := uow.Embeddings().Search(ctx, query, 10, 0.5, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].Item.Object != "near" {
		t.Errorf("Search(min=0.5) = %+v, want only the near item", matches)
	}
}

func TestEmbeddingRepo_DeleteStale_RemovesOnlyInactiveItems(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, _ := st.Begin(ctx)
	defer uow.Rollback(ctx)

	keep := &model.Item{Subject: "a", Predicate: "p", Object: "keep", Category: "facts"}
	drop := &model.Item{Subject: "a", Predicate: "p", Object: "drop", Category: "facts"}
	keepID, _ := uow.Items().Create(ctx, keep)
	dropID, _ := uow.Items().Create(ctx, drop)
	if err := uow.Embeddings().Upsert(ctx, keepID, []float32{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := uow.Embeddings().Upsert(ctx, dropID, []float32{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	n, err := uow.Embeddings().DeleteStale(ctx, []uuid.UUID{keepID})
	if err != nil {
		t.Fatalf("DeleteStale: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteStale removed %d, want 1", n)
	}
	remaining, err := uow.Embeddings().Get(ctx, keepID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if remaining == nil {
		t.Error("expected kept embedding to survive")
	}
	gone, err := uow.Embeddings().Get(ctx, dropID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gone != nil {
		t.Error("expected stale embedding to be removed")
	}
}

func TestCategoryAccessRepo_CountByCategory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, _ := st.Begin(ctx)
	defer uow.Rollback(ctx)

	for i := 0; i < 3; i++ {
		if _, err := uow.CategoryAccesses().Create(ctx, &model.CategoryAccess{Category: "facts", Source: "api"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := uow.CategoryAccesses().Create(ctx, &model.CategoryAccess{Category: "preferences", Source: "api"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	counts, err := uow.CategoryAccesses().CountByCategory(ctx, nil)
	if err != nil {
		t.Fatalf("CountByCategory: %v", err)
	}
	if counts["facts"] != 3 {
		t.Errorf("counts[facts] = %d, want 3", counts["facts"])
	}
	if counts["preferences"] != 1 {
		t.Errorf("counts[preferences] = %d, want 1", counts["preferences"])
	}
}

var _ store.Store = (*embedded.Store)(nil)

func TestItemRepo_ListByResource_ReturnsLinkedItem(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	uow, _ := st.Begin(ctx)
	defer uow.Rollback(ctx)

	res := &model.Resource{Source: "chat", Content: "x"}
	resID, err := uow.Resources().Create(ctx, res)
	if err != nil {
		t.Fatalf("Create resource: %v", err)
	}
	it := &model.Item{ResourceID: &resID, Subject: "a", Predicate: "p", Object: "o", Category: "facts"}
	if _, err := uow.Items().Create(ctx, it); err != nil {
		t.Fatalf("Create item: %v", err)
	}

	items, err := uow.Items().ListByResource(ctx, resID)
	if err != nil {
		t.Fatalf("ListByResource: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("ListByResource = %d items, want 1", len(items))
	}
}
