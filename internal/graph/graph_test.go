package graph_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/graph"
	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/store"
)

// fakeGraphRepo is an in-memory store.GraphRepository for pure traversal
// tests, independent of any backend.
type fakeGraphRepo struct {
	edges []model.GraphEdge
}

func newFakeRepo(edges ...model.GraphEdge) *fakeGraphRepo {
	return &fakeGraphRepo{edges: edges}
}

func (f *fakeGraphRepo) Create(ctx context.Context, e *model.GraphEdge) (uuid.UUID, error) {
	f.edges = append(f.edges, *e)
	return e.ID, nil
}

func (f *fakeGraphRepo) CreateMany(ctx context.Context, edges []model.GraphEdge) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(edges))
	for i, e := range edges {
		f.edges = append(f.edges, e)
		ids[i] = e.ID
	}
	return ids, nil
}

func (f *fakeGraphRepo) GetBySubject(ctx context.Context, subject string) ([]model.GraphEdge, error) {
	var out []model.GraphEdge
	for _, e := range f.edges {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeGraphRepo) GetByObject(ctx context.Context, object string) ([]model.GraphEdge, error) {
	var out []model.GraphEdge
	for _, e := range f.edges {
		if e.Object == object {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeGraphRepo) GetNeighbors(ctx context.Context, entity string, depth int) ([]model.GraphEdge, error) {
	return graph.Neighbors(ctx, f, entity, depth)
}

func (f *fakeGraphRepo) DeleteBySubject(ctx context.Context, subject string) (int, error) {
	var kept []model.GraphEdge
	n := 0
	for _, e := range f.edges {
		if e.Subject == subject {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.edges = kept
	return n, nil
}

func (f *fakeGraphRepo) ListAll(ctx context.Context) ([]model.GraphEdge, error) {
	return f.edges, nil
}

func (f *fakeGraphRepo) DeleteAll(ctx context.Context) (int, error) {
	n := len(f.edges)
	f.edges = nil
	return n, nil
}

func (f *fakeGraphRepo) UpdateWeight(ctx context.Context, subject, predicate, object string, weight float64) (bool, error) {
	for i, e := range f.edges {
		if e.Subject == subject && e.Predicate == predicate && e.Object == object {
			f.edges[i].Weight = weight
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGraphRepo) Count(ctx context.Context) (int, error) {
	return len(f.edges), nil
}

var _ store.GraphRepository = (*fakeGraphRepo)(nil)

func edge(subject, predicate, object string, weight float64) model.GraphEdge {
	return model.GraphEdge{ID: uuid.New(), Subject: subject, Predicate: predicate, Object: object, Weight: weight}
}

func TestNeighbors_OneHop(t *testing.T) {
	repo := newFakeRepo(
		edge("alice", "knows", "bob", 0.9),
		edge("bob", "knows", "carol", 0.5),
	)
	got, err := graph.Neighbors(context.Background(), repo, "alice", 1)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d edges, want 1", len(got))
	}
	if got[0].Object != "bob" {
		t.Errorf("edge object = %q, want bob", got[0].Object)
	}
}

func TestNeighbors_TwoHopReachesSecondDegree(t *testing.T) {
	repo := newFakeRepo(
		edge("alice", "knows", "bob", 0.9),
		edge("bob", "knows", "carol", 0.5),
	)
	got, err := graph.Neighbors(context.Background(), repo, "alice", 2)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d edges, want 2", len(got))
	}
	if got[0].Weight < got[1].Weight {
		t.Error("edges not sorted by weight descending")
	}
}

func TestNeighbors_DepthClampedToAtLeastOne(t *testing.T) {
	repo := newFakeRepo(edge("alice", "knows", "bob", 1.0))
	got, err := graph.Neighbors(context.Background(), repo, "alice", 0)
	if err != nil {
		t.Fatalf("Neighbors: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d edges, want 1 (depth should saturate to 1)", len(got))
	}
}

func TestFindPaths_SourceToTarget(t *testing.T) {
	repo := newFakeRepo(
		edge("alice", "knows", "bob", 0.9),
		edge("bob", "knows", "carol", 0.8),
		edge("alice", "knows", "dave", 0.1),
	)
	target := "carol"
	paths, err := graph.FindPaths(context.Background(), repo, "alice", &target, 3, 10)
	if err != nil {
		t.Fatalf("FindPaths: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("expected at least one path to carol")
	}
	for _, p := range paths {
		if p.Hops[len(p.Hops)-1] != "carol" {
			t.Errorf("path endpoint = %q, want carol", p.Hops[len(p.Hops)-1])
		}
	}
}

func TestFindPaths_NoCycles(t *testing.T) {
	repo := newFakeRepo(
		edge("alice", "knows", "bob", 0.9),
		edge("bob", "knows", "alice", 0.9),
	)
	paths, err := graph.FindPaths(context.Background(), repo, "alice", nil, 3, 10)
	if err != nil {
		t.Fatalf("FindPaths: %v", err)
	}
	for _, p := range paths {
		seen := map[string]bool{}
		for _, h := range p.Hops {
			if seen[h] {
				t.Fatalf("path revisits entity %q: %v", h, p.Hops)
			}
			seen[h] = true
		}
	}
}

func TestFindPaths_MaxDepthClampedToCap(t *testing.T) {
	repo := newFakeRepo(edge("alice", "knows", "bob", 1.0))
	paths, err := graph.FindPaths(context.Background(), repo, "alice", nil, 100, 10)
	if err != nil {
		t.Fatalf("FindPaths: %v", err)
	}
	for _, p := range paths {
		if p.Distance > graph.MaxDepthCap {
			t.Errorf("path distance %d exceeds MaxDepthCap %d", p.Distance, graph.MaxDepthCap)
		}
	}
}

func TestFindPaths_MaxPathsTruncates(t *testing.T) {
	repo := newFakeRepo(
		edge("alice", "r", "b1", 0.9),
		edge("alice", "r", "b2", 0.8),
		edge("alice", "r", "b3", 0.7),
	)
	paths, err := graph.FindPaths(context.Background(), repo, "alice", nil, 2, 2)
	if err != nil {
		t.Fatalf("FindPaths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2 (maxPaths truncation)", len(paths))
	}
}
