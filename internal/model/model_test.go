package model_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
)

func TestItem_IsMetaFact(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		name string
		item model.Item
		want bool
	}{
		{"no MetaAbout", model.Item{}, false},
		{"with MetaAbout", model.Item{MetaAbout: &id}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.IsMetaFact(); got != tc.want {
				t.Errorf("IsMetaFact() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestItem_CanonicalKey(t *testing.T) {
	cases := []struct {
		name string
		item model.Item
		want string
	}{
		{"prefers subject", model.Item{CanonicalSubject: "alice", CanonicalObject: "bob"}, "alice"},
		{"falls back to object", model.Item{CanonicalObject: "bob"}, "bob"},
		{"empty when neither set", model.Item{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.CanonicalKey(); got != tc.want {
				t.Errorf("CanonicalKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGraphEdge_TripleKey(t *testing.T) {
	a := model.GraphEdge{Subject: "alice", Predicate: "knows", Object: "bob"}
	b := model.GraphEdge{Subject: "alice", Predicate: "knows", Object: "bob"}
	c := model.GraphEdge{Subject: "alice", Predicate: "knows", Object: "carol"}

	if a.TripleKey() != b.TripleKey() {
		t.Error("identical triples should produce identical keys")
	}
	if a.TripleKey() == c.TripleKey() {
		t.Error("distinct triples should produce distinct keys")
	}
}

func TestGraphEdge_TripleKeyDoesNotCollideAcrossFieldBoundaries(t *testing.T) {
	// "ab"/"c" must not collide with "a"/"bc" once concatenated.
	a := model.GraphEdge{Subject: "ab", Predicate: "c", Object: "d"}
	b := model.GraphEdge{Subject: "a", Predicate: "bc", Object: "d"}
	if a.TripleKey() == b.TripleKey() {
		t.Error("field-boundary shift should not collide")
	}
}

func TestDefaultCategories_MatchesFixedTaxonomy(t *testing.T) {
	want := []string{"preferences", "facts", "events", "relationships", "skills", "goals"}
	if len(model.DefaultCategories) != len(want) {
		t.Fatalf("len = %d, want %d", len(model.DefaultCategories), len(want))
	}
	for i, c := range want {
		if model.DefaultCategories[i] != c {
			t.Errorf("DefaultCategories[%d] = %q, want %q", i, model.DefaultCategories[i], c)
		}
	}
}
