// Package model defines the backend-agnostic entity types shared by every
// layer of the memory engine: storage repositories, the ingest pipeline,
// retrieval, graph traversal, and the maintenance jobs.
//
// All identifiers are [uuid.UUID]. Timestamps are UTC. Nullable
// back-references (ResourceID, Supersedes, MetaAbout) use *uuid.UUID so that
// "absent" and "the zero UUID" are never confused.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Item status values. An Item's lifecycle only ever moves active → archived
// through the maintenance pipelines and conflict resolution; deletion is an
// exceptional admin-only path, never taken by a pipeline.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// MetaCategory is the fixed category value carried by every meta-fact.
const MetaCategory = "meta"

// DefaultCategories is the fixed classification taxonomy used by both the
// rule-based and LLM classifiers, and by the static priority weights.
var DefaultCategories = []string{
	"preferences", "facts", "events", "relationships", "skills", "goals",
}

// Resource is an append-only raw log entry: the original text handed to
// /ingest, before extraction. Resources are never mutated after creation;
// they are only ever deleted by maintenance, and only once orphaned (no Item
// references them) and past an age threshold.
type Resource struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Source    string
	Content   string
	Metadata  map[string]string
}

// Item is an atomic subject-predicate-object fact.
//
// CanonicalSubject and CanonicalObject are the resolved (normalized +
// aliased) forms of Subject and Object, computed once at create time and
// used for every equality lookup: conflict detection, duplicate detection,
// graph queries, and subject search. The original Subject/Object strings are
// preserved for display and are never overwritten by resolution.
//
// An Item is a meta-fact when MetaAbout is non-nil: it describes another
// Item (e.g. its extraction provenance) rather than the world. Meta-facts
// always carry Category == MetaCategory, have no Subject, and are excluded
// from every user-facing listing, category aggregation, embedding, and graph
// propagation.
type Item struct {
	ID               uuid.UUID
	CreatedAt        time.Time
	ResourceID       *uuid.UUID
	Subject          string
	Predicate        string
	Object           string
	Category         string
	Confidence       float64
	Status           string
	Supersedes       *uuid.UUID
	CanonicalSubject string
	CanonicalObject  string
	MetaAbout        *uuid.UUID
	Embedding        []float32
}

// IsMetaFact reports whether the item describes another item rather than
// carrying a user-facing fact.
func (i Item) IsMetaFact() bool {
	return i.MetaAbout != nil
}

// CanonicalKey returns the canonical entity this item is keyed on for
// confidence propagation and graph lookups: the canonical subject if
// present, else the canonical object. Meta-facts have neither and return "".
func (i Item) CanonicalKey() string {
	if i.CanonicalSubject != "" {
		return i.CanonicalSubject
	}
	return i.CanonicalObject
}

// Category is a cached natural-language summary for one of the distinct
// item.Category values currently active. Category rows are a cache of
// summary text and access metadata; membership itself is always derived
// live from Item.Category, never stored redundantly here.
type Category struct {
	ID        uuid.UUID
	Name      string
	Summary   string
	UpdatedAt time.Time
}

// GraphEdge is a directed, weighted relation between two canonical entity
// strings. Subject and Object are always pre-resolved canonical forms;
// Weight is not normalized across edges — it encodes the strength of that
// specific relation, not a probability.
type GraphEdge struct {
	ID        uuid.UUID
	Subject   string
	Predicate string
	Object    string
	Weight    float64
	CreatedAt time.Time
}

// TripleKey returns the (subject, predicate, object) identity used to dedupe
// edges and to mark an edge as "consumed" during path search.
func (e GraphEdge) TripleKey() string {
	return e.Subject + "\x00" + e.Predicate + "\x00" + e.Object
}

// CategoryAccess is a retrieval-pressure log entry: one row per category
// included in a served context or recall, used only to compute the usage
// term of the dynamic priority factor. Maintenance prunes old rows.
const (
	AccessSourceContext = "context"
	AccessSourceRecall  = "recall"
	AccessSourceAPI     = "api"
)

type CategoryAccess struct {
	ID         uuid.UUID
	Category   string
	AccessedAt time.Time
	Source     string
}

// EmbeddingMatch pairs an Item with its cosine similarity to a query vector,
// as returned by an embedding repository's similarity search.
type EmbeddingMatch struct {
	Item       Item
	Similarity float64
}

// ConflictStrategy selects how the ingest pipeline resolves two active items
// that share (canonical subject, predicate) but disagree on object.
type ConflictStrategy string

const (
	ConflictStrategyRecency    ConflictStrategy = "recency"
	ConflictStrategyConfidence ConflictStrategy = "confidence"
)
