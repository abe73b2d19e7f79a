// Package store defines the backend-agnostic storage abstraction (C2):
// a Unit-of-Work transaction boundary wrapping six repositories. Two
// concrete backends implement this package's interfaces —
// internal/store/postgres (SQL + pgvector) and internal/store/embedded
// (modernc.org/sqlite with a brute-force in-process cosine index) — and are
// constructed through Factory, keyed by Backend, so that no caller above
// this package ever imports a concrete backend type.
//
// Grounded on pkg/memory/types.go's SessionStore/SemanticIndex/
// KnowledgeGraph split from the teacher repository: "one interface, many
// backends" is the same design, generalized from three layers to six
// repositories plus a shared transaction boundary.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
)

// ResourceRepository manages the append-only Resource log.
type ResourceRepository interface {
	Create(ctx context.Context, r *model.Resource) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Resource, error)
	List(ctx context.Context, source string, since *time.Time, limit int) ([]model.Resource, error)
	Count(ctx context.Context) (int, error)
	ListUnextracted(ctx context.Context, limit int) ([]model.Resource, error)
	DeleteOrphaned(ctx context.Context, maxAgeDays int) (int, error)
}

// ItemRepository manages atomic fact Items, including meta-facts.
type ItemRepository interface {
	Create(ctx context.Context, it *model.Item) (uuid.UUID, error)
	CreateMany(ctx context.Context, items []model.Item) ([]uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Item, error)
	Update(ctx context.Context, it *model.Item) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error

	// List returns active, non-meta items, optionally filtered by category.
	List(ctx context.Context, category, status string, limit int) ([]model.Item, error)
	ListByResource(ctx context.Context, resourceID uuid.UUID) ([]model.Item, error)
	// ListBySubject matches against CanonicalSubject and excludes meta-facts.
	ListBySubject(ctx context.Context, canonicalSubject, status string) ([]model.Item, error)
	Count(ctx context.Context, category, status string) (int, error)

	// FindPotentialConflicts returns active items sharing
	// (CanonicalSubject, Predicate), excluding excludeID if non-nil.
	FindPotentialConflicts(ctx context.Context, canonicalSubject, predicate string, excludeID *uuid.UUID) ([]model.Item, error)

	// ListDuplicates returns pairs of active, non-meta items sharing
	// (CanonicalSubject, Predicate, CanonicalObject), older item first.
	ListDuplicates(ctx context.Context) ([][2]model.Item, error)

	CountBySubjectRecent(ctx context.Context, canonicalSubject string, days int) (int, error)
	// ListDistinctCategories excludes the meta category.
	ListDistinctCategories(ctx context.Context, status string) ([]string, error)
	ListOldLowConfidence(ctx context.Context, maxAgeDays int, minConfidence float64) ([]model.Item, error)
	GetStatsByStatus(ctx context.Context) (map[string]int, error)
	GetAvgConfidence(ctx context.Context, status string) (float64, error)
	ListAllIDs(ctx context.Context, status string) ([]uuid.UUID, error)
	ListArchived(ctx context.Context, limit int) ([]model.Item, error)
	GetSupersedingItem(ctx context.Context, archivedID uuid.UUID) (*model.Item, error)
	GetMetaFacts(ctx context.Context, itemID uuid.UUID) ([]model.Item, error)
	CreateMetaFact(ctx context.Context, aboutItemID uuid.UUID, predicate, object string, confidence float64) (*model.Item, error)
}

// CategoryRepository manages the Category summary cache.
type CategoryRepository interface {
	Create(ctx context.Context, c *model.Category) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Category, error)
	GetByName(ctx context.Context, name string) (*model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
	UpdateSummary(ctx context.Context, name, summary string) error
	Upsert(ctx context.Context, c *model.Category) (uuid.UUID, error)
	CountItemsPerCategory(ctx context.Context, status string) (map[string]int, error)
}

// GraphRepository manages directed weighted edges between canonical
// entities. find_paths itself lives in internal/graph, built on top of
// ListAll/GetBySubject/GetByObject — see that package's doc comment for why.
type GraphRepository interface {
	Create(ctx context.Context, e *model.GraphEdge) (uuid.UUID, error)
	CreateMany(ctx context.Context, edges []model.GraphEdge) ([]uuid.UUID, error)
	GetBySubject(ctx context.Context, subject string) ([]model.GraphEdge, error)
	GetByObject(ctx context.Context, object string) ([]model.GraphEdge, error)
	// GetNeighbors returns edges within depth hops of entity, weight desc.
	GetNeighbors(ctx context.Context, entity string, depth int) ([]model.GraphEdge, error)
	DeleteBySubject(ctx context.Context, subject string) (int, error)
	ListAll(ctx context.Context) ([]model.GraphEdge, error)
	DeleteAll(ctx context.Context) (int, error)
	UpdateWeight(ctx context.Context, subject, predicate, object string, weight float64) (bool, error)
	Count(ctx context.Context) (int, error)
}

// EmbeddingRepository manages per-item vectors and similarity search.
type EmbeddingRepository interface {
	Upsert(ctx context.Context, itemID uuid.UUID, vec []float32) error
	Get(ctx context.Context, itemID uuid.UUID) ([]float32, error)
	Delete(ctx context.Context, itemID uuid.UUID) error
	// Search returns matches with similarity >= minSimilarity, most similar
	// first, filtered to items with the given status.
	Search(ctx context.Context, queryVec []float32, limit int, minSimilarity float64, statusFilter string) ([]model.EmbeddingMatch, error)
	BatchUpsert(ctx context.Context, vecs map[uuid.UUID][]float32) (int, error)
	Count(ctx context.Context) (int, error)
	// DeleteStale removes embeddings whose item is not in activeIDs.
	DeleteStale(ctx context.Context, activeIDs []uuid.UUID) (int, error)
}

// CategoryAccessRepository manages the retrieval-pressure log.
type CategoryAccessRepository interface {
	Create(ctx context.Context, a *model.CategoryAccess) (uuid.UUID, error)
	GetRecent(ctx context.Context, category string, since *time.Time, limit int) ([]model.CategoryAccess, error)
	CountByCategory(ctx context.Context, since *time.Time) (map[string]int, error)
	CleanupOld(ctx context.Context, before time.Time) (int, error)
}

// UnitOfWork exposes the six repositories sharing a single transaction. A
// UnitOfWork is always entered through a Backend's Factory.BeginTx, which
// guarantees release of backend resources on every exit path; callers must
// explicitly Commit — exiting the scope without committing rolls the
// transaction back.
type UnitOfWork interface {
	Resources() ResourceRepository
	Items() ItemRepository
	Categories() CategoryRepository
	Graph() GraphRepository
	Embeddings() EmbeddingRepository
	CategoryAccesses() CategoryAccessRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Backend selects which concrete storage implementation Factory.Open binds
// to. Never exposed past the factory boundary — callers depend only on
// UnitOfWork and the repository interfaces above.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendEmbedded Backend = "embedded"
)

// Store is the open handle to a backend: it can begin unit-of-work scopes
// and must be closed when the process shuts down.
type Store interface {
	// Begin starts a new UnitOfWork. The caller must call either Commit or
	// Rollback (or rely on Close propagating an implicit rollback) before
	// discarding it — never leave a transaction open past its scope.
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}
