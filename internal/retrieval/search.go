package retrieval

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/graph"
	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/resolve"
	"github.com/MrWong99/tieredmem/internal/store"
	embedprovider "github.com/MrWong99/tieredmem/pkg/provider/embeddings"
)

// defaultOverfetch bounds how many active items Temporal/AspectFilter pull
// from storage before in-memory filtering and the caller's limit applies.
const defaultOverfetch = 1000

// Result is one scored item, the shape every smart-search strategy returns.
type Result struct {
	ID         uuid.UUID
	Subject    string
	Predicate  string
	Object     string
	Category   string
	Confidence float64
	Similarity float64
	CreatedAt  time.Time
	Status     string
}

// Response is smart_search's return value.
type Response struct {
	Intent string
	Items  []Result
	Total  int
}

// SmartSearch classifies query and dispatches to the matching strategy.
// category, when non-empty, overrides any category the query itself
// classified to (AspectFilter) and post-filters every other strategy's
// results.
func SmartSearch(ctx context.Context, uow store.UnitOfWork, embedder embedprovider.Provider, query, category string, limit int, minSimilarity float64) (*Response, error) {
	if limit <= 0 {
		limit = 20
	}
	intent := ClassifyIntent(query)

	var (
		items []Result
		err   error
	)
	switch v := intent.(type) {
	case EntityLookup:
		items, err = entityLookup(ctx, uow, v.Entity, category, limit)
	case Temporal:
		items, err = temporalSearch(ctx, uow, v.Days, category, limit)
	case AspectFilter:
		effective := v.Category
		if category != "" {
			effective = category
		}
		items, err = aspectSearch(ctx, uow, effective, limit)
	default:
		items, intent, err = semanticSearch(ctx, uow, embedder, query, category, limit, minSimilarity)
	}
	if err != nil {
		return nil, err
	}
	return &Response{Intent: Label(intent), Items: items, Total: len(items)}, nil
}

func toResult(it model.Item, similarity float64) Result {
	return Result{
		ID:         it.ID,
		Subject:    it.Subject,
		Predicate:  it.Predicate,
		Object:     it.Object,
		Category:   it.Category,
		Confidence: it.Confidence,
		Similarity: similarity,
		CreatedAt:  it.CreatedAt,
		Status:     it.Status,
	}
}

// entityLookup implements §4.5's EntityLookup strategy plus the "EntityLookup
// graph assist" extension: exact canonical match scores 1.0; 1-hop graph
// neighbors score 0.9 (subject-side) or 0.8 (object-side); 2-hop neighbors
// reached only through the deeper walk score 0.7. Multi-hop never inverts
// 1-hop ordering since 0.7 < 0.8 < 0.9 < 1.0.
func entityLookup(ctx context.Context, uow store.UnitOfWork, entity, category string, limit int) ([]Result, error) {
	canonical := resolve.Resolve(entity)
	matches := make(map[uuid.UUID]Result)

	exact, err := uow.Items().ListBySubject(ctx, canonical, model.StatusActive)
	if err != nil {
		return nil, err
	}
	for _, it := range exact {
		matches[it.ID] = toResult(it, 1.0)
	}

	oneHop, err := graph.Neighbors(ctx, uow.Graph(), canonical, 1)
	if err != nil {
		return nil, err
	}
	oneHopKeys := make(map[string]bool, len(oneHop))
	for _, e := range oneHop {
		oneHopKeys[e.TripleKey()] = true
	}
	if err := addNeighborMatches(ctx, uow, canonical, oneHop, matches); err != nil {
		return nil, err
	}

	twoHop, err := graph.Neighbors(ctx, uow.Graph(), canonical, 2)
	if err != nil {
		return nil, err
	}
	var deeper []model.GraphEdge
	for _, e := range twoHop {
		if !oneHopKeys[e.TripleKey()] {
			deeper = append(deeper, e)
		}
	}
	for _, e := range deeper {
		for _, endpoint := range []string{e.Subject, e.Object} {
			if endpoint == canonical {
				continue
			}
			deeperItems, err := uow.Items().ListBySubject(ctx, endpoint, model.StatusActive)
			if err != nil {
				return nil, err
			}
			for _, it := range deeperItems {
				if _, exists := matches[it.ID]; !exists {
					matches[it.ID] = toResult(it, 0.7)
				}
			}
		}
	}

	results := make([]Result, 0, len(matches))
	for _, r := range matches {
		if category != "" && r.Category != category {
			continue
		}
		results = append(results, r)
	}
	sortBySimilarityDesc(results)
	return truncate(results, limit), nil
}

func addNeighborMatches(ctx context.Context, uow store.UnitOfWork, canonical string, edges []model.GraphEdge, matches map[uuid.UUID]Result) error {
	for _, e := range edges {
		var (
			neighbor   string
			similarity float64
		)
		switch {
		case e.Subject == canonical:
			neighbor, similarity = e.Object, 0.8
		case e.Object == canonical:
			neighbor, similarity = e.Subject, 0.9
		default:
			continue
		}
		neighborItems, err := uow.Items().ListBySubject(ctx, neighbor, model.StatusActive)
		if err != nil {
			return err
		}
		for _, it := range neighborItems {
			if _, exists := matches[it.ID]; !exists {
				matches[it.ID] = toResult(it, similarity)
			}
		}
	}
	return nil
}

func temporalSearch(ctx context.Context, uow store.UnitOfWork, days int, category string, limit int) ([]Result, error) {
	items, err := uow.Items().List(ctx, category, model.StatusActive, defaultOverfetch)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	results := make([]Result, 0, len(items))
	for _, it := range items {
		if it.CreatedAt.Before(cutoff) {
			continue
		}
		results = append(results, toResult(it, 0))
	}
	sortByCreatedDesc(results)
	return truncate(results, limit), nil
}

func aspectSearch(ctx context.Context, uow store.UnitOfWork, category string, limit int) ([]Result, error) {
	items, err := uow.Items().List(ctx, category, model.StatusActive, limit)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(items))
	for _, it := range items {
		results = append(results, toResult(it, 0))
	}
	return results, nil
}

// semanticSearch embeds query and ranks by vector similarity. On any embed
// or search failure, or a zero-result search, it falls back to the most
// recent items (similarity 0) and reports SemanticSearch{Fallback: true} so
// the caller can tag the response "SemanticSearch(fallback)".
func semanticSearch(ctx context.Context, uow store.UnitOfWork, embedder embedprovider.Provider, query, category string, limit int, minSimilarity float64) ([]Result, Intent, error) {
	if embedder != nil {
		vec, err := embedder.Embed(ctx, query)
		if err == nil {
			matches, err := uow.Embeddings().Search(ctx, vec, limit, minSimilarity, model.StatusActive)
			if err == nil && len(matches) > 0 {
				results := make([]Result, 0, len(matches))
				for _, m := range matches {
					if category != "" && m.Item.Category != category {
						continue
					}
					results = append(results, toResult(m.Item, m.Similarity))
				}
				return results, SemanticSearch{}, nil
			}
		}
	}
	return fallbackRecent(ctx, uow, category, limit)
}

func fallbackRecent(ctx context.Context, uow store.UnitOfWork, category string, limit int) ([]Result, Intent, error) {
	items, err := uow.Items().List(ctx, category, model.StatusActive, limit)
	if err != nil {
		return nil, SemanticSearch{Fallback: true}, err
	}
	results := make([]Result, 0, len(items))
	for _, it := range items {
		results = append(results, toResult(it, 0))
	}
	sortByCreatedDesc(results)
	return truncate(results, limit), SemanticSearch{Fallback: true}, nil
}

func sortBySimilarityDesc(r []Result) {
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && r[j].Similarity > r[j-1].Similarity; j-- {
			r[j], r[j-1] = r[j-1], r[j]
		}
	}
}

func sortByCreatedDesc(r []Result) {
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && r[j].CreatedAt.After(r[j-1].CreatedAt); j-- {
			r[j], r[j-1] = r[j-1], r[j]
		}
	}
}

func truncate(r []Result, limit int) []Result {
	if limit > 0 && len(r) > limit {
		return r[:limit]
	}
	return r
}

