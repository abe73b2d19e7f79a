package maintenance

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/embedding"
	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/store"
)

const (
	relatesToPredicate  = "relates_to"
	sharesCategoryPrefix = "shares_"
	sharesWeight        = 0.5
	reweightThreshold   = 0.05
)

// Monthly runs the full re-index: stale-embedding cleanup, embedding
// recompute, a from-scratch graph rebuild, and edge reweighting.
func (r *Runner) Monthly(ctx context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := newStats()
	uow, err := r.st.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("monthly: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	if err := r.deleteStaleEmbeddings(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("monthly: delete stale embeddings: %w", err)
	}
	if err := r.recomputeEmbeddings(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("monthly: recompute embeddings: %w", err)
	}
	if err := r.rebuildGraph(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("monthly: rebuild graph: %w", err)
	}
	if err := r.reweightEdges(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("monthly: reweight edges: %w", err)
	}
	if err := r.recordCounts(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("monthly: record counts: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("monthly: commit: %w", err)
	}
	return stats.finish(), nil
}

func (r *Runner) deleteStaleEmbeddings(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	activeIDs, err := uow.Items().ListAllIDs(ctx, model.StatusActive)
	if err != nil {
		return err
	}
	n, err := uow.Embeddings().DeleteStale(ctx, activeIDs)
	if err != nil {
		return err
	}
	stats.count("embeddings_deleted", n)
	return nil
}

// recomputeEmbeddings implements step 2: recompute every active, non-meta
// item's embedding in batches, adapting each vector to the configured
// storage dimension before upserting. A batch that fails to embed is
// skipped and counted as an error; remaining batches still run.
func (r *Runner) recomputeEmbeddings(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	if r.embedder == nil {
		return nil
	}
	items, err := uow.Items().List(ctx, "", model.StatusActive, r.cfg.itemCap())
	if err != nil {
		return err
	}

	batchSize := r.cfg.embedBatchSize()
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		texts := make([]string, len(batch))
		for i, it := range batch {
			texts[i] = embedding.BuildTextForItem(it)
		}
		vectors, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			stats.addError(fmt.Errorf("embed batch [%d:%d]: %w", start, end, err))
			continue
		}

		upserts := make(map[uuid.UUID][]float32, len(batch))
		for i, it := range batch {
			vec := vectors[i]
			if r.cfg.EmbeddingDimensions > 0 {
				vec = embedding.AdaptVector(vec, r.cfg.EmbeddingDimensions)
			}
			upserts[it.ID] = vec
		}
		n, err := uow.Embeddings().BatchUpsert(ctx, upserts)
		if err != nil {
			stats.addError(fmt.Errorf("upsert batch [%d:%d]: %w", start, end, err))
			continue
		}
		stats.count("embeddings_recomputed", n)
	}
	return nil
}

// rebuildGraph implements step 3: wipe every edge, then rebuild relates_to
// edges from active items and shares_{category} pairwise edges within each
// category, deduping by triple key.
func (r *Runner) rebuildGraph(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	deleted, err := uow.Graph().DeleteAll(ctx)
	if err != nil {
		return err
	}
	stats.count("edges_deleted", deleted)

	items, err := uow.Items().List(ctx, "", model.StatusActive, r.cfg.itemCap())
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	var edges []model.GraphEdge
	now := nowUTC()

	for _, it := range items {
		if it.CanonicalSubject == "" || it.CanonicalObject == "" {
			continue
		}
		e := model.GraphEdge{
			Subject:   it.CanonicalSubject,
			Predicate: relatesToPredicate,
			Object:    it.CanonicalObject,
			Weight:    it.Confidence,
			CreatedAt: now,
		}
		key := e.TripleKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		edges = append(edges, e)
	}

	byCategory := make(map[string][]string)
	subjectSeen := make(map[string]map[string]bool)
	for _, it := range items {
		if it.CanonicalSubject == "" {
			continue
		}
		if subjectSeen[it.Category] == nil {
			subjectSeen[it.Category] = make(map[string]bool)
		}
		if subjectSeen[it.Category][it.CanonicalSubject] {
			continue
		}
		subjectSeen[it.Category][it.CanonicalSubject] = true
		byCategory[it.Category] = append(byCategory[it.Category], it.CanonicalSubject)
	}

	for category, subjects := range byCategory {
		if len(subjects) < 2 {
			continue
		}
		predicate := sharesCategoryPrefix + category
		for i := 0; i < len(subjects); i++ {
			for j := i + 1; j < len(subjects); j++ {
				e := model.GraphEdge{
					Subject:   subjects[i],
					Predicate: predicate,
					Object:    subjects[j],
					Weight:    sharesWeight,
					CreatedAt: now,
				}
				key := e.TripleKey()
				if seen[key] {
					continue
				}
				seen[key] = true
				edges = append(edges, e)
			}
		}
	}

	if len(edges) > 0 {
		if _, err := uow.Graph().CreateMany(ctx, edges); err != nil {
			return err
		}
	}
	stats.count("edges_created", len(edges))
	return nil
}

// reweightEdges implements step 4: a relates_to edge's weight is replaced
// with the average confidence of active items sharing its subject, when
// that differs from the current weight by more than 0.05.
func (r *Runner) reweightEdges(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	items, err := uow.Items().List(ctx, "", model.StatusActive, r.cfg.itemCap())
	if err != nil {
		return err
	}
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, it := range items {
		if it.CanonicalSubject == "" {
			continue
		}
		sums[it.CanonicalSubject] += it.Confidence
		counts[it.CanonicalSubject]++
	}

	edges, err := uow.Graph().ListAll(ctx)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if e.Predicate != relatesToPredicate {
			continue
		}
		count := counts[e.Subject]
		if count == 0 {
			continue
		}
		avg := sums[e.Subject] / float64(count)
		if abs(avg-e.Weight) <= reweightThreshold {
			continue
		}
		updated, err := uow.Graph().UpdateWeight(ctx, e.Subject, e.Predicate, e.Object, avg)
		if err != nil {
			stats.addError(err)
			continue
		}
		if updated {
			stats.count("edges_reweighted", 1)
		}
	}
	return nil
}

func (r *Runner) recordCounts(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	itemCount, err := uow.Items().Count(ctx, "", model.StatusActive)
	if err != nil {
		return err
	}
	embeddingCount, err := uow.Embeddings().Count(ctx)
	if err != nil {
		return err
	}
	edgeCount, err := uow.Graph().Count(ctx)
	if err != nil {
		return err
	}
	stats.Counters["items_total"] = itemCount
	stats.Counters["embeddings_total"] = embeddingCount
	stats.Counters["edges_total"] = edgeCount
	return nil
}
