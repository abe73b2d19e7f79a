package maintenance

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/store"
)

const (
	confidencePropagationRate = 0.15
	confidenceFloor           = 0.1
	archiveAgeDays            = 90
	archiveMaxConfidence      = 0.2
	orphanResourceAgeDays     = 180
)

// Weekly runs time decay, confidence propagation, archival of old/low-
// confidence items, near-duplicate compression, and orphaned-resource
// cleanup, all in one transaction.
func (r *Runner) Weekly(ctx context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := newStats()
	uow, err := r.st.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("weekly: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	if err := r.decayConfidence(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("weekly: decay: %w", err)
	}
	if err := r.propagateConfidence(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("weekly: propagation: %w", err)
	}
	if err := r.archiveStale(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("weekly: archive: %w", err)
	}
	if err := r.compressSimilar(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("weekly: compress: %w", err)
	}
	if err := r.cleanupOrphans(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("weekly: cleanup orphans: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("weekly: commit: %w", err)
	}
	return stats.finish(), nil
}

// decayConfidence implements step 1: new = old · 0.5^(age_days/30), floored
// at 0.1, written back only when the change exceeds 0.01.
func (r *Runner) decayConfidence(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	items, err := uow.Items().List(ctx, "", model.StatusActive, r.cfg.itemCap())
	if err != nil {
		return err
	}
	now := nowUTC()
	for _, it := range items {
		ageDays := now.Sub(it.CreatedAt).Hours() / 24
		newConf := math.Max(confidenceFloor, it.Confidence*math.Pow(0.5, ageDays/30))
		if abs(newConf-it.Confidence) <= 0.01 {
			continue
		}
		it.Confidence = newConf
		if err := uow.Items().Update(ctx, &it); err != nil {
			stats.addError(err)
			continue
		}
		stats.count("decayed", 1)
	}
	return nil
}

// propagateConfidence implements §4.8's "Confidence propagation (P2 core)":
// a 2-hop graph-weighted confidence smoothing pass over non-meta active
// items.
func (r *Runner) propagateConfidence(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	edges, err := uow.Graph().ListAll(ctx)
	if err != nil {
		return err
	}
	adjacency := buildAdjacency(edges)

	items, err := uow.Items().List(ctx, "", model.StatusActive, r.cfg.itemCap())
	if err != nil {
		return err
	}
	entityConfidence := averageConfidenceByKey(items)

	for _, it := range items {
		key := it.CanonicalKey()
		if key == "" {
			continue
		}
		signal, ok := neighborSignal(adjacency, entityConfidence, key)
		if !ok {
			continue
		}
		newConf := clamp(it.Confidence*(1-confidencePropagationRate)+signal*confidencePropagationRate, confidenceFloor, 1.0)
		if abs(newConf-it.Confidence) < 0.01 {
			continue
		}
		it.Confidence = newConf
		if err := uow.Items().Update(ctx, &it); err != nil {
			stats.addError(err)
			continue
		}
		stats.count("propagated", 1)
	}
	return nil
}

// archiveStale implements step 3.
func (r *Runner) archiveStale(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	items, err := uow.Items().ListOldLowConfidence(ctx, archiveAgeDays, archiveMaxConfidence)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := uow.Items().UpdateStatus(ctx, it.ID, model.StatusArchived); err != nil {
			stats.addError(err)
			continue
		}
		stats.count("archived_stale", 1)
	}
	return nil
}

// compressSimilar implements step 4: within each (canonical_subject,
// predicate) group, items whose objects are equal or one contains the other
// are treated as near-duplicates; the lower-confidence member is archived
// and the survivor's supersedes set.
func (r *Runner) compressSimilar(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	items, err := uow.Items().List(ctx, "", model.StatusActive, r.cfg.itemCap())
	if err != nil {
		return err
	}
	groups := make(map[string][]model.Item)
	for _, it := range items {
		key := it.CanonicalSubject + "\x00" + it.Predicate
		groups[key] = append(groups[key], it)
	}

	archived := make(map[uuid.UUID]bool)
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			if archived[group[i].ID] {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				if archived[group[j].ID] {
					continue
				}
				if !similarObjects(group[i].Object, group[j].Object) {
					continue
				}
				winner, loser := group[i], group[j]
				if loser.Confidence > winner.Confidence {
					winner, loser = loser, winner
				}
				if err := uow.Items().UpdateStatus(ctx, loser.ID, model.StatusArchived); err != nil {
					stats.addError(err)
					continue
				}
				winner.Supersedes = &loser.ID
				if err := uow.Items().Update(ctx, &winner); err != nil {
					stats.addError(err)
					continue
				}
				archived[loser.ID] = true
				stats.count("compressed", 1)
			}
		}
	}
	return nil
}

func similarObjects(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return la == lb || strings.Contains(la, lb) || strings.Contains(lb, la)
}

// cleanupOrphans implements step 5.
func (r *Runner) cleanupOrphans(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	n, err := uow.Resources().DeleteOrphaned(ctx, orphanResourceAgeDays)
	if err != nil {
		return err
	}
	stats.count("orphans_deleted", n)
	return nil
}
