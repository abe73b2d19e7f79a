package maintenance

import (
	"context"
	"fmt"
	"math"

	"github.com/MrWong99/tieredmem/internal/llm"
	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/store"
)

// hotnessThreshold is the floor above which an item's confidence is nudged
// up during nightly hotness promotion.
const hotnessThreshold = 0.7

// Nightly runs duplicate merge, hotness promotion, and category-summary
// refresh in one transaction.
func (r *Runner) Nightly(ctx context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := newStats()
	uow, err := r.st.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("nightly: begin: %w", err)
	}
	defer uow.Rollback(ctx)

	if err := r.mergeDuplicates(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("nightly: merge duplicates: %w", err)
	}
	if err := r.promoteHotness(ctx, uow, stats); err != nil {
		return nil, fmt.Errorf("nightly: hotness: %w", err)
	}
	r.refreshSummaries(ctx, uow, stats)

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("nightly: commit: %w", err)
	}
	return stats.finish(), nil
}

// mergeDuplicates implements step 1: archive the older of each duplicate
// pair, point the survivor's supersedes at it, and raise the survivor's
// confidence to the max of the two.
func (r *Runner) mergeDuplicates(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	pairs, err := uow.Items().ListDuplicates(ctx)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		loser, survivor := pair[0], pair[1]
		if err := uow.Items().UpdateStatus(ctx, loser.ID, model.StatusArchived); err != nil {
			stats.addError(err)
			continue
		}
		if loser.Confidence > survivor.Confidence {
			survivor.Confidence = loser.Confidence
		}
		survivor.Supersedes = &loser.ID
		if err := uow.Items().Update(ctx, &survivor); err != nil {
			stats.addError(err)
			continue
		}
		stats.count("duplicates_merged", 1)
	}
	return nil
}

// promoteHotness implements step 2. hotness combines recency, a neighbor-
// item signal over the last 7 days, and current confidence; items above the
// hotness threshold get a small, capped confidence bump.
func (r *Runner) promoteHotness(ctx context.Context, uow store.UnitOfWork, stats *Stats) error {
	items, err := uow.Items().List(ctx, "", model.StatusActive, r.cfg.itemCap())
	if err != nil {
		return err
	}
	now := nowUTC()
	for _, it := range items {
		ageDays := now.Sub(it.CreatedAt).Hours() / 24
		recency := math.Pow(0.5, ageDays/7)

		related := 0.0
		if it.CanonicalSubject != "" {
			count, err := uow.Items().CountBySubjectRecent(ctx, it.CanonicalSubject, 7)
			if err != nil {
				stats.addError(err)
				continue
			}
			related = math.Min(1, float64(count)/10)
		}

		hotness := 0.5*recency + 0.3*related + 0.2*it.Confidence
		if hotness < hotnessThreshold {
			continue
		}
		it.Confidence = math.Min(1.0, it.Confidence+0.1)
		if err := uow.Items().Update(ctx, &it); err != nil {
			stats.addError(err)
			continue
		}
		stats.count("hotness_promoted", 1)
	}
	return nil
}

// refreshSummaries implements step 3: regenerate every active category's
// cached summary via the LLM. Skipped (not an error) when no LLM provider is
// configured, per §7's degraded-operation policy for provider-unavailable.
func (r *Runner) refreshSummaries(ctx context.Context, uow store.UnitOfWork, stats *Stats) {
	if r.llmProv == nil {
		return
	}
	categories, err := uow.Items().ListDistinctCategories(ctx, model.StatusActive)
	if err != nil {
		stats.addError(err)
		return
	}
	for _, category := range categories {
		items, err := uow.Items().List(ctx, category, model.StatusActive, r.cfg.itemCap())
		if err != nil {
			stats.addError(err)
			continue
		}
		summary, err := llm.BuildCategorySummary(ctx, r.llmProv, category, items)
		if err != nil {
			stats.addError(err)
			continue
		}
		if err := uow.Categories().UpdateSummary(ctx, category, summary); err != nil {
			stats.addError(err)
			continue
		}
		stats.count("summaries_updated", 1)
	}
}
