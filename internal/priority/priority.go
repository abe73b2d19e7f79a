// Package priority implements the static×dynamic category priority score and
// the tiered-context builder (C7) on top of it.
//
// Grounded on internal/hotctx: BuildTieredContext's category-block renderer
// is the direct descendant of FormatSystemPrompt's section-by-section
// markdown builder (the rendered blocks here are SPO facts rather than NPC
// dialogue). GatherStats does NOT mirror Assembler.Assemble's errgroup
// fan-out: every repository handed to it (internal/store/postgres/uow.go,
// internal/store/embedded/uow.go) shares one transaction bound to a single
// connection, which is not safe for concurrent queries the way Assemble's
// independent identity/transcript/scene sources are — so the per-category
// lookups below run sequentially against that one connection instead.
package priority

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/store"
)

// Weights holds every tunable constant in the priority formula, with the
// defaults from §4.7.
type Weights struct {
	Static map[string]float64 // per-category static weight; a category not listed here uses Default
	Default float64            // static weight for a category not in Static

	UsageWindow time.Duration // rolling window CountByCategory looks back over
	UsageNorm   float64       // usage_score = min(1, usage_count/UsageNorm)
	UsageWeight float64       // w_usage

	RecencyHalfLife time.Duration // recency_score = exp(-age/HalfLife)
	RecencyWeight   float64       // w_recency
}

// DefaultWeights returns §4.7's literal defaults.
func DefaultWeights() Weights {
	return Weights{
		Static: map[string]float64{
			"preferences":   1.0,
			"facts":         0.9,
			"goals":         0.7,
			"skills":        0.6,
			"relationships": 0.5,
			"events":        0.4,
		},
		Default:         0.5,
		UsageWindow:     30 * 24 * time.Hour,
		UsageNorm:       10,
		UsageWeight:     0.3,
		RecencyHalfLife: 14 * 24 * time.Hour,
		RecencyWeight:   0.2,
	}
}

// Stats is the per-category signal gathered before scoring.
type Stats struct {
	Category     string
	UsageCount   int
	LastItemAt   *time.Time
	CategoryInfo *model.Category // nil if the category has never been summarized
}

// Score computes priority = static_weight × dynamic_factor for one category's
// Stats at instant now.
func (w Weights) Score(s Stats, now time.Time) float64 {
	static, ok := w.Static[s.Category]
	if !ok {
		static = w.Default
	}

	usageScore := math.Min(1.0, float64(s.UsageCount)/w.UsageNorm)

	mostRecent := s.LastItemAt
	if s.CategoryInfo != nil && !s.CategoryInfo.UpdatedAt.IsZero() {
		if mostRecent == nil || s.CategoryInfo.UpdatedAt.After(*mostRecent) {
			t := s.CategoryInfo.UpdatedAt
			mostRecent = &t
		}
	}
	recencyScore := 0.0
	if mostRecent != nil {
		ageDays := now.Sub(*mostRecent).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		recencyScore = math.Exp(-ageDays / (w.RecencyHalfLife.Hours() / 24))
	}

	dynamic := 1 + w.UsageWeight*usageScore + w.RecencyWeight*recencyScore
	return static * dynamic
}

// GatherStats gathers one CountByCategory, one per-category last-item-time
// lookup, and one category-summary lookup for every category. The lookups
// run sequentially: uow's repositories all share one transaction bound to a
// single connection (see the package doc comment), so concurrent queries
// against it would race rather than overlap usefully.
func GatherStats(ctx context.Context, uow store.UnitOfWork, categories []string, now time.Time) ([]Stats, error) {
	since := now.Add(-DefaultWeights().UsageWindow)
	usageCounts, err := uow.CategoryAccesses().CountByCategory(ctx, &since)
	if err != nil {
		return nil, err
	}

	stats := make([]Stats, len(categories))
	for i, category := range categories {
		s := Stats{Category: category, UsageCount: usageCounts[category]}

		items, err := uow.Items().List(ctx, category, model.StatusActive, 1)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			t := items[0].CreatedAt
			s.LastItemAt = &t
		}

		catInfo, err := uow.Categories().GetByName(ctx, category)
		if err != nil {
			return nil, err
		}
		s.CategoryInfo = catInfo

		stats[i] = s
	}
	return stats, nil
}

// RankedCategory pairs a category name with its computed priority.
type RankedCategory struct {
	Category string
	Priority float64
}

// Rank orders categories by priority descending, ties broken by name, per
// §4.7's "ordering is stable (ties broken by name)".
func Rank(w Weights, stats []Stats, now time.Time) []RankedCategory {
	ranked := make([]RankedCategory, len(stats))
	for i, s := range stats {
		ranked[i] = RankedCategory{Category: s.Category, Priority: w.Score(s, now)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Priority != ranked[j].Priority {
			return ranked[i].Priority > ranked[j].Priority
		}
		return ranked[i].Category < ranked[j].Category
	})
	return ranked
}
