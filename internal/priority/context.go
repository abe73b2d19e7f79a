package priority

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/store"
)

// defaultSummaryPrefix matches llm.BuildCategorySummary's placeholder text
// for a category with no items, so BuildTieredContext can recognize and skip
// it without importing internal/llm for one string comparison.
const defaultSummaryPrefix = "No information available for"

// BuildTieredContext renders the "## User Memory Context" markdown block
// described in §4.7: categories ranked by priority desc (ties by name), each
// with a Recent section (its most recent maxItemsPerCategory active items)
// and a Related section (graph edges touching the category's entities that
// aren't already shown as one of its own items).
//
// Categories with no active items and only a default placeholder summary are
// skipped. When maxChars > 0, the output is truncated at the last category
// boundary that still fits — never mid-block. When recordAccess is true, one
// CategoryAccess row is appended per category actually included.
func BuildTieredContext(ctx context.Context, uow store.UnitOfWork, categories []string, maxItemsPerCategory, maxChars int, recordAccess bool) (string, error) {
	now := time.Now().UTC()
	if maxItemsPerCategory <= 0 {
		maxItemsPerCategory = 5
	}
	if len(categories) == 0 {
		all, err := uow.Items().ListDistinctCategories(ctx, model.StatusActive)
		if err != nil {
			return "", err
		}
		categories = all
	}

	stats, err := GatherStats(ctx, uow, categories, now)
	if err != nil {
		return "", err
	}
	ranked := Rank(DefaultWeights(), stats, now)

	header := "## User Memory Context"
	body := header
	var included []string

	for _, rc := range ranked {
		block, hasContent, err := buildCategoryBlock(ctx, uow, rc.Category, maxItemsPerCategory)
		if err != nil {
			return "", err
		}
		if !hasContent {
			continue
		}
		candidate := body + "\n\n" + block
		if maxChars > 0 && len(candidate) > maxChars {
			break
		}
		body = candidate
		included = append(included, rc.Category)
	}

	if recordAccess {
		for _, category := range included {
			if _, err := uow.CategoryAccesses().Create(ctx, &model.CategoryAccess{
				Category:   category,
				AccessedAt: now,
				Source:     model.AccessSourceContext,
			}); err != nil {
				return "", err
			}
		}
	}

	return body, nil
}

func buildCategoryBlock(ctx context.Context, uow store.UnitOfWork, category string, maxItems int) (string, bool, error) {
	items, err := uow.Items().List(ctx, category, model.StatusActive, maxItems)
	if err != nil {
		return "", false, err
	}
	catInfo, err := uow.Categories().GetByName(ctx, category)
	if err != nil {
		return "", false, err
	}
	summary := ""
	if catInfo != nil {
		summary = catInfo.Summary
	}
	isDefault := summary == "" || strings.HasPrefix(summary, defaultSummaryPrefix)
	if len(items) == 0 && isDefault {
		return "", false, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n", category)
	if !isDefault {
		fmt.Fprintf(&sb, "%s\n", summary)
	}

	if len(items) > 0 {
		sb.WriteString("**Recent:**\n")
		for _, it := range items {
			fmt.Fprintf(&sb, "- %s %s %s\n", it.Subject, it.Predicate, it.Object)
		}
	}

	related, err := relatedEdges(ctx, uow, items)
	if err != nil {
		return "", false, err
	}
	if len(related) > 0 {
		sb.WriteString("**Related:**\n")
		for _, e := range related {
			fmt.Fprintf(&sb, "- %s %s %s\n", e.Subject, e.Predicate, e.Object)
		}
	}

	return strings.TrimRight(sb.String(), "\n"), true, nil
}

// relatedEdges collects graph edges incident on any canonical entity present
// in items, excluding edges whose (subject, predicate, object) triple is
// already shown as one of items (the "not already listed above" rule).
func relatedEdges(ctx context.Context, uow store.UnitOfWork, items []model.Item) ([]model.GraphEdge, error) {
	entities := make(map[string]bool)
	ownTriples := make(map[string]bool)
	for _, it := range items {
		if it.CanonicalSubject != "" {
			entities[it.CanonicalSubject] = true
		}
		if it.CanonicalObject != "" {
			entities[it.CanonicalObject] = true
		}
		ownTriples[tripleKey(it.CanonicalSubject, it.Predicate, it.CanonicalObject)] = true
	}

	var result []model.GraphEdge
	seen := make(map[string]bool)
	for entity := range entities {
		bySubject, err := uow.Graph().GetBySubject(ctx, entity)
		if err != nil {
			return nil, err
		}
		byObject, err := uow.Graph().GetByObject(ctx, entity)
		if err != nil {
			return nil, err
		}
		for _, e := range append(bySubject, byObject...) {
			key := e.TripleKey()
			if seen[key] || ownTriples[key] {
				continue
			}
			seen[key] = true
			result = append(result, e)
		}
	}
	return result, nil
}

func tripleKey(subject, predicate, object string) string {
	return subject + "\x00" + predicate + "\x00" + object
}
