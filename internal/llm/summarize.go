package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/pkg/provider/llm"
	"github.com/MrWong99/tieredmem/pkg/types"
)

const summaryPromptTemplate = `Summarize the following facts about a user into a concise paragraph.
Focus on the most important and recent information.
Write in third person.

Category: %s

Facts:
%s

Summary (2-4 sentences):`

// BuildCategorySummary asks provider for a short natural-language summary of
// items, which must all belong to category. If items is empty, returns a
// fixed "no information available" string without calling the provider,
// matching build_category_summary's early return.
func BuildCategorySummary(ctx context.Context, provider llm.Provider, category string, items []model.Item) (string, error) {
	if len(items) == 0 {
		return fmt.Sprintf("No information available for %s.", category), nil
	}

	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s %s %s\n", it.Subject, it.Predicate, it.Object)
	}
	prompt := fmt.Sprintf(summaryPromptTemplate, category, strings.TrimRight(b.String(), "\n"))

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
