package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/pkg/provider/llm"
	"github.com/MrWong99/tieredmem/pkg/types"
)

// categoryDescriptions pairs each category with the one-line description
// shown to the LLM classifier. Ported verbatim from
// original_source/kiroku_memory/classify.py's DEFAULT_CATEGORIES.
var categoryDescriptions = []struct{ Name, Description string }{
	{"preferences", "User preferences, settings, and personal choices"},
	{"facts", "Factual information about the user or their environment"},
	{"events", "Past or scheduled events, activities, appointments"},
	{"relationships", "People, organizations, and their connections"},
	{"skills", "Abilities, expertise, knowledge areas"},
	{"goals", "Objectives, plans, aspirations"},
}

const classifyPromptTemplate = `Classify the following fact into one of these categories:

Categories:
%s

Fact:
- Subject: %s
- Predicate: %s
- Object: %s

Return only the category name, nothing else.`

// ClassifyItem assigns a category to it. When useLLM is false, or the LLM
// call fails, or the LLM returns a name outside model.DefaultCategories, it
// falls back to RuleBasedClassify — mirroring classify_item's validate-and-
// fallback behavior.
func ClassifyItem(ctx context.Context, provider llm.Provider, it model.Item, useLLM bool) (string, error) {
	if !useLLM || provider == nil {
		return RuleBasedClassify(it), nil
	}

	var b strings.Builder
	for _, c := range categoryDescriptions {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}
	prompt := fmt.Sprintf(classifyPromptTemplate, strings.TrimRight(b.String(), "\n"), it.Subject, it.Predicate, it.Object)

	maxTokens := 20
	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return RuleBasedClassify(it), nil
	}

	category := strings.ToLower(strings.TrimSpace(resp.Content))
	if !isValidCategory(category) {
		return RuleBasedClassify(it), nil
	}
	return category, nil
}

func isValidCategory(name string) bool {
	for _, c := range model.DefaultCategories {
		if c == name {
			return true
		}
	}
	return false
}

// RuleBasedClassify is a keyword-matching fallback classifier, used when no
// LLM is configured or the LLM call/response is unusable. Ported verbatim
// from original_source/kiroku_memory/classify.py's _rule_based_classify.
func RuleBasedClassify(it model.Item) string {
	predicate := strings.ToLower(it.Predicate)

	if containsAny(predicate, "prefer", "like", "want", "use") {
		return "preferences"
	}
	if containsAny(predicate, "know", "met", "friend", "colleague") {
		return "relationships"
	}
	if containsAny(predicate, "can", "skill", "expert", "learn") {
		return "skills"
	}
	if containsAny(predicate, "plan", "goal", "want to", "will") {
		return "goals"
	}
	if containsAny(predicate, "attend", "schedule", "meet", "event") {
		return "events"
	}
	return "facts"
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
