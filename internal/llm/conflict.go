package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/pkg/provider/llm"
	"github.com/MrWong99/tieredmem/pkg/types"
)

const conflictPromptTemplate = `Do these two facts conflict with each other?

Fact 1:
- Subject: %s
- Predicate: %s
- Object: %s

Fact 2:
- Subject: %s
- Predicate: %s
- Object: %s

Answer only YES or NO.`

// CheckConflict reports whether a and b contradict each other.
//
// The string-equality gate — same canonical subject and predicate, a
// different canonical object — is a necessary condition; it is evaluated
// first and costs nothing. On a gate match, a second check decides whether
// it's a real conflict: an LLM call (useLLM) or, when useLLM is false, the
// gate match itself is treated as sufficient, exactly as in
// original_source/kiroku_memory/conflict.py's check_conflict.
//
// Equality is checked on CanonicalSubject/CanonicalObject rather than the
// raw Subject/Object the Python original compares — this follows the
// specification's requirement that every equality lookup use resolved
// entity forms, a deliberate departure recorded in DESIGN.md.
func CheckConflict(ctx context.Context, provider llm.Provider, a, b model.Item, useLLM bool) (bool, error) {
	if a.CanonicalSubject != b.CanonicalSubject || a.Predicate != b.Predicate || a.CanonicalObject == b.CanonicalObject {
		return false, nil
	}
	if !useLLM || provider == nil {
		return true, nil
	}

	prompt := conflictPrompt(a, b)
	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []types.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   5,
	})
	if err != nil {
		// Degrade to the gate's verdict rather than surfacing a hard failure —
		// the extractor/ingest pipeline must keep moving even if the LLM is down.
		return true, nil
	}
	answer := strings.ToUpper(strings.TrimSpace(resp.Content))
	return answer == "YES", nil
}

func conflictPrompt(a, b model.Item) string {
	return fmt.Sprintf(conflictPromptTemplate, a.Subject, a.Predicate, a.Object, b.Subject, b.Predicate, b.Object)
}
