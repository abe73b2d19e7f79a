package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrWong99/tieredmem/internal/apperr"
	"github.com/MrWong99/tieredmem/pkg/provider/llm"
	"github.com/MrWong99/tieredmem/pkg/types"
)

const extractionSystemPrompt = "You extract structured facts from text. Return only valid JSON."

const extractionPromptTemplate = `Extract atomic facts from the following text.

For each fact, identify:
- subject: The entity the fact is about
- predicate: The relationship or property
- object: The value or related entity
- category: One of [preferences, facts, events, relationships, skills, goals]
- confidence: 0.0-1.0 based on certainty

Return JSON array of facts. Only extract clear, verifiable facts.
If no facts can be extracted, return empty array.

Text:
%s

Return only valid JSON:`

// ExtractedFact is one LLM-proposed subject/predicate/object triple, before
// entity resolution or persistence.
type ExtractedFact struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// ExtractFacts asks provider to pull atomic facts out of text.
//
// On any parse failure it returns an empty slice and a *apperr.MalformedLLMOutput
// wrapping the parse error — the caller (internal/ingest) treats that as "zero
// facts extracted" rather than a hard failure, per original_source's
// extract_facts, which swallows json.JSONDecodeError/ValueError the same way.
func ExtractFacts(ctx context.Context, provider llm.Provider, text string) ([]ExtractedFact, error) {
	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: extractionSystemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: fmt.Sprintf(extractionPromptTemplate, text)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, apperr.NewProviderUnavailable("llm", err)
	}
	facts, err := parseExtractedFacts(resp.Content)
	if err != nil {
		return nil, &apperr.MalformedLLMOutput{Err: err}
	}
	return facts, nil
}

// parseExtractedFacts tolerantly parses the model's JSON response: it may be
// a bare array, an object with a "facts" key holding the array, or a single
// fact object — mirroring extract_facts's `data.get("facts", data)` fallback
// and its "wrap a single object in a list" behavior.
func parseExtractedFacts(content string) ([]ExtractedFact, error) {
	if content == "" {
		return nil, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &asObject); err == nil {
		if raw, ok := asObject["facts"]; ok {
			return decodeFactList(raw)
		}
		return decodeFactList([]byte(content))
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal([]byte(content), &asArray); err == nil {
		return decodeFactList([]byte(content))
	}

	return nil, fmt.Errorf("extract: response is neither a JSON object nor array: %q", content)
}

func decodeFactList(raw json.RawMessage) ([]ExtractedFact, error) {
	var list []ExtractedFact
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single ExtractedFact
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []ExtractedFact{single}, nil
}
