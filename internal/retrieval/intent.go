// Package retrieval implements the intent classifier and smart-search
// dispatcher (C5): a zero-cost, rule-based router that decides which of
// four retrieval strategies a free-text query calls for, then executes it.
//
// Intent is modeled as a tagged union via the Go interface below, per §9's
// "model as a tagged union of four variants... dispatched by pattern match"
// design note — a Go sum type standing in for the source's class-as-variant
// plus isinstance dispatch. original_source/kiroku_memory/search.py, which
// would normally ground the keyword tables, was not present in the
// retrieved pack in full; the CJK/multilingual pattern tables below are
// authored directly from §4.5's literal table instead (see DESIGN.md).
package retrieval

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/tieredmem/internal/model"
)

// Intent is the tagged union classify_intent produces. Exactly one of the
// four concrete types below implements it for any given query.
type Intent interface {
	intentTag() string
}

// EntityLookup asks for everything known about a named entity.
type EntityLookup struct{ Entity string }

func (EntityLookup) intentTag() string { return "EntityLookup" }

// Temporal asks for items created within the last Days days.
type Temporal struct{ Days int }

func (Temporal) intentTag() string { return "Temporal" }

// AspectFilter asks for items in a specific category.
type AspectFilter struct{ Category string }

func (AspectFilter) intentTag() string { return "AspectFilter" }

// SemanticSearch is the default: embed the query and rank by similarity.
// Fallback is set when the embed/search step failed or returned nothing and
// the result was substituted with recent items instead.
type SemanticSearch struct{ Fallback bool }

func (SemanticSearch) intentTag() string { return "SemanticSearch" }

// Label renders the intent as the diagnostic string end-to-end scenarios key
// off of, e.g. "EntityLookup" or "SemanticSearch(fallback)".
func Label(i Intent) string {
	if s, ok := i.(SemanticSearch); ok && s.Fallback {
		return "SemanticSearch(fallback)"
	}
	return i.intentTag()
}

var (
	entityAboutRe  = regexp.MustCompile(`(?i)^(?:what do you know about|about)\s+(.+)$`)
	entityZhRe     = regexp.MustCompile(`^關於\s*(.+)$`)
	entitySuffixRe = regexp.MustCompile(`^(.+?)(是誰|是什麼|的資料)$`)

	temporalDaysRe   = regexp.MustCompile(`(?i)(?:last|past)\s+(\d+)\s*days?`)
	temporalWeekRe   = regexp.MustCompile(`(?i)(?:last|past)\s+week`)
	temporalMonthRe  = regexp.MustCompile(`(?i)(?:last|past)\s+month`)
	temporalRecentRe = regexp.MustCompile(`(?i)recent(?:ly)?`)
)

// zhTemporalDays maps a CJK temporal keyword to the day count it implies.
// Ordered (not a map) so classification stays deterministic when a query
// happens to contain more than one keyword.
var zhTemporalDays = []struct {
	keyword string
	days    int
}{
	{"今天", 1},
	{"昨天", 2},
	{"這個月", 30},
	{"本月", 30},
	{"這週", 7},
	{"本週", 7},
	{"最近", 7},
}

// aspectKeywords pairs each of model.DefaultCategories with the keywords
// (English and CJK) that select it. Each list always includes the category
// name itself as a literal keyword.
var aspectKeywords = map[string][]string{
	"preferences": {"preferences", "prefer", "like", "favorite", "dislike", "setting", "choice", "taste", "偏好", "喜歡", "喜好"},
	"facts":       {"facts", "fact", "information", "info", "事實", "資訊"},
	"events":      {"events", "event", "meeting", "appointment", "schedule", "calendar", "happened", "活動", "會議", "行程"},
	"relationships": {"relationships", "friend", "colleague", "family", "partner", "relationship", "team", "朋友", "同事", "關係"},
	"skills":      {"skills", "skill", "expert", "ability", "proficient", "capable", "know how", "技能", "專長", "能力"},
	"goals":       {"goals", "goal", "plan", "objective", "aspiration", "intend", "want to", "目標", "計畫", "打算"},
}

// ClassifyIntent is the pure, rule-based classify_intent: entity → temporal
// → aspect → semantic, first match wins.
func ClassifyIntent(query string) Intent {
	q := strings.TrimSpace(query)

	if entity, ok := classifyEntity(q); ok {
		return EntityLookup{Entity: entity}
	}
	if days, ok := classifyTemporal(q); ok {
		return Temporal{Days: days}
	}
	if category, ok := classifyAspect(q); ok {
		return AspectFilter{Category: category}
	}
	return SemanticSearch{}
}

func classifyEntity(q string) (string, bool) {
	if m := entityAboutRe.FindStringSubmatch(q); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := entityZhRe.FindStringSubmatch(q); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := entitySuffixRe.FindStringSubmatch(q); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

func classifyTemporal(q string) (int, bool) {
	if m := temporalDaysRe.FindStringSubmatch(q); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return n, true
		}
	}
	if temporalWeekRe.MatchString(q) {
		return 7, true
	}
	if temporalMonthRe.MatchString(q) {
		return 30, true
	}
	for _, zh := range zhTemporalDays {
		if strings.Contains(q, zh.keyword) {
			return zh.days, true
		}
	}
	if temporalRecentRe.MatchString(q) {
		return 7, true
	}
	return 0, false
}

func classifyAspect(q string) (string, bool) {
	lower := strings.ToLower(q)
	for _, category := range model.DefaultCategories {
		for _, keyword := range aspectKeywords[category] {
			needle := keyword
			if isASCII(needle) {
				needle = strings.ToLower(needle)
				if strings.Contains(lower, needle) {
					return category, true
				}
				continue
			}
			if strings.Contains(q, needle) {
				return category, true
			}
		}
	}
	return "", false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
