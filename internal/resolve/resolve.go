// Package resolve implements entity-resolution normalization: mapping a raw
// subject/object string to its canonical form for equality lookups
// (conflict detection, duplicate detection, graph queries, subject search).
//
// Resolve is a pure function: deterministic, side-effect-free, unicode-safe,
// and idempotent (Resolve(Resolve(x)) == Resolve(x)).
package resolve

import "strings"

// aliases maps common synonyms to their canonical form. Both keys and
// values are themselves already normalized (lowercased, whitespace
// collapsed) — enforced by resolve_test.go so that the table can never
// silently drift out of normal form.
//
// Ported verbatim from original_source/kiroku_memory/entity_resolution.py's
// BUILTIN_ALIASES.
var aliases = map[string]string{
	// First-person self-references, multiple languages.
	"我":      "user",
	"i":      "user",
	"me":     "user",
	"myself": "user",
	"使用者":    "user",
	"用戶":     "user",
	"本人":     "user",

	// Programming languages.
	"js": "javascript",
	"ts": "typescript",
	"py": "python",
	"rb": "ruby",
	"rs": "rust",

	// Common tools.
	"vim":      "neovim",
	"pg":       "postgresql",
	"postgres": "postgresql",
	"mongo":    "mongodb",
	"k8s":      "kubernetes",
	"tf":       "terraform",
	"gh":       "github",

	// Operating systems.
	"mac": "macos",
	"osx": "macos",
	"win": "windows",
}

// Normalize lowercases s, trims leading/trailing whitespace, and collapses
// internal runs of whitespace to a single space. It is unicode-safe: case
// folding and whitespace splitting both operate on runes, not bytes.
func Normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// Resolve returns the canonical form of s: Alias(Normalize(s)). Inputs with
// no alias entry fall through unchanged (but still normalized).
func Resolve(s string) string {
	normalized := Normalize(s)
	if canonical, ok := aliases[normalized]; ok {
		return canonical
	}
	return normalized
}
