// Package synonym provides alternative surface forms for entity names.
// The cascade's SYNONYM_FALLBACK stage feeds each candidate back through
// primary lookup logic, stopping at the first success.
package synonym

import (
	"context"
	"strings"
)

// Generator produces alternative surface forms (synonyms, spellings,
// translations) for an entity name. Implementations are external
// collaborators; the cascade treats the output as an opaque candidate list.
type Generator interface {
	Synonyms(ctx context.Context, name, declaredType, language string, max int) ([]string, error)
}

// StaticGenerator derives mechanical surface variants without any external
// call: case changes, punctuation stripping, parenthetical removal. Used
// when no LLM is configured, and as the deterministic generator in tests.
type StaticGenerator struct{}

// Synonyms returns up to max distinct variants, excluding the input itself.
func (StaticGenerator) Synonyms(_ context.Context, name, _, _ string, max int) ([]string, error) {
	seen := map[string]bool{strings.ToLower(name): true}
	var out []string

	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || seen[strings.ToLower(candidate)] {
			return
		}
		seen[strings.ToLower(candidate)] = true
		out = append(out, candidate)
	}

	if len(name) > 1 {
		add(strings.ToUpper(name[:1]) + strings.ToLower(name[1:]))
		add(strings.ToUpper(name[:1]) + name[1:])
	}

	// Drop a trailing parenthetical: "Mercury (element)" -> "Mercury"
	if i := strings.Index(name, " ("); i > 0 {
		add(name[:i])
	}

	// Strip punctuation that endpoints often reject
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '\'', '"':
			return -1
		}
		return r
	}, name)
	add(stripped)

	// Hyphen/space variants: "Al-Andalus" <-> "Al Andalus"
	if strings.Contains(name, "-") {
		add(strings.ReplaceAll(name, "-", " "))
	} else if strings.Contains(name, " ") {
		add(strings.ReplaceAll(name, " ", "-"))
	}

	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}
