package cache

import (
	"strings"
)

// Key builds the cache key for a (source, language, normalized name) lookup.
func Key(source, language, name string) string {
	return source + "|" + language + "|" + NormalizeName(name)
}

// IDKey builds the cache key for a (source, canonical id) lookup. Ids are
// case-sensitive in most namespaces so only whitespace is trimmed.
func IDKey(source, id string) string {
	return source + "|id|" + strings.TrimSpace(id)
}

// NormalizeName lowercases and collapses internal whitespace so surface
// variants of the same mention share one cache entry.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
