package pricing

import "strings"

// Normalize collapses a vendor model identifier to the canonical lookup key
// used for cache keys, catalogue keys, and price lookups: lowercase, trimmed,
// last path segment after a '/', with '@' rewritten to '-'.
//
// "openai/gpt-4o@20240501" -> "gpt-4o-20240501"
func Normalize(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	if idx := strings.LastIndex(m, "/"); idx >= 0 {
		m = m[idx+1:]
	}
	m = strings.ReplaceAll(m, "@", "-")
	return m
}
