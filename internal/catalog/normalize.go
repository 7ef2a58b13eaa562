package catalog

import "strings"

// normText trims display text; stored values keep the caller's casing.
func normText(s string) string {
	return strings.TrimSpace(s)
}

// normKey folds a natural-key component for comparison. Lookups in SQL use
// COLLATE NOCASE; this keeps in-Go comparisons on the same footing.
func normKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
