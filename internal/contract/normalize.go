package contract

import (
	"sort"
	"strings"
)

// normalizeStringList trims, drops empties, dedupes, and sorts.
func normalizeStringList(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// capList truncates a sorted list to at most n entries.
func capList[T any](in []T, n int) []T {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
