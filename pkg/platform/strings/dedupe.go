// Package strings normalizes string lists taken from configuration.
package strings

import "strings"

// CleanList trims every entry and drops blanks and repeats. The first
// occurrence of each value keeps its position; the input is not modified.
func CleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
