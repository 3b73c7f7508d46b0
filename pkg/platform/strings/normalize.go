// Package strings normalises identifier lists such as certification types.
package strings

import (
	"strings"
)

// Normalize is the canonical form of a single identifier: trimmed and
// lowercased.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// DedupeAndTrimLower trims and lowercases each element, dropping empties and
// repeats. First occurrence wins, so order is preserved.
//
//	DedupeAndTrimLower([]string{"  DBS ", "rtw", "dbs"})
//	// []string{"dbs", "rtw"}
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}
	return UnionLower(values)
}

// UnionLower merges lists in argument order under the same normalisation as
// DedupeAndTrimLower. The result is never nil.
func UnionLower(lists ...[]string) []string {
	size := 0
	for _, l := range lists {
		size += len(l)
	}
	seen := make(map[string]struct{}, size)
	result := make([]string, 0, size)

	for _, l := range lists {
		for _, v := range l {
			norm := Normalize(v)
			if norm == "" {
				continue
			}
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			result = append(result, norm)
		}
	}
	return result
}
