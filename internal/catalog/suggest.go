package catalog

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Suggest returns the known id closest to id by edit distance, or "" when
// nothing is close enough to be a plausible typo.
func Suggest(id string, known []string) string {
	sorted := append([]string(nil), known...)
	sort.Strings(sorted)

	needle := strings.ToLower(id)
	best := ""
	bestDist := suggestLimit(len(needle)) + 1
	for _, k := range sorted {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(k))
		if d < bestDist {
			best = k
			bestDist = d
		}
	}
	return best
}

func suggestLimit(n int) int {
	switch {
	case n <= 3:
		return 1
	case n <= 7:
		return 2
	default:
		return 3
	}
}
