// Package rank orders standings by score.
package rank

import (
	"cmp"
	"slices"

	"github.com/festtally/festtally/pkg/types"
)

// Rank returns a new slice of standings sorted by score, highest first.
// Equal scores keep their feed order; there is no secondary key. The input
// slice is not modified.
func Rank(in []types.Standing) []types.Standing {
	out := make([]types.Standing, len(in))
	copy(out, in)
	slices.SortStableFunc(out, func(a, b types.Standing) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// Sorted reports whether s is ordered by score, highest first.
func Sorted(s []types.Standing) bool {
	for i := 1; i < len(s); i++ {
		if s[i].Score > s[i-1].Score {
			return false
		}
	}
	return true
}
