package model

import "cmp"

// Percentile returns sorted[len(sorted)*p/100], the element at the floor of
// the p-th fractional index, clamped to the last element. This rounds up
// relative to nearest-rank: for two samples p50 is the larger one. sorted
// must be in ascending order. p is clamped to [0, 100]; an empty slice yields
// the zero value.
func Percentile[T cmp.Ordered](sorted []T, p int) T {
	var zero T
	if len(sorted) == 0 {
		return zero
	}
	p = max(0, min(p, 100))
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
