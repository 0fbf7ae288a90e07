package kernels

import "sort"

// Offsets returns the prefix sums of lengths: item b owns rows
// [off[b], off[b+1]). len(off) == len(lengths)+1. Negative lengths are the
// caller's problem; validate before calling.
func Offsets(lengths []int32) []int {
	off := make([]int, len(lengths)+1)
	for b, n := range lengths {
		off[b+1] = off[b] + int(n)
	}

	return off
}

// ItemOfRow returns the item owning row t given offsets from Offsets, or
// len(off)-1 when t is past the last row.
func ItemOfRow(off []int, t int) int {
	return sort.Search(len(off)-1, func(b int) bool { return off[b+1] > t })
}
