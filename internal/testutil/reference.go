package testutil

import "github.com/example/go-raggedpool/internal/ragged"

// The reference reductions below walk the batch item by item on one
// goroutine. Tests compare engine results against them.

// RefSumPool returns the per-item sums of x.
func RefSumPool(x ragged.Matrix[float32], lengths []int32) ragged.Matrix[float32] {
	out := ragged.NewMatrix[float32](len(lengths), x.Cols)
	t := 0
	for b, n := range lengths {
		dst := out.Row(b)
		for range n {
			for j, v := range x.Row(t) {
				dst[j] += v
			}
			t++
		}
	}

	return out
}

// RefMaxPool returns the per-item column maxima of x and the first row
// holding each. Empty items get 0 and -1.
func RefMaxPool(x ragged.Matrix[float32], lengths []int32) (ragged.Matrix[float32], ragged.Matrix[int32]) {
	maxes := ragged.NewMatrix[float32](len(lengths), x.Cols)
	which := ragged.NewMatrix[int32](len(lengths), x.Cols)

	start := 0
	for b, n := range lengths {
		best, rows := maxes.Row(b), which.Row(b)
		for j := range best {
			if n == 0 {
				rows[j] = -1
				continue
			}
			best[j] = x.Data[start*x.Cols+j]
			rows[j] = int32(start)
			for t := start + 1; t < start+int(n); t++ {
				if v := x.Data[t*x.Cols+j]; v > best[j] {
					best[j] = v
					rows[j] = int32(t)
				}
			}
		}
		start += int(n)
	}

	return maxes, which
}
