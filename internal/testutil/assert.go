package testutil

import (
	"math"
	"testing"
)

// AssertClose fails the test at the first element where got and want differ
// by more than tol.
func AssertClose(tb testing.TB, got, want []float32, tol float64) {
	tb.Helper()

	if len(got) != len(want) {
		tb.Fatalf("length = %d; want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(float64(got[i])-float64(want[i])) > tol {
			tb.Fatalf("[%d] = %v; want %v (tol %g)", i, got[i], want[i], tol)
		}
	}
}

// AssertEqual fails the test at the first element where got and want differ.
func AssertEqual[T comparable](tb testing.TB, got, want []T) {
	tb.Helper()

	if len(got) != len(want) {
		tb.Fatalf("length = %d; want %d", len(got), len(want))
	}

	for i := range got {
		if got[i] != want[i] {
			tb.Fatalf("[%d] = %v; want %v", i, got[i], want[i])
		}
	}
}
