// Package testutil provides shared skip helpers and ragged-batch fixtures for
// tests.
//
// Skip helpers call t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so tests remain runnable in partial environments
// without failing noisily.
//
// Typical usage:
//
//	func TestOnGPU(t *testing.T) {
//	    be := testutil.RequireWebGPU(t)
//	    ...
//	}
package testutil

import (
	"math/rand/v2"
	"os"
	"testing"

	"github.com/example/go-raggedpool/internal/backend"
	"github.com/example/go-raggedpool/internal/backend/webgpu"
	"github.com/example/go-raggedpool/internal/ragged"
)

// RequireWebGPU skips the test unless the binary was built with the webgpu
// tag and a device can be acquired. Setting RAGGEDPOOL_SKIP_GPU=1 always
// skips. The backend is closed when the test ends.
func RequireWebGPU(tb testing.TB) backend.Backend {
	tb.Helper()

	if os.Getenv("RAGGEDPOOL_SKIP_GPU") == "1" {
		tb.Skip("GPU tests disabled by RAGGEDPOOL_SKIP_GPU=1")
		return nil
	}
	if !webgpu.Compiled {
		tb.Skip("WebGPU backend not compiled in; build with -tags webgpu")
		return nil
	}

	be, err := webgpu.New()
	if err != nil {
		tb.Skipf("WebGPU device not available: %v", err)
		return nil
	}
	tb.Cleanup(func() { _ = be.Close() })

	return be
}

// Fill returns a rows x cols matrix with every element set to v.
func Fill(rows, cols int, v float32) ragged.Matrix[float32] {
	m := ragged.NewMatrix[float32](rows, cols)
	for i := range m.Data {
		m.Data[i] = v
	}

	return m
}

// Uniform returns a rows x cols matrix with elements drawn from [lo, hi).
func Uniform(rng *rand.Rand, rows, cols int, lo, hi float32) ragged.Matrix[float32] {
	m := ragged.NewMatrix[float32](rows, cols)
	for i := range m.Data {
		m.Data[i] = lo + rng.Float32()*(hi-lo)
	}

	return m
}

// RandomLengths returns b lengths drawn from [0, maxLen] and their sum.
func RandomLengths(rng *rand.Rand, b, maxLen int) ([]int32, int) {
	lengths := make([]int32, b)
	total := 0
	for i := range lengths {
		n := rng.IntN(maxLen + 1)
		lengths[i] = int32(n)
		total += n
	}

	return lengths, total
}

// Batch is a random ragged batch.
type Batch struct {
	X       ragged.Matrix[float32]
	Lengths []int32
}

// RandomBatch returns b items of up to maxLen rows each, cols features wide,
// with values in [-1, 1).
func RandomBatch(rng *rand.Rand, b, maxLen, cols int) Batch {
	lengths, total := RandomLengths(rng, b, maxLen)

	return Batch{X: Uniform(rng, total, cols, -1, 1), Lengths: lengths}
}
