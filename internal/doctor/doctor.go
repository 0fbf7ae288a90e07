// Package doctor provides environment preflight checks for raggedpool.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/go-raggedpool/internal/kernels"
	"github.com/example/go-raggedpool/internal/ragged"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Engine is the engine whose backend and kernels are checked.
	Engine *ragged.Engine
	// RequireBackend fails the run when the engine has no compute backend.
	// Otherwise an unavailable backend is reported but not a failure.
	RequireBackend bool
	// CPUFeatures returns the SIMD features of the host. Nil skips the check.
	CPUFeatures func() []string
	// KernelFiles lists external kernel documents to check for the pooling
	// entry points. A file named like the hash document is checked for
	// hash_data instead.
	KernelFiles []string
	// SkipSmoke skips running kernels.
	SkipSmoke bool
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(ctx context.Context, cfg Config, w io.Writer) Result {
	var res Result

	e := cfg.Engine
	if e == nil {
		res.fail("engine: not configured")
		fmt.Fprintf(w, "%s engine: not configured\n", FailMark)
		return res
	}

	// ---- backend ----------------------------------------------------------
	switch {
	case e.Available():
		fmt.Fprintf(w, "%s backend: %s on %s\n", PassMark, e.Backend().Name(), e.Device())
	case cfg.RequireBackend:
		res.fail(fmt.Sprintf("backend %s: unavailable", e.Backend().Name()))
		fmt.Fprintf(w, "%s backend %s: unavailable\n", FailMark, e.Backend().Name())
	default:
		fmt.Fprintf(w, "%s backend %s: unavailable (operations report it per call)\n", PassMark, e.Backend().Name())
	}

	// ---- entry points -----------------------------------------------------
	names := e.Registry().Names()
	fmt.Fprintf(w, "%s entry points: %s\n", PassMark, strings.Join(names, ", "))

	// ---- cpu features -----------------------------------------------------
	if cfg.CPUFeatures != nil {
		feats := cfg.CPUFeatures()
		if len(feats) == 0 {
			fmt.Fprintf(w, "%s cpu features: none detected\n", PassMark)
		} else {
			fmt.Fprintf(w, "%s cpu features: %s\n", PassMark, strings.Join(feats, " "))
		}
	}

	// ---- kernel files -----------------------------------------------------
	for _, path := range cfg.KernelFiles {
		if err := checkKernelFile(path); err != nil {
			res.fail(fmt.Sprintf("kernel file %q: %v", path, err))
			fmt.Fprintf(w, "%s kernel file %s: %v\n", FailMark, path, err)
		} else {
			fmt.Fprintf(w, "%s kernel file: %s\n", PassMark, path)
		}
	}

	// ---- smoke ------------------------------------------------------------
	switch {
	case cfg.SkipSmoke:
		fmt.Fprintf(w, "%s smoke test: skipped\n", PassMark)
	case !e.Available():
		fmt.Fprintf(w, "%s smoke test: skipped (no backend)\n", PassMark)
	default:
		if err := smoke(ctx, e); err != nil {
			res.fail(fmt.Sprintf("smoke test: %v", err))
			fmt.Fprintf(w, "%s smoke test: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s smoke test: sum, max and hash kernels agree with reference\n", PassMark)
		}
	}

	return res
}

func checkKernelFile(path string) error {
	// #nosec G304 -- doctor reads operator-supplied kernel document paths.
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	doc := kernels.Document{Name: path, Source: string(src)}
	if strings.HasSuffix(path, kernels.HashDocument().Name) {
		_, err = kernels.ValidateHashDocument(doc)
	} else {
		_, err = kernels.ValidatePoolDocument(doc)
	}

	return err
}

// smoke runs the canonical 19x5 batch through sum and max pooling and hashes
// one key under two group sizes.
func smoke(ctx context.Context, e *ragged.Engine) error {
	lengths := []int32{5, 5, 3, 6}
	x := ragged.NewMatrix[float32](19, 5)
	for i := range x.Data {
		x.Data[i] = 1
	}
	x.Data[4*5] = 2

	pooled, err := e.SumPool(ctx, x, lengths)
	if err != nil {
		return err
	}

	var total float32
	for _, v := range pooled.Data {
		total += v
	}
	if total != 96 {
		return fmt.Errorf("sum_pool total = %v, want 96", total)
	}

	_, which, err := e.MaxPool(ctx, x, lengths)
	if err != nil {
		return err
	}
	if which.Data[0] != 4 {
		return fmt.Errorf("max_pool index = %d, want 4", which.Data[0])
	}

	small, err := e.WithGroupSize(1)
	if err != nil {
		return err
	}

	keys := []uint64{0x5eed, 1, 0x5eed}
	a, err := e.Hash(ctx, keys, 7)
	if err != nil {
		return err
	}
	b, err := small.Hash(ctx, keys, 7)
	if err != nil {
		return err
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return fmt.Errorf("hash differs between group sizes at word %d", i)
		}
	}
	if [4]uint32(a.Row(0)) != [4]uint32(a.Row(2)) {
		return fmt.Errorf("hash differs between batch positions")
	}

	return nil
}
