package bench

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/example/go-raggedpool/internal/ragged"
)

// Ops lists the operations a workload can exercise.
var Ops = []string{"sum", "mean", "max", "backprop-sum", "backprop-mean", "backprop-max", "maxout", "hash"}

// Workload describes a randomly generated ragged batch and the operation run
// over it.
type Workload struct {
	Op     string
	Batch  int // B, or the key count for hash
	MaxLen int // rows per item are drawn from [1, MaxLen]
	Width  int // O
	Pieces int // maxout pieces
	Seed   uint64
}

// DefaultWorkload is a mid-sized batch.
func DefaultWorkload(op string) Workload {
	return Workload{Op: op, Batch: 1024, MaxLen: 32, Width: 64, Pieces: 3, Seed: 1}
}

type prepared struct {
	run   func(ctx context.Context, e *ragged.Engine) error
	items int
	bytes int64
}

func (w Workload) prepare() (prepared, error) {
	if w.Batch < 0 || w.MaxLen < 1 || w.Width < 1 {
		return prepared{}, fmt.Errorf("bench: invalid workload %+v", w)
	}

	rng := rand.New(rand.NewPCG(w.Seed, w.Seed^0x9e3779b97f4a7c15))

	lengths := make([]int32, w.Batch)
	total := 0
	for i := range lengths {
		n := 1 + rng.IntN(w.MaxLen)
		lengths[i] = int32(n)
		total += n
	}

	x := uniform(rng, total, w.Width)
	pooled := uniform(rng, w.Batch, w.Width)
	inputBytes := int64(4 * (len(x.Data) + len(lengths)))
	pooledBytes := int64(4 * (len(pooled.Data) + len(lengths)))

	switch w.Op {
	case "sum":
		return prepared{items: w.Batch, bytes: inputBytes, run: func(ctx context.Context, e *ragged.Engine) error {
			_, err := e.SumPool(ctx, x, lengths)
			return err
		}}, nil
	case "mean":
		return prepared{items: w.Batch, bytes: inputBytes, run: func(ctx context.Context, e *ragged.Engine) error {
			_, err := e.MeanPool(ctx, x, lengths)
			return err
		}}, nil
	case "max":
		return prepared{items: w.Batch, bytes: inputBytes, run: func(ctx context.Context, e *ragged.Engine) error {
			_, _, err := e.MaxPool(ctx, x, lengths)
			return err
		}}, nil
	case "backprop-sum":
		return prepared{items: total, bytes: pooledBytes, run: func(ctx context.Context, e *ragged.Engine) error {
			_, err := e.BackpropSumPool(ctx, pooled, lengths)
			return err
		}}, nil
	case "backprop-mean":
		return prepared{items: total, bytes: pooledBytes, run: func(ctx context.Context, e *ragged.Engine) error {
			_, err := e.BackpropMeanPool(ctx, pooled, lengths)
			return err
		}}, nil
	case "backprop-max":
		which := maxIndex(rng, lengths, w.Width)
		return prepared{items: total, bytes: pooledBytes + int64(4*len(which.Data)), run: func(ctx context.Context, e *ragged.Engine) error {
			_, err := e.BackpropMaxPool(ctx, pooled, which, lengths)
			return err
		}}, nil
	case "maxout":
		if w.Pieces < 1 {
			return prepared{}, fmt.Errorf("bench: maxout needs pieces >= 1, got %d", w.Pieces)
		}
		cands := uniform(rng, w.Batch, w.Width*w.Pieces)
		return prepared{items: w.Batch, bytes: int64(4 * len(cands.Data)), run: func(ctx context.Context, e *ragged.Engine) error {
			_, _, err := e.Maxout(ctx, cands, w.Pieces)
			return err
		}}, nil
	case "hash":
		keys := make([]uint64, w.Batch)
		for i := range keys {
			keys[i] = rng.Uint64()
		}
		return prepared{items: len(keys), bytes: int64(8 * len(keys)), run: func(ctx context.Context, e *ragged.Engine) error {
			_, err := e.Hash(ctx, keys, w.Seed)
			return err
		}}, nil
	default:
		return prepared{}, fmt.Errorf("bench: unknown op %q (want one of %v)", w.Op, Ops)
	}
}

// Run executes the workload runs times on e. onRun, if set, is called after
// each run.
func Run(ctx context.Context, e *ragged.Engine, w Workload, runs int, onRun func(RunResult)) ([]RunResult, error) {
	if runs < 1 {
		return nil, fmt.Errorf("bench: runs must be >= 1, got %d", runs)
	}

	p, err := w.prepare()
	if err != nil {
		return nil, err
	}

	results := make([]RunResult, 0, runs)
	for i := range runs {
		start := time.Now()
		if err := p.run(ctx, e); err != nil {
			return results, fmt.Errorf("bench: run %d: %w", i+1, err)
		}
		d := time.Since(start)

		r := RunResult{
			Index:      i,
			Cold:       i == 0,
			Duration:   d,
			Items:      p.items,
			Bytes:      p.bytes,
			Throughput: CalcThroughput(p.items, d),
		}
		results = append(results, r)
		if onRun != nil {
			onRun(r)
		}
	}

	return results, nil
}

// Durations extracts the run durations.
func Durations(runs []RunResult) []time.Duration {
	out := make([]time.Duration, len(runs))
	for i, r := range runs {
		out[i] = r.Duration
	}
	return out
}

func uniform(rng *rand.Rand, rows, cols int) ragged.Matrix[float32] {
	m := ragged.NewMatrix[float32](rows, cols)
	for i := range m.Data {
		m.Data[i] = rng.Float32()*2 - 1
	}
	return m
}

// maxIndex returns a valid index map that picks a random owned row per
// feature.
func maxIndex(rng *rand.Rand, lengths []int32, width int) ragged.Matrix[int32] {
	which := ragged.NewMatrix[int32](len(lengths), width)
	start := 0
	for b, n := range lengths {
		for j := range width {
			which.Data[b*width+j] = int32(start + rng.IntN(int(n)))
		}
		start += int(n)
	}
	return which
}
