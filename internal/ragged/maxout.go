package ragged

import (
	"context"

	"github.com/example/go-raggedpool/internal/kernels"
	"github.com/example/go-raggedpool/internal/launch"
)

// Maxout reduces each group of pieces consecutive candidates to its maximum.
// cands is (B, I*pieces); best and which are (B, I), which holding the
// piece index of the first maximum.
func (e *Engine) Maxout(ctx context.Context, cands Matrix[float32], pieces int) (Matrix[float32], Matrix[int32], error) {
	if !e.Available() {
		return Matrix[float32]{}, Matrix[int32]{}, ErrBackendUnavailable
	}
	units, err := checkMaxout(cands, pieces)
	if err != nil {
		return Matrix[float32]{}, Matrix[int32]{}, err
	}

	best := NewMatrix[float32](cands.Rows, units)
	which := NewMatrix[int32](cands.Rows, units)
	if err := e.maxout(ctx, best, which, cands, pieces); err != nil {
		return Matrix[float32]{}, Matrix[int32]{}, err
	}

	return best, which, nil
}

// MaxoutInto is Maxout writing into caller-supplied (B, I) buffers.
func (e *Engine) MaxoutInto(ctx context.Context, best Matrix[float32], which Matrix[int32], cands Matrix[float32], pieces int) error {
	if !e.Available() {
		return ErrUnsupported
	}
	units, err := checkMaxout(cands, pieces)
	if err != nil {
		return err
	}
	if err := checkShape("maxout", "best", best, cands.Rows, units); err != nil {
		return err
	}
	if err := checkShape("maxout", "index map", which, cands.Rows, units); err != nil {
		return err
	}

	return e.maxout(ctx, best, which, cands, pieces)
}

func (e *Engine) maxout(ctx context.Context, best Matrix[float32], which Matrix[int32], cands Matrix[float32], pieces int) error {
	return e.run(ctx, launch.OpMaxout, kernels.Maxout, cands.Rows, &kernels.Args{
		Out:   best.Data,
		Which: which.Data,
		X:     cands.Data,
		B:     cands.Rows,
		O:     best.Cols,
		P:     pieces,
	})
}

func checkMaxout(cands Matrix[float32], pieces int) (int, error) {
	const op = "maxout"

	if pieces < 1 {
		return 0, violation(op, "pieces = %d, want >= 1", pieces)
	}
	if err := checkMatrix(op, "candidates", cands); err != nil {
		return 0, err
	}
	if cands.Cols%pieces != 0 {
		return 0, violation(op, "%d candidate columns do not split into pieces of %d", cands.Cols, pieces)
	}

	return cands.Cols / pieces, nil
}
