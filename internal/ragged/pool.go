package ragged

import (
	"context"

	"github.com/example/go-raggedpool/internal/kernels"
	"github.com/example/go-raggedpool/internal/launch"
)

// SumPool returns the (B, O) per-item sums of the rows of x.
func (e *Engine) SumPool(ctx context.Context, x Matrix[float32], lengths []int32) (Matrix[float32], error) {
	if !e.Available() {
		return Matrix[float32]{}, ErrBackendUnavailable
	}
	if err := checkRagged("sum_pool", x, lengths); err != nil {
		return Matrix[float32]{}, err
	}

	out := NewMatrix[float32](len(lengths), x.Cols)
	if err := e.sumPool(ctx, launch.OpSumPool, out, x, lengths); err != nil {
		return Matrix[float32]{}, err
	}

	return out, nil
}

// SumPoolInto writes the per-item sums of x into out, which must be (B, O).
// Previous contents of out are discarded.
func (e *Engine) SumPoolInto(ctx context.Context, out, x Matrix[float32], lengths []int32) error {
	if !e.Available() {
		return ErrUnsupported
	}
	if err := checkRagged("sum_pool", x, lengths); err != nil {
		return err
	}
	if err := checkShape("sum_pool", "output", out, len(lengths), x.Cols); err != nil {
		return err
	}

	clear(out.Data)

	return e.sumPool(ctx, launch.OpSumPool, out, x, lengths)
}

func (e *Engine) sumPool(ctx context.Context, op launch.Op, out, x Matrix[float32], lengths []int32) error {
	return e.run(ctx, op, kernels.SumPool, len(lengths), &kernels.Args{
		Out:     out.Data,
		X:       x.Data,
		Lengths: lengths,
		B:       len(lengths),
		T:       x.Rows,
		O:       x.Cols,
	})
}

// MeanPool returns the (B, O) per-item means of the rows of x. An item with
// no rows divides zero by zero and yields NaN.
func (e *Engine) MeanPool(ctx context.Context, x Matrix[float32], lengths []int32) (Matrix[float32], error) {
	if !e.Available() {
		return Matrix[float32]{}, ErrBackendUnavailable
	}
	if err := checkRagged("mean_pool", x, lengths); err != nil {
		return Matrix[float32]{}, err
	}

	out := NewMatrix[float32](len(lengths), x.Cols)
	if err := e.meanPool(ctx, out, x, lengths); err != nil {
		return Matrix[float32]{}, err
	}

	return out, nil
}

// MeanPoolInto writes the per-item means of x into out, which must be (B, O).
func (e *Engine) MeanPoolInto(ctx context.Context, out, x Matrix[float32], lengths []int32) error {
	if !e.Available() {
		return ErrUnsupported
	}
	if err := checkRagged("mean_pool", x, lengths); err != nil {
		return err
	}
	if err := checkShape("mean_pool", "output", out, len(lengths), x.Cols); err != nil {
		return err
	}

	clear(out.Data)

	return e.meanPool(ctx, out, x, lengths)
}

func (e *Engine) meanPool(ctx context.Context, out, x Matrix[float32], lengths []int32) error {
	if err := e.sumPool(ctx, launch.OpMeanPool, out, x, lengths); err != nil {
		return err
	}

	for b, n := range lengths {
		divide(out.Row(b), float32(n))
	}

	return nil
}

// MaxPool returns the (B, O) per-item column maxima of x and, for each, the
// absolute row of x it came from. Ties go to the lowest row. Items with no
// rows get 0 and index -1.
func (e *Engine) MaxPool(ctx context.Context, x Matrix[float32], lengths []int32) (Matrix[float32], Matrix[int32], error) {
	if !e.Available() {
		return Matrix[float32]{}, Matrix[int32]{}, ErrBackendUnavailable
	}
	if err := checkRagged("max_pool", x, lengths); err != nil {
		return Matrix[float32]{}, Matrix[int32]{}, err
	}

	maxes := NewMatrix[float32](len(lengths), x.Cols)
	which := NewMatrix[int32](len(lengths), x.Cols)
	if err := e.maxPool(ctx, maxes, which, x, lengths); err != nil {
		return Matrix[float32]{}, Matrix[int32]{}, err
	}

	return maxes, which, nil
}

// MaxPoolInto writes the per-item maxima into maxes and their rows into
// which. Both must be (B, O).
func (e *Engine) MaxPoolInto(ctx context.Context, maxes Matrix[float32], which Matrix[int32], x Matrix[float32], lengths []int32) error {
	if !e.Available() {
		return ErrUnsupported
	}
	if err := checkRagged("max_pool", x, lengths); err != nil {
		return err
	}
	if err := checkShape("max_pool", "maxes", maxes, len(lengths), x.Cols); err != nil {
		return err
	}
	if err := checkShape("max_pool", "index map", which, len(lengths), x.Cols); err != nil {
		return err
	}

	return e.maxPool(ctx, maxes, which, x, lengths)
}

func (e *Engine) maxPool(ctx context.Context, maxes Matrix[float32], which Matrix[int32], x Matrix[float32], lengths []int32) error {
	return e.run(ctx, launch.OpMaxPool, kernels.MaxPool, len(lengths), &kernels.Args{
		Out:     maxes.Data,
		Which:   which.Data,
		X:       x.Data,
		Lengths: lengths,
		B:       len(lengths),
		T:       x.Rows,
		O:       x.Cols,
	})
}

// BackpropSumPool returns the (T, O) gradient of SumPool: every row owned by
// item b receives dPooled[b].
func (e *Engine) BackpropSumPool(ctx context.Context, dPooled Matrix[float32], lengths []int32) (Matrix[float32], error) {
	if !e.Available() {
		return Matrix[float32]{}, ErrBackendUnavailable
	}
	t, err := checkPooled("backprop_sum_pool", dPooled, lengths)
	if err != nil {
		return Matrix[float32]{}, err
	}

	dx := NewMatrix[float32](t, dPooled.Cols)
	if err := e.backpropSumPool(ctx, launch.OpBackpropSumPool, dx, dPooled, lengths); err != nil {
		return Matrix[float32]{}, err
	}

	return dx, nil
}

// BackpropSumPoolInto writes the gradient of SumPool into dx, which must be
// (sum(lengths), O).
func (e *Engine) BackpropSumPoolInto(ctx context.Context, dx, dPooled Matrix[float32], lengths []int32) error {
	if !e.Available() {
		return ErrUnsupported
	}
	t, err := checkPooled("backprop_sum_pool", dPooled, lengths)
	if err != nil {
		return err
	}
	if err := checkShape("backprop_sum_pool", "output", dx, t, dPooled.Cols); err != nil {
		return err
	}

	return e.backpropSumPool(ctx, launch.OpBackpropSumPool, dx, dPooled, lengths)
}

func (e *Engine) backpropSumPool(ctx context.Context, op launch.Op, dx, dPooled Matrix[float32], lengths []int32) error {
	return e.run(ctx, op, kernels.BackpropSumPool, dx.Rows, &kernels.Args{
		Out:     dx.Data,
		X:       dPooled.Data,
		Lengths: lengths,
		B:       len(lengths),
		T:       dx.Rows,
		O:       dx.Cols,
	})
}

// BackpropMeanPool returns the (T, O) gradient of MeanPool: every row owned
// by item b receives dMean[b] / lengths[b]. Items with no rows own no
// gradient rows, so nothing is divided by zero and, unlike MeanPool, the
// result never holds NaN or Inf for a zero length.
func (e *Engine) BackpropMeanPool(ctx context.Context, dMean Matrix[float32], lengths []int32) (Matrix[float32], error) {
	if !e.Available() {
		return Matrix[float32]{}, ErrBackendUnavailable
	}
	t, err := checkPooled("backprop_mean_pool", dMean, lengths)
	if err != nil {
		return Matrix[float32]{}, err
	}

	dx := NewMatrix[float32](t, dMean.Cols)
	if err := e.backpropMeanPool(ctx, dx, dMean, lengths); err != nil {
		return Matrix[float32]{}, err
	}

	return dx, nil
}

// BackpropMeanPoolInto writes the gradient of MeanPool into dx, which must
// be (sum(lengths), O).
func (e *Engine) BackpropMeanPoolInto(ctx context.Context, dx, dMean Matrix[float32], lengths []int32) error {
	if !e.Available() {
		return ErrUnsupported
	}
	t, err := checkPooled("backprop_mean_pool", dMean, lengths)
	if err != nil {
		return err
	}
	if err := checkShape("backprop_mean_pool", "output", dx, t, dMean.Cols); err != nil {
		return err
	}

	return e.backpropMeanPool(ctx, dx, dMean, lengths)
}

func (e *Engine) backpropMeanPool(ctx context.Context, dx, dMean Matrix[float32], lengths []int32) error {
	if err := e.backpropSumPool(ctx, launch.OpBackpropMeanPool, dx, dMean, lengths); err != nil {
		return err
	}

	t := 0
	for _, n := range lengths {
		for range n {
			divide(dx.Row(t), float32(n))
			t++
		}
	}

	return nil
}

// BackpropMaxPool returns the (T, O) gradient of MaxPool: dMaxes[b][j] is
// added at row which[b][j], feature j. Entries of -1 are skipped.
func (e *Engine) BackpropMaxPool(ctx context.Context, dMaxes Matrix[float32], which Matrix[int32], lengths []int32) (Matrix[float32], error) {
	if !e.Available() {
		return Matrix[float32]{}, ErrBackendUnavailable
	}
	t, err := checkMaxGrad(dMaxes, which, lengths)
	if err != nil {
		return Matrix[float32]{}, err
	}

	dx := NewMatrix[float32](t, dMaxes.Cols)
	if err := e.backpropMaxPool(ctx, dx, dMaxes, which, lengths); err != nil {
		return Matrix[float32]{}, err
	}

	return dx, nil
}

// BackpropMaxPoolInto writes the gradient of MaxPool into dx, which must be
// (sum(lengths), O). Previous contents of dx are discarded.
func (e *Engine) BackpropMaxPoolInto(ctx context.Context, dx, dMaxes Matrix[float32], which Matrix[int32], lengths []int32) error {
	if !e.Available() {
		return ErrUnsupported
	}
	t, err := checkMaxGrad(dMaxes, which, lengths)
	if err != nil {
		return err
	}
	if err := checkShape("backprop_max_pool", "output", dx, t, dMaxes.Cols); err != nil {
		return err
	}

	clear(dx.Data)

	return e.backpropMaxPool(ctx, dx, dMaxes, which, lengths)
}

func (e *Engine) backpropMaxPool(ctx context.Context, dx, dMaxes Matrix[float32], which Matrix[int32], lengths []int32) error {
	return e.run(ctx, launch.OpBackpropMaxPool, kernels.BackpropMaxPool, dx.Rows, &kernels.Args{
		Out:     dx.Data,
		Which:   which.Data,
		X:       dMaxes.Data,
		Lengths: lengths,
		B:       len(lengths),
		T:       dx.Rows,
		O:       dx.Cols,
	})
}

// checkPooled validates a (B, O) gradient and returns T = sum(lengths).
func checkPooled(op string, d Matrix[float32], lengths []int32) (int, error) {
	if err := checkMatrix(op, "gradient", d); err != nil {
		return 0, err
	}
	if d.Rows != len(lengths) {
		return 0, violation(op, "gradient has %d rows for %d lengths", d.Rows, len(lengths))
	}

	return checkLengths(op, lengths)
}

func checkMaxGrad(dMaxes Matrix[float32], which Matrix[int32], lengths []int32) (int, error) {
	const op = "backprop_max_pool"

	t, err := checkPooled(op, dMaxes, lengths)
	if err != nil {
		return 0, err
	}
	if err := checkShape(op, "index map", which, dMaxes.Rows, dMaxes.Cols); err != nil {
		return 0, err
	}
	if err := checkWhich(op, which, lengths); err != nil {
		return 0, err
	}

	return t, nil
}

// divide scales row by 1/n using IEEE division, so n == 0 gives NaN or Inf.
func divide(row []float32, n float32) {
	for j := range row {
		row[j] /= n
	}
}
