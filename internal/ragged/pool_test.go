package ragged_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/example/go-raggedpool/internal/backend/cpu"
	"github.com/example/go-raggedpool/internal/launch"
	"github.com/example/go-raggedpool/internal/ragged"
	"github.com/example/go-raggedpool/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, opts ...ragged.Option) *ragged.Engine {
	t.Helper()

	opts = append([]ragged.Option{ragged.WithLogger(quietLogger())}, opts...)
	e, err := ragged.New(cpu.New(4), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })

	return e
}

var lengths19 = []int32{5, 5, 3, 6}

func TestSumPoolAllOnes(t *testing.T) {
	e := newEngine(t)
	x := testutil.Fill(19, 5, 1)

	out, err := e.SumPool(context.Background(), x, lengths19)
	if err != nil {
		t.Fatalf("SumPool: %v", err)
	}

	if out.Rows != 4 || out.Cols != 5 {
		t.Fatalf("shape = %dx%d; want 4x5", out.Rows, out.Cols)
	}

	var total float32
	for b, n := range lengths19 {
		for j, v := range out.Row(b) {
			if v != float32(n) {
				t.Errorf("out[%d][%d] = %v; want %d", b, j, v, n)
			}
			total += v
		}
	}
	if total != 95 {
		t.Errorf("sum = %v; want 95", total)
	}
}

func TestSumPoolConservesTotal(t *testing.T) {
	e := newEngine(t)
	rng := rand.New(rand.NewPCG(7, 11))
	batch := testutil.RandomBatch(rng, 64, 9, 6)

	out, err := e.SumPool(context.Background(), batch.X, batch.Lengths)
	if err != nil {
		t.Fatalf("SumPool: %v", err)
	}

	var want, got float64
	for _, v := range batch.X.Data {
		want += float64(v)
	}
	for _, v := range out.Data {
		got += float64(v)
	}
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("pooled sum = %v; input sum = %v", got, want)
	}

	testutil.AssertClose(t, out.Data, testutil.RefSumPool(batch.X, batch.Lengths).Data, 1e-5)
}

func TestSumPoolIntoOverwrites(t *testing.T) {
	e := newEngine(t)
	x := testutil.Fill(19, 5, 1)
	out := testutil.Fill(4, 5, 100)

	if err := e.SumPoolInto(context.Background(), out, x, lengths19); err != nil {
		t.Fatalf("SumPoolInto: %v", err)
	}

	testutil.AssertEqual(t, out.Data, testutil.RefSumPool(x, lengths19).Data)
}

func TestMaxPoolInjectedMaxima(t *testing.T) {
	e := newEngine(t)
	rng := rand.New(rand.NewPCG(1, 2))
	x := testutil.Uniform(rng, 19, 5, -1, 1)
	x.Data[4*5+0] = 1
	x.Data[0*5+1] = 2
	x.Data[1*5+3] = 3

	maxes, which, err := e.MaxPool(context.Background(), x, lengths19)
	if err != nil {
		t.Fatalf("MaxPool: %v", err)
	}

	wantMax, wantWhich := testutil.RefMaxPool(x, lengths19)
	testutil.AssertEqual(t, maxes.Data, wantMax.Data)
	testutil.AssertEqual(t, which.Data, wantWhich.Data)

	for _, c := range []struct {
		col  int
		row  int32
		want float32
	}{
		{0, 4, 1},
		{1, 0, 2},
		{3, 1, 3},
	} {
		if got := maxes.Row(0)[c.col]; got != c.want {
			t.Errorf("max[0][%d] = %v; want %v", c.col, got, c.want)
		}
		if got := which.Row(0)[c.col]; got != c.row {
			t.Errorf("which[0][%d] = %d; want %d", c.col, got, c.row)
		}
	}
}

func TestMaxPoolTiesAndEmptyItems(t *testing.T) {
	e := newEngine(t)
	x := ragged.Matrix[float32]{Rows: 4, Cols: 2, Data: []float32{
		5, 1,
		5, 2,
		2, 2,
		7, 7,
	}}
	lengths := []int32{3, 0, 1}

	maxes, which, err := e.MaxPool(context.Background(), x, lengths)
	if err != nil {
		t.Fatalf("MaxPool: %v", err)
	}

	testutil.AssertEqual(t, maxes.Data, []float32{5, 2, 0, 0, 7, 7})
	testutil.AssertEqual(t, which.Data, []int32{0, 1, -1, -1, 3, 3})
}

func TestMaxPoolRoundTrip(t *testing.T) {
	e := newEngine(t)
	rng := rand.New(rand.NewPCG(3, 4))
	batch := testutil.RandomBatch(rng, 40, 7, 4)

	_, which, err := e.MaxPool(context.Background(), batch.X, batch.Lengths)
	if err != nil {
		t.Fatalf("MaxPool: %v", err)
	}

	dMaxes := testutil.Uniform(rng, len(batch.Lengths), 4, 0.5, 1.5)
	dx, err := e.BackpropMaxPool(context.Background(), dMaxes, which, batch.Lengths)
	if err != nil {
		t.Fatalf("BackpropMaxPool: %v", err)
	}

	want := make([]float32, len(dx.Data))
	for b := range which.Rows {
		for j, row := range which.Row(b) {
			if row >= 0 {
				want[int(row)*dx.Cols+j] += dMaxes.Row(b)[j]
			}
		}
	}
	testutil.AssertEqual(t, dx.Data, want)

	// Each item's column sums reproduce dMaxes, since every feature routes
	// its gradient to exactly one owned row.
	start := 0
	for b, n := range batch.Lengths {
		for j := range dx.Cols {
			var sum float32
			for r := start; r < start+int(n); r++ {
				sum += dx.Data[r*dx.Cols+j]
			}
			if n > 0 && sum != dMaxes.Row(b)[j] {
				t.Errorf("item %d feature %d: sum = %v; want %v", b, j, sum, dMaxes.Row(b)[j])
			}
		}
		start += int(n)
	}
}

func TestBackpropMaxPoolIntoOverwrites(t *testing.T) {
	e := newEngine(t)
	which := ragged.Matrix[int32]{Rows: 2, Cols: 1, Data: []int32{1, -1}}
	dMaxes := ragged.Matrix[float32]{Rows: 2, Cols: 1, Data: []float32{4, 9}}
	dx := testutil.Fill(3, 1, 42)

	if err := e.BackpropMaxPoolInto(context.Background(), dx, dMaxes, which, []int32{3, 0}); err != nil {
		t.Fatalf("BackpropMaxPoolInto: %v", err)
	}

	testutil.AssertEqual(t, dx.Data, []float32{0, 4, 0})
}

func TestBackpropSumPoolPerItem(t *testing.T) {
	e := newEngine(t)
	rng := rand.New(rand.NewPCG(5, 6))
	lengths, _ := testutil.RandomLengths(rng, 30, 6)
	dPooled := testutil.Uniform(rng, len(lengths), 3, -2, 2)

	dx, err := e.BackpropSumPool(context.Background(), dPooled, lengths)
	if err != nil {
		t.Fatalf("BackpropSumPool: %v", err)
	}

	start := 0
	for b, n := range lengths {
		for r := start; r < start+int(n); r++ {
			testutil.AssertEqual(t, dx.Row(r), dPooled.Row(b))
		}

		summed := testutil.RefSumPool(
			ragged.Matrix[float32]{Rows: int(n), Cols: 3, Data: dx.Data[start*3 : (start+int(n))*3]},
			[]int32{n},
		)
		want := make([]float32, 3)
		for j, v := range dPooled.Row(b) {
			want[j] = v * float32(n)
		}
		testutil.AssertClose(t, summed.Data, want, 1e-5)

		start += int(n)
	}
}

func TestMeanPool(t *testing.T) {
	e := newEngine(t)
	x := ragged.Matrix[float32]{Rows: 3, Cols: 2, Data: []float32{
		1, 2,
		3, 4,
		10, 20,
	}}

	out, err := e.MeanPool(context.Background(), x, []int32{2, 1})
	if err != nil {
		t.Fatalf("MeanPool: %v", err)
	}

	testutil.AssertEqual(t, out.Data, []float32{2, 3, 10, 20})
}

func TestMeanPoolZeroLengthIsNonFinite(t *testing.T) {
	e := newEngine(t)
	x := testutil.Fill(4, 3, 2)
	lengths := []int32{2, 0, 2}

	out, err := e.MeanPool(context.Background(), x, lengths)
	if err != nil {
		t.Fatalf("MeanPool: %v", err)
	}

	for j, v := range out.Row(1) {
		f := float64(v)
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			t.Errorf("out[1][%d] = %v; want NaN or Inf", j, v)
		}
	}
	for _, b := range []int{0, 2} {
		testutil.AssertEqual(t, out.Row(b), []float32{2, 2, 2})
	}
}

func TestBackpropMeanPool(t *testing.T) {
	e := newEngine(t)
	dMean := ragged.Matrix[float32]{Rows: 3, Cols: 2, Data: []float32{
		4, 8,
		1, 1,
		3, 6,
	}}
	lengths := []int32{2, 0, 3}

	dx, err := e.BackpropMeanPool(context.Background(), dMean, lengths)
	if err != nil {
		t.Fatalf("BackpropMeanPool: %v", err)
	}

	// The empty item owns no rows, so its gradient appears nowhere.
	testutil.AssertEqual(t, dx.Data, []float32{
		2, 4,
		2, 4,
		1, 2,
		1, 2,
		1, 2,
	})
	for i, v := range dx.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Errorf("dx[%d] = %v; want finite", i, v)
		}
	}
}

func TestMeanPoolIntoMatchesAllocating(t *testing.T) {
	e := newEngine(t)
	rng := rand.New(rand.NewPCG(9, 9))
	lengths, _ := testutil.RandomLengths(rng, 20, 5)
	lengths = nonZero(lengths)
	x := testutil.Uniform(rng, sum(lengths), 3, -1, 1)

	want, err := e.MeanPool(context.Background(), x, lengths)
	if err != nil {
		t.Fatalf("MeanPool: %v", err)
	}

	got := testutil.Fill(len(lengths), 3, -7)
	if err := e.MeanPoolInto(context.Background(), got, x, lengths); err != nil {
		t.Fatalf("MeanPoolInto: %v", err)
	}

	testutil.AssertEqual(t, got.Data, want.Data)
}

// Items beyond Groups*GroupSize lanes are still pooled.
func TestCoverageBeyondLaunchCapacity(t *testing.T) {
	rng := rand.New(rand.NewPCG(12, 34))
	batch := testutil.RandomBatch(rng, 300, 4, 2)
	want := testutil.RefSumPool(batch.X, batch.Lengths)
	wantMax, wantWhich := testutil.RefMaxPool(batch.X, batch.Lengths)

	for _, policy := range []launch.Policy{launch.PolicyUnified, launch.PolicyLegacy} {
		for _, gs := range []int{7, 128, 1024} {
			e := newEngine(t, ragged.WithGroupSize(gs), ragged.WithPolicy(policy))

			out, err := e.SumPool(context.Background(), batch.X, batch.Lengths)
			if err != nil {
				t.Fatalf("%s/%d SumPool: %v", policy, gs, err)
			}
			testutil.AssertClose(t, out.Data, want.Data, 1e-5)

			maxes, which, err := e.MaxPool(context.Background(), batch.X, batch.Lengths)
			if err != nil {
				t.Fatalf("%s/%d MaxPool: %v", policy, gs, err)
			}
			testutil.AssertEqual(t, maxes.Data, wantMax.Data)
			testutil.AssertEqual(t, which.Data, wantWhich.Data)
		}
	}
}

func TestEmptyBatch(t *testing.T) {
	e := newEngine(t)
	x := ragged.NewMatrix[float32](0, 3)

	out, err := e.SumPool(context.Background(), x, nil)
	if err != nil {
		t.Fatalf("SumPool: %v", err)
	}
	if out.Rows != 0 || out.Cols != 3 {
		t.Errorf("shape = %dx%d; want 0x3", out.Rows, out.Cols)
	}

	dx, err := e.BackpropSumPool(context.Background(), ragged.NewMatrix[float32](2, 3), []int32{0, 0})
	if err != nil {
		t.Fatalf("BackpropSumPool: %v", err)
	}
	if dx.Rows != 0 {
		t.Errorf("rows = %d; want 0", dx.Rows)
	}
}

func TestCancelledContext(t *testing.T) {
	e := newEngine(t, ragged.WithGroupSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.SumPool(ctx, testutil.Fill(19, 5, 1), lengths19)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
}

func sum(lengths []int32) int {
	total := 0
	for _, n := range lengths {
		total += int(n)
	}

	return total
}

func nonZero(lengths []int32) []int32 {
	out := make([]int32, len(lengths))
	for i, n := range lengths {
		out[i] = max(n, 1)
	}

	return out
}
