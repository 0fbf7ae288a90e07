package ragged_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/go-raggedpool/internal/ragged"
	"github.com/example/go-raggedpool/internal/testutil"
)

func TestContractViolations(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	x := testutil.Fill(19, 5, 1)
	pooled := testutil.Fill(4, 5, 1)

	badWhich := ragged.NewMatrix[int32](4, 5)
	// Row 7 belongs to item 1, not item 0.
	badWhich.Data[0] = 7

	tests := []struct {
		name string
		call func() error
	}{
		{"negative length", func() error {
			_, err := e.SumPool(ctx, x, []int32{5, -1, 15})
			return err
		}},
		{"lengths do not sum to rows", func() error {
			_, err := e.MeanPool(ctx, x, []int32{5, 5, 3})
			return err
		}},
		{"data length mismatch", func() error {
			_, _, err := e.MaxPool(ctx, ragged.Matrix[float32]{Rows: 19, Cols: 5, Data: x.Data[:90]}, lengths19)
			return err
		}},
		{"output wrong shape", func() error {
			return e.SumPoolInto(ctx, testutil.Fill(4, 4, 0), x, lengths19)
		}},
		{"max index map wrong shape", func() error {
			return e.MaxPoolInto(ctx, pooled, ragged.NewMatrix[int32](3, 5), x, lengths19)
		}},
		{"gradient rows differ from lengths", func() error {
			_, err := e.BackpropSumPool(ctx, testutil.Fill(3, 5, 1), lengths19)
			return err
		}},
		{"backward output wrong rows", func() error {
			return e.BackpropMeanPoolInto(ctx, testutil.Fill(18, 5, 0), pooled, lengths19)
		}},
		{"index outside owning item", func() error {
			_, err := e.BackpropMaxPool(ctx, pooled, badWhich, lengths19)
			return err
		}},
		{"index map width mismatch", func() error {
			_, err := e.BackpropMaxPool(ctx, pooled, ragged.NewMatrix[int32](4, 4), lengths19)
			return err
		}},
		{"hash output wrong width", func() error {
			return e.HashInto(ctx, ragged.NewMatrix[uint32](2, 3), []uint64{1, 2}, 0)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()

			var cv *ragged.ContractViolationError
			if !errors.As(err, &cv) {
				t.Fatalf("err = %v; want ContractViolationError", err)
			}
			if cv.Op == "" || cv.Reason == "" {
				t.Errorf("incomplete error: %+v", cv)
			}
		})
	}
}

func TestContractViolationLeavesOutputUntouched(t *testing.T) {
	e := newEngine(t)
	out := testutil.Fill(4, 5, 3)

	err := e.SumPoolInto(context.Background(), out, testutil.Fill(19, 5, 1), []int32{1, 2, 3, 4})
	if err == nil {
		t.Fatal("SumPoolInto = nil error; want contract violation")
	}

	for _, v := range out.Data {
		if v != 3 {
			t.Fatal("output modified despite contract violation")
		}
	}
}
