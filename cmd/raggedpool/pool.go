package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/go-raggedpool/internal/ragged"
)

// poolRequest is the JSON input of the pool command. X holds the flat batch
// for forward ops, the pooled gradient for backward ops and the candidates
// for maxout.
type poolRequest struct {
	X       [][]float32 `json:"x"`
	Lengths []int32     `json:"lengths"`
	Which   [][]int32   `json:"which,omitempty"`
	Pieces  int         `json:"pieces,omitempty"`
}

type poolResponse struct {
	Op    string      `json:"op"`
	Out   [][]float32 `json:"out"`
	Which [][]int32   `json:"which,omitempty"`
}

var poolOps = []string{"sum", "mean", "max", "backprop-sum", "backprop-mean", "backprop-max", "maxout"}

func newPoolCmd() *cobra.Command {
	var (
		op     string
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Run a pooling operation on a JSON ragged batch",
		Long: `Reads {"x": [[...]], "lengths": [...]} from --input (or stdin) and writes
the result as JSON. backprop-max also needs "which"; maxout needs "pieces".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				// #nosec G304 -- CLI reads an operator-supplied input path.
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}

			var req poolRequest
			if err := json.NewDecoder(in).Decode(&req); err != nil {
				return fmt.Errorf("decode input: %w", err)
			}

			e, _, err := openEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			resp, err := runPool(cmd, e, op, req)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return encodeResponse(cmd.OutOrStdout(), resp)
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}

			return writeResponse(f, resp)
		},
	}

	cmd.Flags().StringVar(&op, "op", "sum", fmt.Sprintf("Operation: %v", poolOps))
	cmd.Flags().StringVar(&input, "input", "-", "JSON input file (- for stdin)")
	cmd.Flags().StringVar(&output, "output", "-", "JSON output file (- for stdout)")

	return cmd
}

func encodeResponse(w io.Writer, resp poolResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// writeResponse encodes resp to w and closes it. A failed close is reported
// when encoding succeeded.
func writeResponse(w io.WriteCloser, resp poolResponse) (err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	return encodeResponse(w, resp)
}

func runPool(cmd *cobra.Command, e *ragged.Engine, op string, req poolRequest) (poolResponse, error) {
	ctx := cmd.Context()
	x, err := fromRows(req.X)
	if err != nil {
		return poolResponse{}, err
	}

	resp := poolResponse{Op: op}
	var (
		out   ragged.Matrix[float32]
		which ragged.Matrix[int32]
	)

	switch op {
	case "sum":
		out, err = e.SumPool(ctx, x, req.Lengths)
	case "mean":
		out, err = e.MeanPool(ctx, x, req.Lengths)
	case "max":
		out, which, err = e.MaxPool(ctx, x, req.Lengths)
		resp.Which = toRows(which)
	case "backprop-sum":
		out, err = e.BackpropSumPool(ctx, x, req.Lengths)
	case "backprop-mean":
		out, err = e.BackpropMeanPool(ctx, x, req.Lengths)
	case "backprop-max":
		which, err = fromRows(req.Which)
		if err == nil {
			out, err = e.BackpropMaxPool(ctx, x, which, req.Lengths)
		}
	case "maxout":
		out, which, err = e.Maxout(ctx, x, req.Pieces)
		resp.Which = toRows(which)
	default:
		return poolResponse{}, fmt.Errorf("unknown op %q (want one of %v)", op, poolOps)
	}
	if err != nil {
		return poolResponse{}, err
	}

	resp.Out = toRows(out)

	return resp, nil
}

func fromRows[T float32 | int32 | uint32](rows [][]T) (ragged.Matrix[T], error) {
	if len(rows) == 0 {
		return ragged.Matrix[T]{}, nil
	}

	cols := len(rows[0])
	m := ragged.NewMatrix[T](len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return ragged.Matrix[T]{}, fmt.Errorf("row %d has %d values, want %d", i, len(r), cols)
		}
		copy(m.Row(i), r)
	}

	return m, nil
}

func toRows[T float32 | int32 | uint32](m ragged.Matrix[T]) [][]T {
	if m.Data == nil {
		return nil
	}

	rows := make([][]T, m.Rows)
	for i := range rows {
		rows[i] = append([]T(nil), m.Row(i)...)
	}

	return rows
}
