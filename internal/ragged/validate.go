package ragged

import "github.com/example/go-raggedpool/internal/kernels"

// checkLengths verifies that lengths are non-negative and returns their sum.
func checkLengths(op string, lengths []int32) (int, error) {
	total := 0
	for i, n := range lengths {
		if n < 0 {
			return 0, violation(op, "lengths[%d] = %d is negative", i, n)
		}
		total += int(n)
	}

	return total, nil
}

func checkMatrix[T float32 | int32 | uint32](op, name string, m Matrix[T]) error {
	if !m.wellFormed() {
		return violation(op, "%s is %dx%d but holds %d values", name, m.Rows, m.Cols, len(m.Data))
	}

	return nil
}

func checkShape[T float32 | int32 | uint32](op, name string, m Matrix[T], rows, cols int) error {
	if err := checkMatrix(op, name, m); err != nil {
		return err
	}
	if m.Rows != rows || m.Cols != cols {
		return violation(op, "%s is %dx%d, want %dx%d", name, m.Rows, m.Cols, rows, cols)
	}

	return nil
}

// checkRagged validates a flat (T, O) batch against its lengths.
func checkRagged(op string, x Matrix[float32], lengths []int32) error {
	if err := checkMatrix(op, "input", x); err != nil {
		return err
	}

	total, err := checkLengths(op, lengths)
	if err != nil {
		return err
	}
	if total != x.Rows {
		return violation(op, "lengths sum to %d but input has %d rows", total, x.Rows)
	}

	return nil
}

// checkWhich verifies that every entry of a max index map is -1 or a row
// owned by the entry's item.
func checkWhich(op string, which Matrix[int32], lengths []int32) error {
	off := kernels.Offsets(lengths)
	for b := range which.Rows {
		for j, row := range which.Row(b) {
			if row == -1 {
				continue
			}
			if int(row) < off[b] || int(row) >= off[b+1] {
				return violation(op, "index map [%d][%d] = %d is outside item rows [%d, %d)", b, j, row, off[b], off[b+1])
			}
		}
	}

	return nil
}
