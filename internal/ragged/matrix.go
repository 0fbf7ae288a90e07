// Package ragged implements pooling over ragged batches and batched key
// hashing on top of a compute backend.
//
// A ragged batch is a flat (T, O) matrix plus B lengths. Item b owns the
// Lengths[b] consecutive rows that follow the rows of items 0..b-1.
package ragged

import "fmt"

// Matrix is a dense row-major matrix.
type Matrix[T float32 | int32 | uint32] struct {
	Rows int
	Cols int
	Data []T
}

// NewMatrix returns a zeroed rows x cols matrix.
func NewMatrix[T float32 | int32 | uint32](rows, cols int) Matrix[T] {
	return Matrix[T]{Rows: rows, Cols: cols, Data: make([]T, rows*cols)}
}

// Row returns row i as a slice sharing m's storage.
func (m Matrix[T]) Row(i int) []T {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

func (m Matrix[T]) wellFormed() bool {
	return m.Rows >= 0 && m.Cols >= 0 && len(m.Data) == m.Rows*m.Cols
}

func (m Matrix[T]) String() string {
	return fmt.Sprintf("Matrix(%dx%d)", m.Rows, m.Cols)
}
