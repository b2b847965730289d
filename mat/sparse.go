/*package mat contains the linear algebra used by the noise engine: a
coordinate-format sparse matrix and the action of the square root of a
symmetric operator on a vector.
*/
package mat

import (
	"fmt"

	gonum "gonum.org/v1/gonum/mat"
)

// Operator is a square linear operator that can only be applied to vectors.
type Operator interface {
	Dim() int
	// MulVec sets dst = A x. dst and x must not overlap.
	MulVec(dst, x []float64)
}

// Sparse is an n x n matrix stored as (row, column, value) triples. Repeated
// coordinates are summed when the matrix is applied and are never merged, so
// the k-th entry always refers to the k-th call to Append.
type Sparse struct {
	Rows, Cols []int
	Vals []float64
	n int
}

// NewSparse returns an empty n x n matrix with room for capacity entries.
func NewSparse(n, capacity int) *Sparse {
	s := &Sparse{}
	s.Init(n, capacity)
	return s
}

// Init empties the matrix and sets its dimension. Previously allocated
// storage is reused where possible.
func (s *Sparse) Init(n, capacity int) {
	if n < 0 { panic("n must be non-negative.") }
	s.n = n
	if cap(s.Vals) < capacity {
		s.Rows = make([]int, 0, capacity)
		s.Cols = make([]int, 0, capacity)
		s.Vals = make([]float64, 0, capacity)
	} else {
		s.Rows, s.Cols, s.Vals = s.Rows[:0], s.Cols[:0], s.Vals[:0]
	}
}

// Append adds val at (i, j).
func (s *Sparse) Append(i, j int, val float64) {
	if i < 0 || i >= s.n || j < 0 || j >= s.n {
		panic(fmt.Sprintf(
			"Entry (%d, %d) outside of %d x %d matrix.", i, j, s.n, s.n,
		))
	}
	s.Rows = append(s.Rows, i)
	s.Cols = append(s.Cols, j)
	s.Vals = append(s.Vals, val)
}

// Dim returns the number of rows in the matrix.
func (s *Sparse) Dim() int { return s.n }

// Len returns the number of stored entries.
func (s *Sparse) Len() int { return len(s.Vals) }

// MulVec sets dst = S x.
func (s *Sparse) MulVec(dst, x []float64) {
	if len(dst) != s.n {
		panic("len(dst) != s.Dim()")
	} else if len(x) != s.n {
		panic("len(x) != s.Dim()")
	}

	for i := range dst { dst[i] = 0 }
	for k, v := range s.Vals {
		dst[s.Rows[k]] += v * x[s.Cols[k]]
	}
}

// At returns the sum of all entries stored at (i, j).
func (s *Sparse) At(i, j int) float64 {
	sum := 0.0
	for k := range s.Vals {
		if s.Rows[k] == i && s.Cols[k] == j { sum += s.Vals[k] }
	}
	return sum
}

// Dense returns a dense copy of the matrix.
func (s *Sparse) Dense() *gonum.Dense {
	if s.n == 0 { return &gonum.Dense{} }
	d := gonum.NewDense(s.n, s.n, nil)
	for k, v := range s.Vals {
		d.Set(s.Rows[k], s.Cols[k], d.At(s.Rows[k], s.Cols[k]) + v)
	}
	return d
}

// MemoryUsage returns the approximate number of bytes used by the entries.
func (s *Sparse) MemoryUsage() int { return 24 * cap(s.Vals) }
