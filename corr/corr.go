/*package corr assembles the sparse correlation operator which couples the
degrees of freedom of neighboring particles, and applies the memory kernel
to position histories.

Degree of freedom 3*i + a is axis a of local particle i. Every stored entry
carries the kernel tag that produced it and a geometric weight, so that the
operator can be evaluated at any frequency of the kernel table without
rebuilding its sparsity pattern.
*/
package corr

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/glepair/kernel"
	"github.com/phil-mansfield/glepair/mat"
	"github.com/phil-mansfield/glepair/neighbor"
	"github.com/phil-mansfield/glepair/ring"
)

// Displacer computes separation vectors between particles.
type Displacer interface {
	// Displacement returns the minimum image of xi - xj.
	Displacement(xi, xj [3]float64) [3]float64
}

// Operator is the correlation operator. Entry k of the embedded matrix has
// the value Weights[k] * Spectrum(Tags[k])[f] at frequency f.
type Operator struct {
	mat.Sparse
	Tags []int
	Weights []float64
	// Freq is the frequency the matrix values currently correspond to.
	Freq int
	// Pairs is the number of neighbor pairs which contributed cross-terms.
	Pairs int

	// pairs holds each contributing pair once, lower index first.
	pairs [][2]int
}

// Build assembles the operator at zero frequency for the particles at xs.
// nl must be a full neighbor list over the same particles. A pair closer
// than the table's lower cutoff is an error of type *kernel.TooCloseError.
func Build(
	tab *kernel.Table, xs [][3]float64, nl *neighbor.List, box Displacer,
) (*Operator, error) {
	op := &Operator{}
	return op, op.Rebuild(tab, xs, nl, box)
}

// Rebuild replaces the contents of op with the operator for xs, reusing its
// storage. See Build.
func (op *Operator) Rebuild(
	tab *kernel.Table, xs [][3]float64, nl *neighbor.List, box Displacer,
) error {
	if nl.Len() != len(xs) {
		return fmt.Errorf(
			"Neighbor list has %d particles, but there are %d positions.",
			nl.Len(), len(xs),
		)
	}

	n := len(xs)
	op.Sparse.Init(3*n, 3*n + 9*len(nl.Neighbors))
	op.Tags, op.Weights = op.Tags[:0], op.Weights[:0]
	op.pairs = op.pairs[:0]
	op.Freq, op.Pairs = 0, 0

	for i := range xs {
		for a := 0; a < 3; a++ {
			op.add(3*i+a, 3*i+a, kernel.SelfTag, 1, tab.SelfFT[0])
		}

		for _, j := range nl.Of(i) {
			dr := box.Displacement(xs[i], xs[j])
			r2 := dr[0]*dr[0] + dr[1]*dr[1] + dr[2]*dr[2]
			r := math.Sqrt(r2)

			bin, ok, err := tab.Bin(r)
			if err != nil || r2 == 0 {
				return &kernel.TooCloseError{ I: i, J: j, R: r, DStart: tab.DStart }
			} else if !ok {
				continue
			}

			if i < j { op.pairs = append(op.pairs, [2]int{i, j}) }
			ft := tab.CrossFT[bin*tab.Nt]
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					w := dr[a]*dr[b] / r2
					op.add(3*i+a, 3*j+b, bin, w, ft*w)
				}
			}
		}
	}

	op.Pairs = len(op.pairs)
	return nil
}

// CheckSeparation returns a *kernel.TooCloseError if any pair stored in op
// has moved closer than the table's lower cutoff since op was built. Pairs
// outside of op are not checked.
func (op *Operator) CheckSeparation(
	tab *kernel.Table, xs [][3]float64, box Displacer,
) error {
	lim2 := tab.DStart*tab.DStart
	for _, p := range op.pairs {
		dr := box.Displacement(xs[p[0]], xs[p[1]])
		r2 := dr[0]*dr[0] + dr[1]*dr[1] + dr[2]*dr[2]
		if !(r2 >= lim2) || r2 == 0 {
			return &kernel.TooCloseError{
				I: p[0], J: p[1], R: math.Sqrt(r2), DStart: tab.DStart,
			}
		}
	}
	return nil
}

func (op *Operator) add(row, col, tag int, weight, val float64) {
	op.Append(row, col, val)
	op.Tags = append(op.Tags, tag)
	op.Weights = append(op.Weights, weight)
}

// Particles returns the number of particles the operator covers.
func (op *Operator) Particles() int { return op.Dim() / 3 }

// Block returns the 3 x 3 block coupling particles i and j at the current
// frequency.
func (op *Operator) Block(i, j int) [3][3]float64 {
	out := [3][3]float64{}
	for k, v := range op.Vals {
		if op.Rows[k]/3 == i && op.Cols[k]/3 == j {
			out[op.Rows[k]%3][op.Cols[k]%3] += v
		}
	}
	return out
}

// Rescale sets every value to its frequency-f counterpart. A tag outside of
// the table returns a *kernel.TagError.
func (op *Operator) Rescale(tab *kernel.Table, f int) error {
	if f < 0 || f >= tab.Nt {
		panic(fmt.Sprintf("Frequency %d outside of [0, %d).", f, tab.Nt))
	}

	for k, tag := range op.Tags {
		ft, err := tab.Spectrum(tag)
		if err != nil { return err }
		op.Vals[k] = op.Weights[k] * ft[f]
	}
	op.Freq = f
	return nil
}

// Dissipative writes the memory drag on each degree of freedom into dst:
//
//     dst[r] = sum_{t=1}^{Nt-1} sum_k W_k K_k(t) (x(t-1) - x(t))[c]
//
// where k runs over the entries in row r, c is the column of entry k, and
// x(t) is the position history written t steps ago. The zero-lag term is
// not included.
func (op *Operator) Dissipative(
	dst []float64, tab *kernel.Table, pos *ring.PositionRing,
) error {
	if len(dst) != op.Dim() {
		panic("len(dst) != op.Dim()")
	} else if pos.Width() != op.Dim() {
		panic("Position ring width != op.Dim()")
	} else if pos.Depth() < tab.Nt {
		panic("Position ring is shallower than the kernel.")
	}

	for i := range dst { dst[i] = 0 }
	for t := 1; t < tab.Nt; t++ {
		newer, older := pos.ReadRelative(t - 1), pos.ReadRelative(t)
		for k, tag := range op.Tags {
			kt, err := tab.Kernel(tag)
			if err != nil { return err }
			c := op.Cols[k]
			dst[op.Rows[k]] += op.Weights[k] * kt[t] * (newer[c] - older[c])
		}
	}
	return nil
}

// MemoryUsage returns the approximate number of bytes held by the operator.
func (op *Operator) MemoryUsage() int {
	return op.Sparse.MemoryUsage() + 8*(cap(op.Tags) + cap(op.Weights)) +
		16*cap(op.pairs)
}
