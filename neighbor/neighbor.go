/*package neighbor builds full neighbor lists for particles in a periodic box.
Every pair within the cutoff appears twice, once in the list of each member.
*/
package neighbor

import (
	"fmt"
	"sort"

	"github.com/phil-mansfield/glepair/geom"
)

// List is a full neighbor list in compressed row form.
type List struct {
	// The neighbors of particle i are Neighbors[Offsets[i]:Offsets[i+1]].
	Offsets, Neighbors []int
}

// Len returns the number of particles in the list.
func (l *List) Len() int { return len(l.Offsets) - 1 }

// Of returns the neighbors of particle i in increasing order.
func (l *List) Of(i int) []int {
	return l.Neighbors[l.Offsets[i]: l.Offsets[i+1]]
}

// Pairs returns the number of distinct pairs in the list.
func (l *List) Pairs() int { return len(l.Neighbors) / 2 }

// Finder finds all pairs of particles closer than a cutoff. A cell list is
// used when the box is at least three cutoffs wide along every axis and a
// direct search otherwise.
type Finder struct {
	box geom.Box
	cutoff float64
	grid *geom.Grid

	heads, next []int
	cells [27]int
}

// NewFinder returns a Finder for the given box and cutoff. The box must be at
// least twice as wide as the cutoff so that no pair interacts through more
// than one periodic image.
func NewFinder(box *geom.Box, cutoff float64) (*Finder, error) {
	if err := box.CheckInit(); err != nil { return nil, err }
	if !(cutoff > 0) {
		return nil, fmt.Errorf("Neighbor cutoff must be positive, but is %g.", cutoff)
	} else if box.MinWidth() < 2*cutoff {
		return nil, fmt.Errorf(
			"Box width %g is smaller than twice the neighbor cutoff %g.",
			box.MinWidth(), cutoff,
		)
	}

	f := &Finder{ box: *box, cutoff: cutoff }
	g := geom.NewGrid(box, cutoff)
	if g.Width[0] >= 3 && g.Width[1] >= 3 && g.Width[2] >= 3 {
		f.grid = g
		f.heads = make([]int, g.Volume)
	}
	return f, nil
}

// Cutoff returns the cutoff radius of the finder.
func (f *Finder) Cutoff() float64 { return f.cutoff }

// UsesCells returns true if the finder uses a cell list.
func (f *Finder) UsesCells() bool { return f.grid != nil }

// Build returns the full neighbor list of xs.
func (f *Finder) Build(xs [][3]float64) (*List, error) {
	rows := make([][]int, len(xs))
	if f.grid == nil {
		f.direct(xs, rows)
	} else {
		f.cellList(xs, rows)
	}

	l := &List{ Offsets: make([]int, len(xs)+1) }
	for i := range rows {
		sort.Ints(rows[i])
		l.Offsets[i+1] = l.Offsets[i] + len(rows[i])
	}
	l.Neighbors = make([]int, l.Offsets[len(xs)])
	for i := range rows {
		copy(l.Neighbors[l.Offsets[i]:], rows[i])
	}
	return l, nil
}

func (f *Finder) within(xi, xj [3]float64) bool {
	dr := f.box.Displacement(xi, xj)
	return dr[0]*dr[0] + dr[1]*dr[1] + dr[2]*dr[2] < f.cutoff*f.cutoff
}

func (f *Finder) direct(xs [][3]float64, rows [][]int) {
	for i := range xs {
		for j := i + 1; j < len(xs); j++ {
			if f.within(xs[i], xs[j]) {
				rows[i] = append(rows[i], j)
				rows[j] = append(rows[j], i)
			}
		}
	}
}

func (f *Finder) cellList(xs [][3]float64, rows [][]int) {
	for i := range f.heads { f.heads[i] = -1 }
	if cap(f.next) < len(xs) { f.next = make([]int, len(xs)) }
	next := f.next[:len(xs)]

	for i := range xs {
		c := f.grid.Cell(xs[i])
		next[i] = f.heads[c]
		f.heads[c] = i
	}

	for i := range xs {
		n := f.grid.Neighborhood(f.grid.Cell(xs[i]), f.cells[:])
		for _, c := range f.cells[:n] {
			for j := f.heads[c]; j != -1; j = next[j] {
				if j != i && f.within(xs[i], xs[j]) {
					rows[i] = append(rows[i], j)
				}
			}
		}
	}
}
