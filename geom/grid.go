package geom

import (
	"math"
)

// Grid provides an interface for reasoning over a 1D slice of cells as if it
// were a periodic 3D grid laid over a Box.
type Grid struct {
	Width [3]int
	Length, Area, Volume int
	cellWidth [3]float64
	box Box
}

// NewGrid returns a grid over box whose cells are at least minCell wide.
func NewGrid(box *Box, minCell float64) *Grid {
	g := &Grid{}
	g.Init(box, minCell)
	return g
}

// Init initializes a Grid instance.
func (g *Grid) Init(box *Box, minCell float64) {
	g.box = *box
	for i := 0; i < 3; i++ {
		n := int(math.Floor(box.Width[i] / minCell))
		if n < 1 { n = 1 }
		g.Width[i] = n
		g.cellWidth[i] = box.Width[i] / float64(n)
	}

	g.Length = g.Width[0]
	g.Area = g.Width[0] * g.Width[1]
	g.Volume = g.Width[0] * g.Width[1] * g.Width[2]
}

// Idx returns the grid index corresponding to a set of cell coordinates. The
// coordinates are taken modulo the grid width.
func (g *Grid) Idx(x, y, z int) int {
	x, y, z = pMod(x, g.Width[0]), pMod(y, g.Width[1]), pMod(z, g.Width[2])
	return x + y*g.Length + z*g.Area
}

// Coords returns the x, y, z cell coordinates of a cell from its grid index.
func (g *Grid) Coords(idx int) (x, y, z int) {
	x = idx % g.Length
	y = (idx % g.Area) / g.Length
	z = idx / g.Area
	return x, y, z
}

// Cell returns the index of the cell containing the point pt. Points outside
// the box are wrapped first.
func (g *Grid) Cell(pt [3]float64) int {
	var c [3]int
	for i := 0; i < 3; i++ {
		u := (pt[i] - g.box.Origin[i]) / g.cellWidth[i]
		c[i] = int(math.Floor(u))
	}
	return g.Idx(c[0], c[1], c[2])
}

// Neighborhood writes the indices of the 27 cells surrounding (and
// including) the given cell into out and returns the number of distinct
// cells. Grids narrower than three cells along an axis return each cell once.
func (g *Grid) Neighborhood(idx int, out []int) int {
	x, y, z := g.Coords(idx)
	n := 0
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				j := g.Idx(x+dx, y+dy, z+dz)
				if !contains(out[:n], j) {
					out[n] = j
					n++
				}
			}
		}
	}
	return n
}

func contains(xs []int, x int) bool {
	for _, y := range xs {
		if y == x { return true }
	}
	return false
}

// pMod computes the positive modulo x % y.
func pMod(x, y int) int {
	m := x % y
	if m < 0 {
		m += y
	}
	return m
}
