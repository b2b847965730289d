package corr

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gonum "gonum.org/v1/gonum/mat"

	"github.com/phil-mansfield/glepair/geom"
	"github.com/phil-mansfield/glepair/kernel"
	"github.com/phil-mansfield/glepair/neighbor"
	"github.com/phil-mansfield/glepair/ring"
)

func testTable(t *testing.T) *kernel.Table {
	g := kernel.Grid{
		DStart: 1, DStep: 0.5, DStop: 3,
		TStart: 0, TStep: 0.1, TStop: 0.3,
	}
	self := []float64{2, 1, 0.5, 0.1}
	cross := [][]float64{
		{0.5, 0.2, 0.1, 0},
		{0.4, 0.1, 0, 0},
		{0.3, 0.1, 0.05, 0},
		{0.2, 0, 0, 0},
		{0.1, 0, 0, 0},
	}
	tab, err := kernel.NewTable(g, self, cross)
	require.NoError(t, err)
	return tab
}

func pairList() *neighbor.List {
	return &neighbor.List{ Offsets: []int{0, 1, 2}, Neighbors: []int{1, 0} }
}

func pairAt(d float64) [][3]float64 {
	u := [3]float64{1.0/3, 2.0/3, 2.0/3}
	return [][3]float64{
		{10, 10, 10},
		{10 - d*u[0], 10 - d*u[1], 10 - d*u[2]},
	}
}

func TestCrossBlock(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)

	for _, d := range []float64{1.01, 1.7, 2.2, 2.99} {
		xs := pairAt(d)
		op, err := Build(tab, xs, pairList(), box)
		require.NoError(t, err)
		assert.Equal(t, 1, op.Pairs)

		bin, ok, err := tab.Bin(d)
		require.NoError(t, err)
		require.True(t, ok)

		dr := box.Displacement(xs[0], xs[1])
		r2 := dr[0]*dr[0] + dr[1]*dr[1] + dr[2]*dr[2]
		ft := tab.CrossFT[bin*tab.Nt]

		b01, b10 := op.Block(0, 1), op.Block(1, 0)
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				assert.InDelta(t, ft*dr[a]*dr[b]/r2, b01[a][b], 1e-14)
				assert.InDelta(t, b01[a][b], b10[b][a], 1e-14)
			}
		}

		self := op.Block(0, 0)
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				if a == b {
					assert.Equal(t, tab.SelfFT[0], self[a][b])
				} else {
					assert.Equal(t, 0.0, self[a][b])
				}
			}
		}
	}
}

func TestCrossBlockPeriodic(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)
	xs := [][3]float64{{0.5, 0, 0}, {19, 0, 0}}

	op, err := Build(tab, xs, pairList(), box)
	require.NoError(t, err)
	b := op.Block(0, 1)
	ft := tab.CrossFT[1*tab.Nt]
	assert.InDelta(t, ft, b[0][0], 1e-14)
	assert.Equal(t, 0.0, b[1][1])
}

func TestOutsideWindow(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)

	op, err := Build(tab, pairAt(3.2), pairList(), box)
	require.NoError(t, err)
	assert.Equal(t, 0, op.Pairs)
	assert.Equal(t, 6, op.Len())
	assert.Equal(t, [3][3]float64{}, op.Block(0, 1))
}

func TestTooClose(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)

	for _, d := range []float64{0.999, 0.5, 0} {
		_, err := Build(tab, pairAt(d), pairList(), box)
		var tc *kernel.TooCloseError
		require.True(t, errors.As(err, &tc), "d = %g", d)
		assert.Equal(t, 0, tc.I)
		assert.Equal(t, 1, tc.J)
	}
}

func TestBuildMismatch(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)
	_, err := Build(tab, pairAt(2)[:1], pairList(), box)
	assert.Error(t, err)
}

func TestSymmetric(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(8)
	xs := [][3]float64{{1, 1, 1}, {2.2, 1.3, 0.9}, {1.5, 2.8, 1}, {6, 6, 6}}
	f, err := neighbor.NewFinder(box, tab.DStop)
	require.NoError(t, err)
	nl, err := f.Build(xs)
	require.NoError(t, err)

	op, err := Build(tab, xs, nl, box)
	require.NoError(t, err)
	assert.Equal(t, 3, op.Pairs)

	for freq := 0; freq < tab.Nt; freq++ {
		require.NoError(t, op.Rescale(tab, freq))
		d := op.Dense()
		assert.True(t, gonum.EqualApprox(d, d.T(), 1e-14), "f = %d", freq)
	}
}

func TestRescale(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)
	xs := pairAt(1.7)
	op, err := Build(tab, xs, pairList(), box)
	require.NoError(t, err)
	base := append([]float64{}, op.Vals...)

	for _, f := range []int{3, 1, 2, 0} {
		require.NoError(t, op.Rescale(tab, f))
		assert.Equal(t, f, op.Freq)
		for k, tag := range op.Tags {
			ft, err := tab.Spectrum(tag)
			require.NoError(t, err)
			assert.InDelta(t, op.Weights[k]*ft[f], op.Vals[k], 1e-14)
		}
	}
	// Rescaling is absolute, so returning to zero recovers the build.
	assert.InDeltaSlice(t, base, op.Vals, 1e-14)

	op.Tags[len(op.Tags)-1] = tab.Nd
	var tagErr *kernel.TagError
	assert.True(t, errors.As(op.Rescale(tab, 1), &tagErr))
	assert.Panics(t, func() { op.Rescale(tab, tab.Nt) })
}

func TestDissipativeSelf(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)
	xs := [][3]float64{{5, 5, 5}}
	nl := &neighbor.List{ Offsets: []int{0, 0} }
	op, err := Build(tab, xs, nl, box)
	require.NoError(t, err)

	pos := ring.NewPositionRing(tab.Nt, xs)
	// History, oldest first: x = 5, 6, 8, 11 along the first axis.
	for _, x := range []float64{6, 8, 11} {
		pos.Push([][3]float64{{x, 5, 5}})
	}

	fd := make([]float64, 3)
	require.NoError(t, op.Dissipative(fd, tab, pos))
	// K(1)*(11-8) + K(2)*(8-6) + K(3)*(6-5)
	assert.InDelta(t, 1*3 + 0.5*2 + 0.1*1, fd[0], 1e-12)
	assert.Equal(t, 0.0, fd[1])
	assert.Equal(t, 0.0, fd[2])
}

func TestDissipativePair(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)
	xs := [][3]float64{{5, 5, 5}, {6.2, 5, 5}}
	op, err := Build(tab, xs, pairList(), box)
	require.NoError(t, err)

	pos := ring.NewPositionRing(tab.Nt, xs)
	pos.Push([][3]float64{{5, 5, 5}, {6.2, 5, 6}})

	fd := make([]float64, 6)
	require.NoError(t, op.Dissipative(fd, tab, pos))

	// Only particle 1 moved, only along z, which is orthogonal to the
	// pair axis, so the cross term vanishes.
	k, _ := tab.Kernel(kernel.SelfTag)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0, 0, k[1]}, fd, 1e-12)

	pos.Push([][3]float64{{5, 5, 5}, {7.2, 5, 6}})
	require.NoError(t, op.Dissipative(fd, tab, pos))
	bin, _, _ := tab.Bin(1.2)
	kc, _ := tab.Kernel(bin)
	assert.InDelta(t, kc[1], fd[0], 1e-12)
	assert.InDelta(t, k[1], fd[3], 1e-12)
	assert.InDelta(t, k[2], fd[5], 1e-12)
}

func TestMemoryUsage(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)
	op, err := Build(tab, pairAt(2), pairList(), box)
	require.NoError(t, err)
	assert.True(t, op.MemoryUsage() >= 24*op.Len())
	assert.False(t, math.IsNaN(float64(op.MemoryUsage())))
}

func TestRebuildShrinks(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)
	nl := &neighbor.List{
		Offsets: []int{0, 2, 4, 6}, Neighbors: []int{1, 2, 0, 2, 0, 1},
	}

	xs := [][3]float64{{10, 10, 10}, {11.6, 10, 10}, {10, 11.6, 10}}
	op, err := Build(tab, xs, nl, box)
	require.NoError(t, err)
	assert.Equal(t, 3, op.Pairs)
	assert.Equal(t, 63, op.Len())
	assert.Equal(t, op.Len(), len(op.Tags))
	assert.Equal(t, op.Len(), len(op.Weights))

	// Particle 2 leaves the window but stays in the neighbor list.
	xs[2] = [3]float64{10, 15, 10}
	require.NoError(t, op.Rebuild(tab, xs, nl, box))
	assert.Equal(t, 1, op.Pairs)
	assert.Equal(t, 27, op.Len())
	assert.Equal(t, op.Len(), len(op.Rows))
	assert.Equal(t, op.Len(), len(op.Cols))
	assert.Equal(t, op.Len(), len(op.Tags))
	assert.Equal(t, op.Len(), len(op.Weights))

	bin, ok, err := tab.Bin(1.6)
	require.NoError(t, err)
	require.True(t, ok)
	for _, f := range []int{0, 2} {
		require.NoError(t, op.Rescale(tab, f))
		b := op.Block(0, 1)
		assert.InDelta(t, tab.CrossFT[bin*tab.Nt + f], b[0][0], 1e-14)
		assert.Equal(t, 0.0, b[1][1])
		assert.Equal(t, [3][3]float64{}, op.Block(0, 2))
		assert.Equal(t, [3][3]float64{}, op.Block(1, 2))
		assert.Equal(t, tab.SelfFT[f], op.Block(2, 2)[1][1])
	}
}

func TestCheckSeparation(t *testing.T) {
	tab := testTable(t)
	box, _ := geom.NewBox(20)

	op, err := Build(tab, pairAt(1.2), pairList(), box)
	require.NoError(t, err)
	assert.NoError(t, op.CheckSeparation(tab, pairAt(1.1), box))

	err = op.CheckSeparation(tab, pairAt(0.9), box)
	var tc *kernel.TooCloseError
	require.True(t, errors.As(err, &tc))
	assert.Equal(t, 0, tc.I)
	assert.Equal(t, 1, tc.J)
	assert.InDelta(t, 0.9, tc.R, 1e-12)

	// Pairs which were outside the window at build time are not tracked.
	op, err = Build(tab, pairAt(3.2), pairList(), box)
	require.NoError(t, err)
	assert.NoError(t, op.CheckSeparation(tab, pairAt(0.5), box))
}
