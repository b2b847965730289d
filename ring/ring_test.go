package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestRingOrder(t *testing.T) {
	r := NewRing(4, 2)
	for i := 0; i < 10; i++ {
		slot := r.WriteNext()
		slot[0], slot[1] = float64(i), float64(-i)

		for off := 0; off < r.Depth() && off <= i; off++ {
			got := r.ReadRelative(off)
			assert.Equal(t, float64(i-off), got[0])
			assert.Equal(t, float64(off-i), got[1])
		}
	}
}

func TestRingWrap(t *testing.T) {
	for _, depth := range []int{1, 2, 6, 9} {
		r := NewRing(depth, 3)
		start := r.Head()
		for i := 0; i < depth; i++ {
			r.WriteNext()
			if i < depth-1 { assert.NotEqual(t, start, r.Head()) }
		}
		assert.Equal(t, start, r.Head(), "depth = %d", depth)
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing(3, 1)
	for i := 1; i <= 3; i++ { r.WriteNext()[0] = float64(i) }
	assert.Equal(t, 1.0, r.ReadRelative(2)[0])

	r.WriteNext()[0] = 4
	assert.Equal(t, 2.0, r.ReadRelative(2)[0])
	assert.Equal(t, 4.0, r.ReadRelative(0)[0])
}

func TestRingPanics(t *testing.T) {
	r := NewRing(3, 1)
	assert.Panics(t, func() { r.ReadRelative(3) })
	assert.Panics(t, func() { r.ReadRelative(-1) })
	assert.Panics(t, func() { NewRing(0, 1) })
}

func TestNoiseRing(t *testing.T) {
	nr := NewNoiseRing(6, 3000, 1)
	assert.Equal(t, 6, nr.Depth())
	assert.Equal(t, 3000, nr.Width())

	all := []float64{}
	for off := 0; off < nr.Depth(); off++ {
		all = append(all, nr.ReadRelative(off)...)
	}
	mean, std := stat.MeanStdDev(all, nil)
	assert.InDelta(t, 0, mean, 0.02)
	assert.InDelta(t, 1, std, 0.02)

	// Slots are independent: neighboring lags are uncorrelated.
	c := stat.Correlation(nr.ReadRelative(0), nr.ReadRelative(1), nil)
	assert.InDelta(t, 0, c, 0.1)

	prev := append([]float64{}, nr.ReadRelative(0)...)
	nr.Draw()
	assert.Equal(t, prev, nr.ReadRelative(1))

	same := NewNoiseRing(6, 3000, 1)
	assert.Equal(t, nr.ReadRelative(1), same.ReadRelative(0))
}

func TestPositionRing(t *testing.T) {
	xs := [][3]float64{{1, 2, 3}, {4, 5, 6}}
	pr := NewPositionRing(3, xs)
	for off := 0; off < 3; off++ {
		assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, pr.ReadRelative(off))
	}

	xs[1][2] = -1
	pr.Push(xs)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, -1}, pr.ReadRelative(0))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, pr.ReadRelative(1))

	require.Panics(t, func() { pr.Push(xs[:1]) })
	assert.Equal(t, 8*18, pr.MemoryUsage())
}

func BenchmarkNoiseDraw(b *testing.B) {
	nr := NewNoiseRing(198, 3000, 2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ { nr.Draw() }
}
