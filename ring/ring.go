/*package ring provides fixed-depth circular histories of per-degree-of-freedom
samples: Gaussian noise draws and unwrapped particle positions.
*/
package ring

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Ring is a circular buffer of depth slots, each holding width values. The
// slots are stored in one contiguous block.
//
// Slots are only reachable through WriteNext and ReadRelative, so callers
// never do index arithmetic themselves.
type Ring struct {
	data []float64 // Contiguous block of slot data. Slot-major.
	depth, width int
	head int // Index of the most recently written slot.
}

// NewRing returns a ring with the given depth and width.
func NewRing(depth, width int) *Ring {
	r := &Ring{}
	r.Init(depth, width)
	return r
}

// Init initializes a ring with the given number of slots, each of which
// contains width values. The first call to WriteNext will return slot 0.
func (r *Ring) Init(depth, width int) {
	if depth < 1 || width < 0 {
		panic(fmt.Sprintf(
			"Ring shape (%d, %d) must have positive depth.", depth, width,
		))
	}
	r.data = make([]float64, depth*width)
	r.depth, r.width = depth, width
	r.head = depth - 1
}

// WriteNext advances the ring by one slot and returns the new slot so that
// it can be filled. The slot overwritten is the oldest one.
func (r *Ring) WriteNext() []float64 {
	r.head++
	if r.head == r.depth { r.head = 0 }
	return r.slot(r.head)
}

// ReadRelative returns the slot written offset calls to WriteNext ago. An
// offset of 0 is the most recent slot and depth-1 the oldest.
func (r *Ring) ReadRelative(offset int) []float64 {
	if offset < 0 || offset >= r.depth {
		panic(fmt.Sprintf(
			"Ring offset %d out of range for depth %d.", offset, r.depth,
		))
	}
	i := r.head - offset
	if i < 0 { i += r.depth }
	return r.slot(i)
}

// Head returns the index of the most recently written slot.
func (r *Ring) Head() int { return r.head }

// Depth returns the number of slots in the ring.
func (r *Ring) Depth() int { return r.depth }

// Width returns the number of values in each slot.
func (r *Ring) Width() int { return r.width }

// MemoryUsage returns the number of bytes used by the ring's slots.
func (r *Ring) MemoryUsage() int { return 8 * len(r.data) }

func (r *Ring) slot(i int) []float64 {
	return r.data[i*r.width: (i+1)*r.width]
}

// NoiseRing is a ring of independent standard normal draws, one value per
// degree of freedom in each slot.
type NoiseRing struct {
	Ring
	norm distuv.Normal
}

// NewNoiseRing creates a noise ring with the given depth and number of degrees
// of freedom and fills every slot from a generator seeded with seed.
func NewNoiseRing(depth, dof int, seed uint64) *NoiseRing {
	nr := &NoiseRing{}
	nr.Ring.Init(depth, dof)
	nr.norm = distuv.Normal{ Mu: 0, Sigma: 1, Src: rand.NewSource(seed) }
	for i := 0; i < depth; i++ { nr.Draw() }
	return nr
}

// Draw overwrites the oldest slot with fresh draws.
func (nr *NoiseRing) Draw() {
	slot := nr.WriteNext()
	for i := range slot { slot[i] = nr.norm.Rand() }
}

// PositionRing is a ring of unwrapped particle positions. Each slot stores
// 3*n coordinates, x-major within a particle.
type PositionRing struct {
	Ring
}

// NewPositionRing creates a ring of the given depth and fills every slot with
// xs.
func NewPositionRing(depth int, xs [][3]float64) *PositionRing {
	pr := &PositionRing{}
	pr.Ring.Init(depth, 3*len(xs))
	for i := 0; i < depth; i++ { pr.Push(xs) }
	return pr
}

// Push writes xs to the next slot.
func (pr *PositionRing) Push(xs [][3]float64) {
	if 3*len(xs) != pr.width {
		panic(fmt.Sprintf(
			"Pushed %d positions to a ring of width %d.", len(xs), pr.width,
		))
	}
	slot := pr.WriteNext()
	for i := range xs {
		slot[3*i], slot[3*i+1], slot[3*i+2] = xs[i][0], xs[i][1], xs[i][2]
	}
}
