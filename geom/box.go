/*package geom contains the periodic geometry shared by the GLE engine and
its collaborators: an orthorhombic simulation box and a cell grid used to
bin particles for neighbor searches.
*/
package geom

import (
	"fmt"
	"math"
)

// Box is an orthorhombic box with periodic boundary conditions. The box
// spans [Origin[i], Origin[i] + Width[i]) along each axis.
type Box struct {
	Origin, Width [3]float64
}

// NewBox creates a cubic box with the given width and its lower corner at
// the origin.
func NewBox(width float64) (*Box, error) {
	box := &Box{ Width: [3]float64{width, width, width} }
	return box, box.CheckInit()
}

// CheckInit returns an error if the box has a non-positive width.
func (box *Box) CheckInit() error {
	for i := 0; i < 3; i++ {
		if !(box.Width[i] > 0) || math.IsInf(box.Width[i], 0) {
			return fmt.Errorf(
				"Box width along axis %d must be positive and finite, but is %g.",
				i, box.Width[i],
			)
		}
	}
	return nil
}

// MinWidth returns the width of the narrowest side of the box.
func (box *Box) MinWidth() float64 {
	return math.Min(box.Width[0], math.Min(box.Width[1], box.Width[2]))
}

// MinImage returns the minimum image of the separation vector dr.
func (box *Box) MinImage(dr [3]float64) [3]float64 {
	for i := 0; i < 3; i++ {
		w := box.Width[i]
		dr[i] -= w * math.Floor(dr[i]/w + 0.5)
	}
	return dr
}

// Displacement returns the minimum image of xi - xj.
func (box *Box) Displacement(xi, xj [3]float64) [3]float64 {
	return box.MinImage([3]float64{xi[0] - xj[0], xi[1] - xj[1], xi[2] - xj[2]})
}

// Wrap moves x back inside the box and updates the periodic image counters
// so that Unmap(x, image) is unchanged by the call.
func (box *Box) Wrap(x *[3]float64, image *[3]int) {
	for i := 0; i < 3; i++ {
		w := box.Width[i]
		shift := math.Floor((x[i] - box.Origin[i]) / w)
		if shift == 0 { continue }

		x[i] -= shift * w
		image[i] += int(shift)

		// Rounding can leave x exactly on the upper face.
		if x[i] >= box.Origin[i]+w { x[i] = box.Origin[i] }
	}
}

// Unmap returns the unwrapped position of a particle at x with the given
// image counters.
func (box *Box) Unmap(x [3]float64, image [3]int) [3]float64 {
	for i := 0; i < 3; i++ {
		x[i] += float64(image[i]) * box.Width[i]
	}
	return x
}

// Distance returns the minimum image distance between two points.
func (box *Box) Distance(xi, xj [3]float64) float64 {
	dr := box.Displacement(xi, xj)
	return math.Sqrt(dr[0]*dr[0] + dr[1]*dr[1] + dr[2]*dr[2])
}
