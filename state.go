package glepair

import (
	"fmt"

	"github.com/phil-mansfield/glepair/geom"
)

// State is the particle data owned by the host simulation. The engine reads
// and writes it in place during each half-step.
type State struct {
	// X holds positions inside Box, and Image the number of times each
	// particle has crossed each periodic face.
	X, V, F [][3]float64
	Image [][3]int
	// Type indexes into Mass.
	Type []int
	Mass []float64

	Box geom.Box
	Dt float64
}

// CheckInit returns an error if the fields of s are inconsistent.
func (s *State) CheckInit() error {
	n := len(s.X)
	switch {
	case len(s.V) != n:
		return fmt.Errorf("State has %d positions but %d velocities.", n, len(s.V))
	case len(s.F) != n:
		return fmt.Errorf("State has %d positions but %d forces.", n, len(s.F))
	case len(s.Image) != n:
		return fmt.Errorf(
			"State has %d positions but %d image counters.", n, len(s.Image),
		)
	case len(s.Type) != n:
		return fmt.Errorf("State has %d positions but %d types.", n, len(s.Type))
	case !(s.Dt > 0):
		return fmt.Errorf("Timestep must be positive, but is %g.", s.Dt)
	}

	for i, m := range s.Mass {
		if !(m > 0) {
			return fmt.Errorf("Mass of type %d must be positive, but is %g.", i, m)
		}
	}
	for i, t := range s.Type {
		if t < 0 || t >= len(s.Mass) {
			return fmt.Errorf(
				"Particle %d has type %d, but only %d masses are given.",
				i, t, len(s.Mass),
			)
		}
	}

	return s.Box.CheckInit()
}

// Unwrapped writes the unwrapped positions of all particles into out.
func (s *State) Unwrapped(out [][3]float64) {
	for i := range s.X { out[i] = s.Box.Unmap(s.X[i], s.Image[i]) }
}

// KineticTemperature returns 2 K / (3 N k_B), where K is the total kinetic
// energy.
func (s *State) KineticTemperature(boltzmann float64) float64 {
	if len(s.V) == 0 { return 0 }
	sum := 0.0
	for i, v := range s.V {
		m := s.Mass[s.Type[i]]
		sum += m * (v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	}
	return sum / (3 * float64(len(s.V)) * boltzmann)
}
