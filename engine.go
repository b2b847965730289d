/*package glepair computes the memory drag and colored random forces acting on
particles that follow a generalized Langevin equation with pairwise,
distance-dependent memory kernels.

An Engine is driven by a host simulation through two calls per timestep.
InitialIntegrate advances positions. The host then writes its conservative
forces into State.F and calls FinalIntegrate, which advances velocities.
The update is a Grønbech-Jensen-Farago style splitting in which the
zero-lag part of the memory kernel is treated implicitly.
*/
package glepair

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"time"

	"gopkg.in/warnings.v0"

	"github.com/phil-mansfield/glepair/corr"
	"github.com/phil-mansfield/glepair/kernel"
	"github.com/phil-mansfield/glepair/mat"
	"github.com/phil-mansfield/glepair/neighbor"
	"github.com/phil-mansfield/glepair/noise"
	"github.com/phil-mansfield/glepair/ring"
)

// maxLoggedWarnings is the number of individual conditioning warnings which
// are logged before only the running count is reported.
const maxLoggedWarnings = 10

// RebuildPolicy decides when the correlation operator is rebuilt.
type RebuildPolicy int

const (
	// RebuildAlways rebuilds the operator on every step.
	RebuildAlways RebuildPolicy = iota
	// RebuildDisplacement rebuilds the operator once any particle has moved
	// more than a quarter of a distance bin since the last rebuild, so no
	// pair separation drifts by half a bin or more between rebuilds. Pairs
	// in the operator are checked against the lower cutoff on every step.
	RebuildDisplacement
)

func (p RebuildPolicy) String() string {
	switch p {
	case RebuildAlways: return "Always"
	case RebuildDisplacement: return "Displacement"
	}
	return fmt.Sprintf("RebuildPolicy(%d)", int(p))
}

// NeighborFinder supplies full neighbor lists.
type NeighborFinder interface {
	Build(xs [][3]float64) (*neighbor.List, error)
	Cutoff() float64
}

// Config holds the run parameters of an Engine.
type Config struct {
	Temperature, Boltzmann float64
	Seed int64

	MaxLanczos int
	LanczosTol float64

	Rebuild RebuildPolicy
	// LogEvery is the number of steps between logged summaries. Zero turns
	// logging off.
	LogEvery int
}

// DefaultConfig returns a Config with the default solver settings and unit
// temperature.
func DefaultConfig() Config {
	return Config{
		Temperature: 1, Boltzmann: 1, Seed: 1,
		MaxLanczos: 50, LanczosTol: 1e-5,
		Rebuild: RebuildAlways,
	}
}

// CheckInit returns an error if any parameter is out of range.
func (c *Config) CheckInit() error {
	switch {
	case c.Seed <= 0:
		return fmt.Errorf("Seed must be positive, but is %d.", c.Seed)
	case c.Temperature < 0 || math.IsNaN(c.Temperature):
		return fmt.Errorf(
			"Temperature must be non-negative, but is %g.", c.Temperature,
		)
	case !(c.Boltzmann > 0):
		return fmt.Errorf("Boltzmann must be positive, but is %g.", c.Boltzmann)
	case c.MaxLanczos < 1:
		return fmt.Errorf("MaxLanczos must be positive, but is %d.", c.MaxLanczos)
	case !(c.LanczosTol > 0):
		return fmt.Errorf("LanczosTol must be positive, but is %g.", c.LanczosTol)
	case c.Rebuild != RebuildAlways && c.Rebuild != RebuildDisplacement:
		return fmt.Errorf("Unrecognized rebuild policy %d.", int(c.Rebuild))
	case c.LogEvery < 0:
		return fmt.Errorf("LogEvery must be non-negative, but is %d.", c.LogEvery)
	}
	return nil
}

// coeffs are the integration constants for a single particle type.
type coeffs struct {
	a, b float64
}

// Engine owns every piece of state needed to generate GLE forces for one set
// of particles. It is not safe for concurrent use.
type Engine struct {
	cfg Config
	raw, tab *kernel.Table
	finder NeighborFinder
	dt float64

	nr *ring.NoiseRing
	pos *ring.PositionRing
	op *corr.Operator
	gen *noise.Generator

	fr, fd []float64
	fc [][3]float64
	unwrapped, lastBuild [][3]float64
	types []coeffs

	initialized, halfStep bool
	stats Stats
	ms runtime.MemStats
}

// New creates an engine for the particles in s, which must remain the same
// particles, in the same order, for the engine's lifetime. tab holds the
// kernels in continuous-time units. Both history rings are filled when New
// returns.
func New(
	cfg Config, tab *kernel.Table, finder NeighborFinder, s *State,
) (*Engine, error) {
	if err := cfg.CheckInit(); err != nil { return nil, err }
	if err := s.CheckInit(); err != nil { return nil, err }
	if finder.Cutoff() < tab.DStop {
		return nil, fmt.Errorf(
			"Neighbor cutoff %g is smaller than the kernel's dStop, %g.",
			finder.Cutoff(), tab.DStop,
		)
	}

	n := len(s.X)
	e := &Engine{ cfg: cfg, raw: tab, finder: finder }

	e.unwrapped = make([][3]float64, n)
	e.lastBuild = make([][3]float64, n)
	e.fc = make([][3]float64, n)
	e.fr = make([]float64, 3*n)
	e.fd = make([]float64, 3*n)
	s.Unwrapped(e.unwrapped)

	e.nr = ring.NewNoiseRing(tab.RingLen(), 3*n, uint64(cfg.Seed))
	e.pos = ring.NewPositionRing(tab.Nt, e.unwrapped)
	lz := mat.NewLanczos(cfg.MaxLanczos, cfg.LanczosTol)
	e.gen = noise.NewGenerator(3*n, tab.Nt, lz)
	e.op = &corr.Operator{}

	if cfg.LogEvery > 0 {
		log.Printf(
			"GLE engine: %d particles, Nt = %d, Nd = %d, %s rebuilds.",
			n, tab.Nt, tab.Nd, cfg.Rebuild,
		)
	}

	return e, nil
}

// initialize discretizes the kernel table by the host's timestep and builds
// the first operator.
func (e *Engine) initialize(s *State) error {
	tab, err := e.raw.Discretize(s.Dt)
	if err != nil { return err }
	e.tab, e.dt = tab, s.Dt
	if math.Abs(e.raw.TStep - s.Dt) > 1e-6*s.Dt {
		log.Printf(
			"Kernel time step %g does not match the integration " +
				"timestep %g.", e.raw.TStep, s.Dt,
		)
	}

	k0 := e.tab.Self[0]
	e.types = make([]coeffs, len(s.Mass))
	for i, m := range s.Mass {
		x := k0 * s.Dt / (4*m)
		b := 1 / (1 + x)
		e.types[i] = coeffs{ a: (1 - x) * b, b: b }
	}

	for i := range s.F { e.fc[i] = s.F[i] }
	if err := e.rebuild(s); err != nil { return err }

	e.initialized = true
	if e.cfg.LogEvery > 0 {
		log.Printf("GLE memory usage: %d MB", e.MemoryUsage() >> 20)
	}
	return nil
}

func (e *Engine) rebuild(s *State) error {
	t0 := time.Now()
	nl, err := e.finder.Build(s.X)
	if err != nil { return err }
	if err = e.op.Rebuild(e.tab, s.X, nl, &s.Box); err != nil { return err }

	copy(e.lastBuild, e.unwrapped)
	e.stats.Rebuilds++
	e.stats.Pairs = e.op.Pairs
	e.stats.Build += time.Since(t0)
	return nil
}

// stale returns true if the operator should be rebuilt before this step.
func (e *Engine) stale() bool {
	if e.cfg.Rebuild == RebuildAlways { return true }

	limit := e.tab.DStep / 4
	cur := e.unwrapped
	for i := range cur {
		dx := cur[i][0] - e.lastBuild[i][0]
		dy := cur[i][1] - e.lastBuild[i][1]
		dz := cur[i][2] - e.lastBuild[i][2]
		if dx*dx + dy*dy + dz*dz > limit*limit { return true }
	}
	return false
}

// InitialIntegrate advances positions by one timestep. On the first call the
// kernel table is discretized by s.Dt and the first operator is built.
//
// A pair of particles closer than the kernel's lower cutoff returns a
// *kernel.TooCloseError. Numerical conditioning problems are logged and are
// not returned.
func (e *Engine) InitialIntegrate(s *State) error {
	if err := e.checkState(s); err != nil { return err }
	if e.halfStep {
		return fmt.Errorf("InitialIntegrate called twice without FinalIntegrate.")
	}

	e.nr.Draw()
	if !e.initialized {
		if err := e.initialize(s); err != nil { return err }
	} else if e.stale() {
		if err := e.rebuild(s); err != nil { return err }
	} else if err := e.op.CheckSeparation(e.tab, s.X, &s.Box); err != nil {
		return err
	}

	t0 := time.Now()
	scale := math.Sqrt(e.dt * e.cfg.Boltzmann * e.cfg.Temperature) /
		float64(e.tab.RingLen())
	err := e.gen.Generate(e.fr, e.op, e.tab, e.nr, scale)
	if fatal := warnings.FatalOnly(err); fatal != nil { return fatal }
	for _, w := range warnings.WarningsOnly(err) {
		e.stats.Warnings++
		if e.stats.Warnings <= maxLoggedWarnings {
			log.Printf("GLE step %d: %s", e.stats.Steps, w)
		}
	}
	e.stats.Solves, e.stats.LanczosIterations = e.gen.Solves, e.gen.Iterations
	t1 := time.Now()
	e.stats.Noise += t1.Sub(t0)

	if err := e.op.Dissipative(e.fd, e.tab, e.pos); err != nil { return err }
	t2 := time.Now()
	e.stats.Dissipative += t2.Sub(t1)

	dt := e.dt
	for i := range s.X {
		m := s.Mass[s.Type[i]]
		b := e.types[s.Type[i]].b
		for k := 0; k < 3; k++ {
			s.X[i][k] += b*dt*s.V[i][k] + b*dt*dt/(2*m)*e.fc[i][k] -
				b*dt/(2*m)*e.fd[3*i+k] + b*dt/(2*m)*e.fr[3*i+k]
		}
		s.Box.Wrap(&s.X[i], &s.Image[i])
	}
	s.Unwrapped(e.unwrapped)
	e.pos.Push(e.unwrapped)

	e.stats.Integrate += time.Since(t2)
	e.halfStep = true
	return nil
}

// FinalIntegrate advances velocities by one timestep using the conservative
// forces the host has written into s.F. Afterwards s.F holds the random
// force, which is the force carried into the next step.
func (e *Engine) FinalIntegrate(s *State) error {
	if err := e.checkState(s); err != nil { return err }
	if !e.halfStep {
		return fmt.Errorf("FinalIntegrate called before InitialIntegrate.")
	}

	t0 := time.Now()
	dt := e.dt
	for i := range s.V {
		m := s.Mass[s.Type[i]]
		c := e.types[s.Type[i]]
		for k := 0; k < 3; k++ {
			s.V[i][k] = c.a*s.V[i][k] + dt/(2*m)*(c.a*e.fc[i][k] + s.F[i][k]) -
				c.b*e.fd[3*i+k]/m + c.b*e.fr[3*i+k]/m
			e.fc[i][k] = s.F[i][k]
			s.F[i][k] = e.fr[3*i+k]
		}
	}
	e.stats.Integrate += time.Since(t0)

	e.halfStep = false
	e.stats.Steps++
	if e.cfg.LogEvery > 0 && e.stats.Steps % e.cfg.LogEvery == 0 {
		e.LogStats()
	}
	return nil
}

func (e *Engine) checkState(s *State) error {
	if len(s.X) != len(e.fc) {
		return fmt.Errorf(
			"Engine was created for %d particles, but the state has %d.",
			len(e.fc), len(s.X),
		)
	}
	if e.initialized {
		if s.Dt != e.dt {
			return fmt.Errorf(
				"Timestep changed from %g to %g after initialization.", e.dt, s.Dt,
			)
		} else if len(s.Mass) != len(e.types) {
			return fmt.Errorf(
				"Number of particle types changed from %d to %d.",
				len(e.types), len(s.Mass),
			)
		}
	}
	return nil
}

// LogStats writes the current statistics and heap size to the log.
func (e *Engine) LogStats() {
	log.Println(e.stats.String())
	runtime.ReadMemStats(&e.ms)
	log.Printf(
		"Alloc: %5d MB, Sys: %5d MB", e.ms.Alloc >> 20, e.ms.Sys >> 20,
	)
}

// Stats returns a copy of the engine's running statistics.
func (e *Engine) Stats() Stats { return e.stats }

// RandomForceX returns the x component of the most recent random force on
// particle i.
func (e *Engine) RandomForceX(i int) float64 { return e.fr[3*i] }

// RandomForce returns the most recent random force on particle i.
func (e *Engine) RandomForce(i int) [3]float64 {
	return [3]float64{ e.fr[3*i], e.fr[3*i+1], e.fr[3*i+2] }
}

// Coefficients returns the integration constants a and b for a particle
// type. Before the first call to InitialIntegrate, and for unknown types, it
// returns zeros.
func (e *Engine) Coefficients(typ int) (a, b float64) {
	if typ < 0 || typ >= len(e.types) { return 0, 0 }
	c := e.types[typ]
	return c.a, c.b
}

// Table returns the discretized kernel table, or nil before the first call
// to InitialIntegrate.
func (e *Engine) Table() *kernel.Table { return e.tab }

// MemoryUsage returns an estimate of the number of bytes held by the engine.
func (e *Engine) MemoryUsage() int {
	n := e.raw.MemoryUsage() + e.nr.MemoryUsage() + e.pos.MemoryUsage() +
		e.op.MemoryUsage() + e.gen.MemoryUsage()
	if e.tab != nil { n += e.tab.MemoryUsage() }
	n += 8 * (len(e.fr) + len(e.fd))
	n += 24 * (len(e.fc) + len(e.unwrapped) + len(e.lastBuild))
	return n
}
