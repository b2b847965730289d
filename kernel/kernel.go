/*package kernel stores tabulated self- and cross-correlation memory kernels
and their one-sided spectra.

A kernel series K(t) sampled at Nt times is mirrored into an even sequence of
length N = 2*Nt - 2 before transforming, so that the spectrum is real and can
be used directly as a frequency-dependent scale factor.
*/
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SelfTag is the tag used for the self-kernel in place of a distance bin.
const SelfTag = -1

// Grid describes the uniform distance and time axes of a kernel table.
type Grid struct {
	DStart, DStep, DStop float64
	TStart, TStep, TStop float64
	// Niter is carried along from kernel files but is unused by the engine.
	Niter int
}

// DefaultGrid returns a grid with the default time axis used by kernel files
// which do not specify one. The distance axis must always be given.
func DefaultGrid() Grid {
	return Grid{ TStart: 0, TStep: 0.05, TStop: 5, Niter: 500 }
}

// CheckInit returns an error if the grid bounds are inconsistent.
func (g *Grid) CheckInit() error {
	switch {
	case !(g.DStep > 0):
		return fmt.Errorf("dStep must be positive, but is %g.", g.DStep)
	case !(g.TStep > 0):
		return fmt.Errorf("tStep must be positive, but is %g.", g.TStep)
	case !(g.DStop > g.DStart):
		return fmt.Errorf(
			"dStop must be > dStart, but dStart = %g and dStop = %g.",
			g.DStart, g.DStop,
		)
	case !(g.TStop > g.TStart):
		return fmt.Errorf(
			"tStop must be > tStart, but tStart = %g and tStop = %g.",
			g.TStart, g.TStop,
		)
	case g.DStart < 0:
		return fmt.Errorf("dStart must be non-negative, but is %g.", g.DStart)
	}

	for _, x := range []float64{
		g.DStart, g.DStep, g.DStop, g.TStart, g.TStep, g.TStop,
	} {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return fmt.Errorf("Kernel grid %+v contains non-finite bounds.", *g)
		}
	}
	return nil
}

// Nd returns the number of distance bins.
func (g *Grid) Nd() int { return int((g.DStop - g.DStart) / g.DStep + 1.5) }

// Nt returns the number of time samples.
func (g *Grid) Nt() int { return int((g.TStop - g.TStart) / g.TStep + 1.5) }

// Distance returns the distance of the lower edge of bin d.
func (g *Grid) Distance(d int) float64 { return g.DStart + float64(d)*g.DStep }

// Time returns the time of sample t.
func (g *Grid) Time(t int) float64 { return g.TStart + float64(t)*g.TStep }

// Table holds the time-domain kernels and their spectra. Tables are never
// modified after construction.
type Table struct {
	Grid
	Nt, Nd int

	Self, SelfFT []float64
	// Cross and CrossFT are distance-major: bin d occupies [d*Nt, (d+1)*Nt).
	Cross, CrossFT []float64
}

// NewTable creates a kernel table from a self-kernel with one value per time
// sample and a cross-kernel with one such series per distance bin. The
// inputs are copied.
func NewTable(g Grid, self []float64, cross [][]float64) (*Table, error) {
	if err := g.CheckInit(); err != nil { return nil, err }
	nt, nd := g.Nt(), g.Nd()
	if nt < 1 || nd < 1 {
		return nil, fmt.Errorf("Kernel grid gives Nt = %d and Nd = %d.", nt, nd)
	}

	if len(self) != nt {
		return nil, fmt.Errorf(
			"Self-kernel has %d time samples, but the grid has Nt = %d.",
			len(self), nt,
		)
	} else if len(cross) != nd {
		return nil, fmt.Errorf(
			"Cross-kernel has %d distance bins, but the grid has Nd = %d.",
			len(cross), nd,
		)
	}

	t := &Table{ Grid: g, Nt: nt, Nd: nd }
	t.Self = make([]float64, nt)
	t.Cross = make([]float64, nt*nd)
	copy(t.Self, self)
	for d := range cross {
		if len(cross[d]) != nt {
			return nil, fmt.Errorf(
				"Cross-kernel bin %d has %d time samples, but Nt = %d.",
				d, len(cross[d]), nt,
			)
		}
		copy(t.Cross[d*nt: (d+1)*nt], cross[d])
	}

	for i, x := range t.Self {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, fmt.Errorf("Self-kernel value %d is %g.", i, x)
		}
	}
	for i, x := range t.Cross {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, fmt.Errorf(
				"Cross-kernel value (%d, %d) is %g.", i/nt, i%nt, x,
			)
		}
	}

	t.transform()
	return t, nil
}

// Discretize returns a new table whose amplitudes are multiplied by the
// timestep dt, which is the form consumed by the integrator.
func (t *Table) Discretize(dt float64) (*Table, error) {
	if !(dt > 0) {
		return nil, fmt.Errorf("Timestep must be positive, but is %g.", dt)
	}

	self := make([]float64, t.Nt)
	for i := range self { self[i] = t.Self[i] * dt }
	cross := make([][]float64, t.Nd)
	for d := range cross {
		cross[d] = make([]float64, t.Nt)
		for i := range cross[d] { cross[d][i] = t.Cross[d*t.Nt+i] * dt }
	}

	return NewTable(t.Grid, self, cross)
}

// RingLen returns the length of the even extension, N = 2*Nt - 2. A table
// with a single time sample has an extension of length 1.
func (t *Table) RingLen() int { return RingLen(t.Nt) }

// RingLen returns the even-extension length for nt time samples.
func RingLen(nt int) int {
	if nt == 1 { return 1 }
	return 2*nt - 2
}

// transform computes SelfFT and CrossFT.
func (t *Table) transform() {
	n := t.RingLen()
	fft := fourier.NewFFT(n)
	buf := make([]float64, n)
	coeffs := make([]complex128, n/2+1)

	t.SelfFT = make([]float64, t.Nt)
	t.CrossFT = make([]float64, t.Nt*t.Nd)

	evenSpectrum(fft, t.Self, buf, coeffs, t.SelfFT)
	for d := 0; d < t.Nd; d++ {
		lo, hi := d*t.Nt, (d+1)*t.Nt
		evenSpectrum(fft, t.Cross[lo:hi], buf, coeffs, t.CrossFT[lo:hi])
	}
}

// evenSpectrum mirrors k into buf, transforms it, and writes the real part
// of the first len(k) coefficients into out.
func evenSpectrum(
	fft *fourier.FFT, k, buf []float64, coeffs []complex128, out []float64,
) {
	n := len(buf)
	for i := range buf { buf[i] = 0 }
	for i := range k {
		buf[i] = k[i]
		if i != 0 && i != len(k)-1 { buf[n-i] = k[i] }
	}

	coeffs = fft.Coefficients(coeffs, buf)
	for i := range out { out[i] = real(coeffs[i]) }
}

// Bin returns the distance bin of a pair separated by r. ok is false if the
// pair is at or beyond DStop or past the last tabulated bin, in which case
// it contributes no cross-term. A pair closer than DStart is an error.
func (t *Table) Bin(r float64) (bin int, ok bool, err error) {
	if r < t.DStart || math.IsNaN(r) {
		return -1, false, &TooCloseError{ R: r, DStart: t.DStart, I: -1, J: -1 }
	}
	if r >= t.DStop { return -1, false, nil }

	bin = int(math.Floor((r - t.DStart) / t.DStep))
	if bin >= t.Nd { return -1, false, nil }
	return bin, true, nil
}

// Spectrum returns the spectrum associated with a tag. The returned slice
// must not be modified.
func (t *Table) Spectrum(tag int) ([]float64, error) {
	if tag == SelfTag { return t.SelfFT, nil }
	if tag < 0 || tag >= t.Nd {
		return nil, &TagError{ Tag: tag, Nd: t.Nd }
	}
	return t.CrossFT[tag*t.Nt: (tag+1)*t.Nt], nil
}

// Kernel returns the time-domain kernel associated with a tag. The returned
// slice must not be modified.
func (t *Table) Kernel(tag int) ([]float64, error) {
	if tag == SelfTag { return t.Self, nil }
	if tag < 0 || tag >= t.Nd {
		return nil, &TagError{ Tag: tag, Nd: t.Nd }
	}
	return t.Cross[tag*t.Nt: (tag+1)*t.Nt], nil
}

// MinSpectrum returns the smallest spectral value in the table along with
// its tag and frequency. A negative value means that the correlation
// operator cannot be positive semi-definite at that frequency.
func (t *Table) MinSpectrum() (min float64, tag, f int) {
	min, tag, f = t.SelfFT[0], SelfTag, 0
	for i, x := range t.SelfFT {
		if x < min { min, tag, f = x, SelfTag, i }
	}
	for i, x := range t.CrossFT {
		if x < min { min, tag, f = x, i/t.Nt, i%t.Nt }
	}
	return min, tag, f
}

// MemoryUsage returns the approximate number of bytes held by the table.
func (t *Table) MemoryUsage() int {
	return 8 * (len(t.Self) + len(t.SelfFT) + len(t.Cross) + len(t.CrossFT))
}
