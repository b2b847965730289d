/*package noise turns a history of white noise into random forces whose
temporal and spatial correlations follow a tabulated memory kernel and the
current correlation operator.
*/
package noise

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gopkg.in/warnings.v0"

	"github.com/phil-mansfield/glepair/corr"
	"github.com/phil-mansfield/glepair/kernel"
	"github.com/phil-mansfield/glepair/mat"
	"github.com/phil-mansfield/glepair/ring"
)

// Generator holds the transform plans and buffers needed to generate colored
// noise for a fixed number of degrees of freedom and kernel length.
type Generator struct {
	dof, nt, n int
	lz *mat.Lanczos
	fft *fourier.FFT

	seq []float64
	coeffs []complex128
	// Spectra of the noise history, frequency-major: index f*dof + i.
	re, im []float64
	sqRe, sqIm []float64

	// Solves and Iterations count the square root actions performed and the
	// Lanczos iterations they needed.
	Solves, Iterations int
}

// NewGenerator returns a generator for dof degrees of freedom and kernels
// with nt time samples.
func NewGenerator(dof, nt int, lz *mat.Lanczos) *Generator {
	if dof < 0 || nt < 1 {
		panic(fmt.Sprintf("Invalid generator shape dof = %d, nt = %d.", dof, nt))
	}
	n := kernel.RingLen(nt)
	return &Generator{
		dof: dof, nt: nt, n: n, lz: lz,
		fft: fourier.NewFFT(n),
		seq: make([]float64, n),
		coeffs: make([]complex128, n/2+1),
		re: make([]float64, nt*dof), im: make([]float64, nt*dof),
		sqRe: make([]float64, nt*dof), sqIm: make([]float64, nt*dof),
	}
}

// RingLen returns the depth of the noise ring the generator consumes.
func (g *Generator) RingLen() int { return g.n }

// IsFatal returns false for errors which only reduce the accuracy of the
// generated noise.
func IsFatal(err error) bool {
	_, ok := err.(*mat.ConditioningWarning)
	return !ok
}

// Generate writes one random force value per degree of freedom into dst.
//
// The noise history is transformed along the ring, each frequency is
// multiplied by the square root of the operator evaluated at that frequency,
// and the result is transformed back and multiplied by scale. The operator
// is returned to zero frequency before Generate returns.
//
// A fatal error is returned as-is. If only conditioning warnings occurred,
// the returned error is a warnings.List with a nil Fatal field and dst holds
// the best available approximation.
func (g *Generator) Generate(
	dst []float64, op *corr.Operator, tab *kernel.Table,
	nr *ring.NoiseRing, scale float64,
) error {
	if len(dst) != g.dof {
		panic("len(dst) != generator degrees of freedom")
	} else if op.Dim() != g.dof || nr.Width() != g.dof {
		panic("Operator and noise ring do not match the generator.")
	} else if nr.Depth() != g.n || tab.Nt != g.nt {
		panic("Noise ring depth does not match the kernel length.")
	}

	c := warnings.NewCollector(IsFatal)

	g.forward(nr)

	for f := 0; f < g.nt; f++ {
		if err := c.Collect(op.Rescale(tab, f)); err != nil { return err }

		lo, hi := f*g.dof, (f+1)*g.dof
		if err := g.sqrt(c, g.sqRe[lo:hi], op, g.re[lo:hi]); err != nil {
			return err
		}
		if err := g.sqrt(c, g.sqIm[lo:hi], op, g.im[lo:hi]); err != nil {
			return err
		}
	}
	if err := c.Collect(op.Rescale(tab, 0)); err != nil { return err }

	g.inverse(dst, scale)
	return c.Done()
}

func (g *Generator) sqrt(
	c *warnings.Collector, dst []float64, op mat.Operator, x []float64,
) error {
	res, err := g.lz.SqrtMulVec(dst, op, x)
	g.Solves++
	g.Iterations += res.Iterations
	return c.Collect(err)
}

// forward transforms the history of each degree of freedom. The most recent
// slot is placed at the center of the sequence, Nt - 1.
func (g *Generator) forward(nr *ring.NoiseRing) {
	for i := 0; i < g.dof; i++ {
		for t := 0; t < g.n; t++ {
			g.seq[(g.nt-1+t) % g.n] = nr.ReadRelative(t)[i]
		}
		coeffs := g.fft.Coefficients(g.coeffs, g.seq)
		for f := 0; f < g.nt; f++ {
			g.re[f*g.dof + i] = real(coeffs[f])
			g.im[f*g.dof + i] = imag(coeffs[f])
		}
	}
}

// inverse transforms the colored spectra back and keeps the first element.
func (g *Generator) inverse(dst []float64, scale float64) {
	for i := 0; i < g.dof; i++ {
		for f := 0; f < g.nt; f++ {
			g.coeffs[f] = complex(g.sqRe[f*g.dof + i], g.sqIm[f*g.dof + i])
		}
		seq := g.fft.Sequence(g.seq, g.coeffs)
		dst[i] = seq[0] * scale
	}
}

// MemoryUsage returns the approximate number of bytes used by the
// generator's buffers, including its Lanczos workspace.
func (g *Generator) MemoryUsage() int {
	return 8*(len(g.seq) + len(g.re) + len(g.im) + len(g.sqRe) + len(g.sqIm)) +
		16*len(g.coeffs) + g.lz.MemoryUsage()
}
