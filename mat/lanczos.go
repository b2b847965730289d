package mat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	gonum "gonum.org/v1/gonum/mat"
)

const (
	// breakdownTol is the relative size of a Lanczos off-diagonal below
	// which the Krylov space is treated as invariant.
	breakdownTol = 1e-12
	// negativeTol is the relative size of a negative Ritz value which is
	// still considered to be rounding error.
	negativeTol = 1e-10
)

// ConditioningWarning reports that a square root action was only
// approximated. The result is still usable.
type ConditioningWarning struct {
	Iterations int
	// Change is the relative change in the solution at the last iteration.
	Change float64
	// MinEigenvalue is the most negative Ritz value that was clamped to zero.
	MinEigenvalue float64
	Converged, Clamped bool
}

func (w *ConditioningWarning) Error() string {
	switch {
	case w.Clamped && !w.Converged:
		return fmt.Sprintf(
			"Lanczos did not converge after %d iterations (relative change " +
				"%.3g) and clamped a negative eigenvalue %.3g to zero.",
			w.Iterations, w.Change, w.MinEigenvalue,
		)
	case w.Clamped:
		return fmt.Sprintf(
			"Lanczos clamped a negative eigenvalue %.3g to zero.",
			w.MinEigenvalue,
		)
	default:
		return fmt.Sprintf(
			"Lanczos did not converge after %d iterations (relative change " +
				"%.3g).", w.Iterations, w.Change,
		)
	}
}

// Result describes a single square root action.
type Result struct {
	Iterations int
	Change, MinEigenvalue float64
	Converged, Clamped bool
}

// Lanczos computes dst = sqrt(A) x for symmetric positive semi-definite
// operators A using only products with A. It keeps its workspace between
// calls and must not be used by more than one goroutine at a time.
type Lanczos struct {
	// MaxIter is the maximum dimension of the Krylov space.
	MaxIter int
	// Tol is the relative change in the solution between iterations below
	// which the iteration stops.
	Tol float64

	basis [][]float64
	alpha, beta, y, yPrev []float64
	w []float64
	eig gonum.EigenSym
	vecs gonum.Dense
}

// NewLanczos returns a Lanczos solver with the given iteration limit and
// tolerance.
func NewLanczos(maxIter int, tol float64) *Lanczos {
	if maxIter < 1 { panic("maxIter must be positive.") }
	return &Lanczos{ MaxIter: maxIter, Tol: tol }
}

// SqrtMulVec sets dst = sqrt(A) x. dst and x must not overlap.
//
// A must be symmetric positive semi-definite. Negative Ritz values of the
// projected operator are clamped to zero. If that happens, or if the
// iteration stops at MaxIter without meeting Tol, the returned error is a
// *ConditioningWarning and dst holds the best available approximation. Any
// other error means dst is invalid.
func (lz *Lanczos) SqrtMulVec(dst []float64, a Operator, x []float64) (
	Result, error,
) {
	n := a.Dim()
	if len(dst) != n {
		panic("len(dst) != a.Dim()")
	} else if len(x) != n {
		panic("len(x) != a.Dim()")
	}

	res := Result{}
	beta0 := floats.Norm(x, 2)
	if beta0 == 0 || n == 0 {
		for i := range dst { dst[i] = 0 }
		res.Converged = true
		return res, nil
	}

	maxIter := lz.MaxIter
	if maxIter > n { maxIter = n }
	lz.resize(n, maxIter)

	v0 := lz.basis[0]
	floats.ScaleTo(v0, 1/beta0, x)

	k := 0
	for k < maxIter {
		v := lz.basis[k]
		w := lz.w
		a.MulVec(w, v)

		lz.alpha[k] = floats.Dot(w, v)
		floats.AddScaled(w, -lz.alpha[k], v)
		if k > 0 { floats.AddScaled(w, -lz.beta[k-1], lz.basis[k-1]) }

		// Full reorthogonalization.
		for j := 0; j <= k; j++ {
			floats.AddScaled(w, -floats.Dot(w, lz.basis[j]), lz.basis[j])
		}
		lz.beta[k] = floats.Norm(w, 2)
		k++

		minEig, err := lz.sqrtTridiagE1(k)
		if err != nil { return res, err }
		if minEig < res.MinEigenvalue { res.MinEigenvalue = minEig }

		res.Iterations = k
		if k > 1 {
			yNorm := floats.Norm(lz.y[:k], 2)
			lz.yPrev[k-1] = 0
			diff := floats.Distance(lz.y[:k], lz.yPrev[:k], 2)
			if yNorm > 0 {
				res.Change = diff / yNorm
			} else {
				res.Change = diff
			}
			if res.Change <= lz.Tol {
				res.Converged = true
				break
			}
		}
		copy(lz.yPrev[:k], lz.y[:k])

		scale := math.Abs(lz.alpha[k-1])
		if k > 1 { scale += lz.beta[k-2] }
		if lz.beta[k-1] <= breakdownTol*scale || k == n {
			// The Krylov space is invariant, so the projection is exact.
			res.Converged = true
			break
		}
		if k < maxIter {
			floats.ScaleTo(lz.basis[k], 1/lz.beta[k-1], w)
		}
	}

	for i := range dst { dst[i] = 0 }
	for j := 0; j < k; j++ {
		floats.AddScaled(dst, beta0*lz.y[j], lz.basis[j])
	}

	res.Clamped = res.MinEigenvalue < 0
	if !res.Converged || res.Clamped {
		return res, &ConditioningWarning{
			Iterations: res.Iterations, Change: res.Change,
			MinEigenvalue: res.MinEigenvalue,
			Converged: res.Converged, Clamped: res.Clamped,
		}
	}
	return res, nil
}

// sqrtTridiagE1 sets lz.y[:k] = sqrt(T) e1, where T is the k x k Lanczos
// tridiagonal matrix. Ritz values below rounding error are clamped to zero
// and the most negative one is returned. Values within rounding error of
// zero are clamped silently and reported as zero.
func (lz *Lanczos) sqrtTridiagE1(k int) (minEig float64, err error) {
	t := gonum.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		t.SetSym(i, i, lz.alpha[i])
		if i + 1 < k { t.SetSym(i, i+1, lz.beta[i]) }
	}

	if ok := lz.eig.Factorize(t, true); !ok {
		return 0, fmt.Errorf(
			"Could not diagonalize %d x %d Lanczos matrix.", k, k,
		)
	}
	vals := lz.eig.Values(nil)
	lz.vecs.Reset()
	lz.eig.VectorsTo(&lz.vecs)

	maxAbs := 0.0
	for _, l := range vals {
		if math.Abs(l) > maxAbs { maxAbs = math.Abs(l) }
	}

	y := lz.y[:k]
	for i := range y { y[i] = 0 }
	for j, l := range vals {
		if l < -negativeTol*maxAbs && l < minEig { minEig = l }
		if l <= 0 { continue }
		c := math.Sqrt(l) * lz.vecs.At(0, j)
		for i := range y { y[i] += c * lz.vecs.At(i, j) }
	}
	return minEig, nil
}

func (lz *Lanczos) resize(n, maxIter int) {
	if len(lz.w) != n || len(lz.basis) < maxIter {
		lz.basis = make([][]float64, maxIter)
		for i := range lz.basis { lz.basis[i] = make([]float64, n) }
		lz.w = make([]float64, n)
	}
	if len(lz.alpha) < maxIter {
		lz.alpha = make([]float64, maxIter)
		lz.beta = make([]float64, maxIter)
		lz.y = make([]float64, maxIter)
		lz.yPrev = make([]float64, maxIter)
	}
}

// MemoryUsage returns the approximate number of bytes held in the solver's
// workspace.
func (lz *Lanczos) MemoryUsage() int {
	n := len(lz.w)
	for _, b := range lz.basis { n += len(b) }
	return 8 * (n + 4*len(lz.alpha))
}
