package gmwm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ezoic/gmwm/core/parallel"
	"github.com/ezoic/gmwm/process"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
	"github.com/ezoic/gmwm/wvar"
)

// maxCond bounds the condition number of a correlation-scaled matrix before inversion.
const maxCond = 1e12

// FastV returns the diagonal approximation V_jj = 2 nu_j^2 / eta_j of the
// covariance of the empirical wavelet variance, where nu_j is wv at scale j
// and eta_j the equivalent degrees of freedom of a series of length n.
func FastV(wv, scales []float64, n int) (*mat.SymDense, error) {
	if len(wv) != len(scales) {
		return nil, gmwmErrors.NewDimensionError("FastV", len(scales), len(wv), 0)
	}
	if n < 1 {
		return nil, gmwmErrors.NewValueError("FastV", "sample size must be positive")
	}
	v := mat.NewSymDense(len(wv), nil)
	for j, nu := range wv {
		v.SetSym(j, j, 2*nu*nu/wvar.EquivalentDOF(n, scales[j]))
	}
	return v, nil
}

// boundsV returns a diagonal V from confidence bounds, treating the half width
// of each interval as z_{1-alpha/2} standard deviations.
func boundsV(emp *wvar.Empirical) *mat.SymDense {
	alpha := emp.Alpha
	if !(alpha > 0 && alpha < 1) {
		alpha = 0.05
	}
	z := distuv.UnitNormal.Quantile(1 - alpha/2)
	v := mat.NewSymDense(emp.Len(), nil)
	for j := range emp.Scales {
		sd := (emp.Upper[j] - emp.Lower[j]) / (2 * z)
		v.SetSym(j, j, sd*sd)
	}
	return v
}

// initialV is the weighting used before any parameter estimate exists.
func initialV(emp *wvar.Empirical) (*mat.SymDense, error) {
	if emp.HasBounds() {
		return boundsV(emp), nil
	}
	return FastV(emp.Variance, emp.Scales, emp.N)
}

// BootstrapV estimates V as the sample covariance of g parametric bootstrap
// replicates of the model at theta. Replicate i simulates a series of length n
// from a PCG stream seeded by (seed, i) and is independent of every other
// replicate, so the result does not depend on the number of workers.
//
// Errors:
//   - ErrSingularWeighting: g <= len(scales), or the sample covariance is rank deficient
//   - context errors when ctx is cancelled between replicates
func BootstrapV(ctx context.Context, theta []float64, m process.Model, n int, scales []float64, cfg Config) (*mat.SymDense, error) {
	j := len(scales)
	if cfg.G <= j {
		return nil, gmwmErrors.NewModelError("BootstrapV",
			"need more replicates than scales", gmwmErrors.ErrSingularWeighting)
	}
	if math.Ldexp(1, j) > float64(n) {
		return nil, gmwmErrors.NewValueError("BootstrapV", "sample size too small for the scales")
	}
	est := cfg.estimator()

	reps := make([][]float64, cfg.G)
	err := parallel.Map(ctx, cfg.G, cfg.workers(), func(_ context.Context, i int) error {
		path, err := process.Simulate(theta, m, n, rand.NewPCG(cfg.Seed, uint64(i)))
		if err != nil {
			return err
		}
		emp, err := est.Estimate(path, j)
		if err != nil {
			return err
		}
		if !floats.Equal(emp.Scales, scales) {
			return gmwmErrors.NewValueError("BootstrapV", "estimator scales differ from the fit scales")
		}
		reps[i] = emp.Variance
		return nil
	})
	if err != nil {
		return nil, err
	}

	x := mat.NewDense(cfg.G, j, nil)
	for i, r := range reps {
		x.SetRow(i, r)
	}
	v := mat.NewSymDense(j, nil)
	stat.CovarianceMatrix(v, x, nil)
	return v, nil
}

// invertV returns V^-1, failing with ErrSingularWeighting.
func invertV(op string, v mat.Symmetric) (*mat.SymDense, error) {
	return invertSPD(op, v, gmwmErrors.ErrSingularWeighting)
}

// invertSPD inverts a symmetric positive definite matrix, wrapping failures in
// sentinel. The matrix is rescaled to its correlation matrix first so the
// condition check is independent of the scale of its entries.
func invertSPD(op string, v mat.Symmetric, sentinel error) (*mat.SymDense, error) {
	n := v.SymmetricDim()
	d := make([]float64, n)
	for i := range d {
		vi := v.At(i, i)
		if !(vi > 0) || math.IsInf(vi, 0) {
			return nil, gmwmErrors.NewModelError(op, fmt.Sprintf("non-positive diagonal entry %d", i), sentinel)
		}
		d[i] = 1 / math.Sqrt(vi)
	}
	corr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for k := i; k < n; k++ {
			corr.SetSym(i, k, v.At(i, k)*d[i]*d[k])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(corr); !ok {
		return nil, gmwmErrors.NewModelError(op, "matrix is not positive definite", sentinel)
	}
	if c := chol.Cond(); math.IsNaN(c) || c > maxCond {
		return nil, gmwmErrors.NewModelError(op, "matrix is ill-conditioned", sentinel)
	}
	inv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, gmwmErrors.NewModelError(op, "inversion failed", sentinel)
	}
	for i := 0; i < n; i++ {
		for k := i; k < n; k++ {
			inv.SetSym(i, k, inv.At(i, k)*d[i]*d[k])
		}
	}
	return inv, nil
}

func scaleSym(s float64, a mat.Symmetric) *mat.SymDense {
	out := mat.NewSymDense(a.SymmetricDim(), nil)
	out.ScaleSym(s, a)
	return out
}
