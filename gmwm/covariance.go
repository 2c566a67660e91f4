package gmwm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ezoic/gmwm/process"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// Jacobian returns d wv / d theta at theta, of shape len(scales) x len(theta).
//
// Every component curve is linear in its scale parameter (the variance), so
// that column is exact: the component curve with the parameter set to 1. It
// stays informative when the variance itself is 0. Other parameters use central
// differences, or a one-sided formula when a step would leave the domain.
//
// Errors:
//   - ErrInvalidParameter, ErrDimensionMismatch: theta is not admissible for m
//   - ValueError: invalid scales, or no admissible step around a parameter
func Jacobian(theta []float64, m process.Model, scales []float64) (*mat.Dense, error) {
	if _, err := m.WaveletVariance(theta, scales); err != nil {
		return nil, err
	}
	d := mat.NewDense(len(scales), len(theta), nil)
	offsets := m.Offsets()
	for i, c := range m.Components {
		for p := 0; p < c.NParams; p++ {
			k := offsets[i] + p
			var col []float64
			var err error
			if p == c.Kind.ScaleParam() {
				at := append([]float64(nil), theta...)
				at[k] = 1
				col, err = m.ComponentWV(i, at, scales)
			} else {
				col, err = differenceColumn(theta, m, i, k, scales)
			}
			if err != nil {
				return nil, err
			}
			d.SetCol(k, col)
		}
	}
	return d, nil
}

// differenceColumn differentiates component i's curve with respect to theta[k].
func differenceColumn(theta []float64, m process.Model, i, k int, scales []float64) ([]float64, error) {
	at := append([]float64(nil), theta...)
	admissible := func(x float64) bool {
		at[k] = x
		return m.Validate(at) == nil
	}

	x := theta[k]
	size := math.Max(1, math.Abs(x))
	formula := fd.Central
	up, down := admissible(x+formula.Step*size), admissible(x-formula.Step*size)
	switch {
	case up && down:
	case up:
		formula = fd.Forward
	case down:
		formula = fd.Backward
	default:
		name := m.ParamNames()[k]
		return nil, gmwmErrors.NewValueError("Jacobian", fmt.Sprintf("no admissible difference step around %s", name))
	}

	col := mat.NewDense(len(scales), 1, nil)
	fd.Jacobian(col, func(y, xs []float64) {
		at[k] = xs[0]
		wv, err := m.ComponentWV(i, at, scales)
		if err != nil {
			for j := range y {
				y[j] = math.NaN()
			}
			return
		}
		copy(y, wv)
	}, []float64{x}, &fd.JacobianSettings{Formula: formula, Step: formula.Step * size})

	out := mat.Col(nil, 0, col)
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, gmwmErrors.NewValueError("Jacobian", "non-finite derivative of the wavelet variance")
		}
	}
	return out, nil
}

// Covariance returns the asymptotic parameter covariance (D' omega D)^-1 with
// D = Jacobian(theta) in natural parameters.
//
// Errors:
//   - ErrDimensionMismatch: omega does not match scales
//   - ErrSingularInformation: D' omega D cannot be inverted, e.g. a parameter
//     has no effect on the curve at theta
func Covariance(theta []float64, m process.Model, omega mat.Symmetric, scales []float64) (_ *mat.SymDense, err error) {
	defer gmwmErrors.Recover(&err, "Covariance")

	if d := omega.SymmetricDim(); d != len(scales) {
		return nil, gmwmErrors.NewDimensionError("Covariance", len(scales), d, 0)
	}
	d, err := Jacobian(theta, m, scales)
	if err != nil {
		return nil, err
	}

	var od mat.Dense
	od.Mul(omega, d)
	var info mat.Dense
	info.Mul(d.T(), &od)
	p := len(theta)
	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for k := i; k < p; k++ {
			sym.SetSym(i, k, (info.At(i, k)+info.At(k, i))/2)
		}
	}
	return invertSPD("Covariance", sym, gmwmErrors.ErrSingularInformation)
}

// confidenceIntervals returns standard errors and the two-sided (1-alpha) bounds
// theta +/- z_{1-alpha/2} se.
func confidenceIntervals(theta []float64, cov mat.Symmetric, alpha float64) (se, lower, upper []float64) {
	z := distuv.UnitNormal.Quantile(1 - alpha/2)
	n := len(theta)
	se = make([]float64, n)
	lower = make([]float64, n)
	upper = make([]float64, n)
	for i, t := range theta {
		se[i] = math.Sqrt(math.Max(cov.At(i, i), 0))
		lower[i] = t - z*se[i]
		upper[i] = t + z*se[i]
	}
	return se, lower, upper
}
