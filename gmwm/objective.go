package gmwm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/gmwm/process"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// Objective returns the GMWM criterion r' omega r with r = wvEmpir - wv(theta).
//
// When starting is true theta is in search coordinates (see process.Model.Transform)
// and is mapped back to natural parameters first. Objective does not modify its
// arguments and may be called concurrently.
//
// Errors:
//   - ErrDimensionMismatch: len(wvEmpir), len(scales) and the order of omega disagree,
//     or theta does not match the model
//   - ErrInvalidParameter: theta outside the admissible domain
func Objective(theta []float64, m process.Model, wvEmpir []float64, omega mat.Symmetric, scales []float64, starting bool) (float64, error) {
	if err := checkMoments("Objective", wvEmpir, omega, scales); err != nil {
		return 0, err
	}
	nat, err := natural(theta, m, starting)
	if err != nil {
		return 0, err
	}
	r, err := residual(nat, m, wvEmpir, scales)
	if err != nil {
		return 0, err
	}
	return quadForm(r, omega), nil
}

// Engine minimizes Objective over theta and returns the optimum in natural
// parameters. starting has the same meaning as in Objective and applies to the
// input theta only. The returned estimate is never worse than the start.
func Engine(theta []float64, m process.Model, wvEmpir []float64, omega mat.Symmetric, scales []float64, starting bool, minimizer Minimizer) ([]float64, error) {
	if err := checkMoments("Engine", wvEmpir, omega, scales); err != nil {
		return nil, err
	}
	u0, err := search(theta, m, starting)
	if err != nil {
		return nil, err
	}
	if minimizer == nil {
		minimizer = NelderMead{}
	}
	crit := func(nat []float64) (float64, error) {
		r, err := residual(nat, m, wvEmpir, scales)
		if err != nil {
			return 0, err
		}
		return quadForm(r, omega), nil
	}
	est, _, err := minimize(crit, m, u0, minimizer)
	return est, err
}

// criterion evaluates an objective at natural parameters.
type criterion func(theta []float64) (float64, error)

// minimize runs minimizer over search coordinates starting at u0 and returns the
// natural-parameter optimum with its criterion value.
func minimize(crit criterion, m process.Model, u0 []float64, minimizer Minimizer) ([]float64, float64, error) {
	f := func(u []float64) float64 {
		nat, err := m.Untransform(u)
		if err != nil {
			return math.Inf(1)
		}
		v, err := crit(nat)
		if err != nil || math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}

	start, err := m.Untransform(u0)
	if err != nil {
		return nil, 0, err
	}
	f0, err := crit(start)
	if err != nil {
		return nil, 0, err
	}

	u, err := minimizer.Minimize(f, append([]float64(nil), u0...))
	if err != nil {
		return nil, 0, gmwmErrors.NewModelError("Engine", "minimization failed", err)
	}
	est, err := m.Untransform(u)
	if err != nil {
		return nil, 0, err
	}
	fx, err := crit(est)
	if err != nil || !(fx <= f0) {
		return start, f0, nil
	}
	return est, fx, nil
}

// natural returns theta in natural coordinates, validated.
func natural(theta []float64, m process.Model, starting bool) ([]float64, error) {
	if !starting {
		if err := m.Validate(theta); err != nil {
			return nil, err
		}
		return theta, nil
	}
	nat, err := m.Untransform(theta)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(nat); err != nil {
		return nil, err
	}
	return nat, nil
}

// search returns theta in search coordinates.
func search(theta []float64, m process.Model, starting bool) ([]float64, error) {
	if starting {
		if _, err := natural(theta, m, true); err != nil {
			return nil, err
		}
		return append([]float64(nil), theta...), nil
	}
	return m.Transform(theta)
}

func residual(theta []float64, m process.Model, wvEmpir, scales []float64) ([]float64, error) {
	wv, err := m.WaveletVariance(theta, scales)
	if err != nil {
		return nil, err
	}
	for j := range wv {
		wv[j] = wvEmpir[j] - wv[j]
	}
	return wv, nil
}

func quadForm(r []float64, omega mat.Symmetric) float64 {
	v := mat.NewVecDense(len(r), r)
	return mat.Inner(v, omega, v)
}

func checkMoments(op string, wvEmpir []float64, omega mat.Symmetric, scales []float64) error {
	if len(scales) == 0 {
		return gmwmErrors.NewModelError(op, "no scales", gmwmErrors.ErrEmptyData)
	}
	if len(wvEmpir) != len(scales) {
		return gmwmErrors.NewDimensionError(op, len(scales), len(wvEmpir), 0)
	}
	if omega == nil {
		return gmwmErrors.NewValueError(op, "weighting matrix is nil")
	}
	if n := omega.SymmetricDim(); n != len(scales) {
		return gmwmErrors.NewDimensionError(op+".omega", len(scales), n, 0)
	}
	return nil
}
