package gmwm

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// Minimizer finds an unconstrained local minimum of f starting at x0.
// f may return +Inf at points where the objective is undefined.
type Minimizer interface {
	Minimize(f func(x []float64) float64, x0 []float64) ([]float64, error)
}

const (
	defaultMajorIterations = 5000
	defaultFuncTolerance   = 1e-12
	defaultStallIterations = 50
)

// NelderMead is the default derivative-free Minimizer.
type NelderMead struct {
	// MajorIterations caps simplex updates. Zero means 5000.
	MajorIterations int
	// Tolerance is the absolute objective improvement below which the
	// search counts as stalled. Zero means 1e-12.
	Tolerance float64
}

// Minimize implements Minimizer.
func (n NelderMead) Minimize(f func(x []float64) float64, x0 []float64) ([]float64, error) {
	return runGonum(optimize.Problem{Func: f}, x0, settings(n.MajorIterations, n.Tolerance), &optimize.NelderMead{})
}

// LBFGS is a quasi-Newton Minimizer with central finite-difference gradients.
// It suits smooth objectives with many parameters; the default Nelder-Mead is
// more forgiving near the boundary of the search domain.
type LBFGS struct {
	MajorIterations int
	Tolerance       float64
}

// Minimize implements Minimizer.
func (l LBFGS) Minimize(f func(x []float64) float64, x0 []float64) ([]float64, error) {
	p := optimize.Problem{
		Func: f,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, f, x, &fd.Settings{Formula: fd.Central})
		},
	}
	return runGonum(p, x0, settings(l.MajorIterations, l.Tolerance), &optimize.LBFGS{})
}

func settings(iterations int, tol float64) *optimize.Settings {
	if iterations <= 0 {
		iterations = defaultMajorIterations
	}
	if tol <= 0 {
		tol = defaultFuncTolerance
	}
	return &optimize.Settings{
		MajorIterations: iterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   tol,
			Iterations: defaultStallIterations,
		},
	}
}

// runGonum keeps the best location even when gonum reports a failure status,
// since an iteration or evaluation limit still leaves a usable estimate.
func runGonum(p optimize.Problem, x0 []float64, s *optimize.Settings, method optimize.Method) ([]float64, error) {
	res, err := optimize.Minimize(p, x0, s, method)
	if res != nil && finite(res.X) && !math.IsNaN(res.F) && !math.IsInf(res.F, 1) {
		return res.X, nil
	}
	if err == nil {
		err = gmwmErrors.New("minimizer returned no finite location")
	}
	return nil, gmwmErrors.Wrap(err, "gmwm: minimizer failed")
}

func finite(x []float64) bool {
	if len(x) == 0 {
		return false
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
