package process

import (
	"math"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// Search coordinates map each component's admissible domain onto the real line
// so an unconstrained minimizer can be used:
//
//	variances, beta   u = log(v)
//	phi, theta (|x|<1) u = 2 atanh(x)
//	drift omega       u = omega

const maxCoef = 1 - 1e-15

type coordinate int

const (
	coordLog coordinate = iota
	coordTanh
	coordIdentity
)

func coordinates(k Kind) []coordinate {
	switch k {
	case DR:
		return []coordinate{coordIdentity}
	case AR1, MA1:
		return []coordinate{coordTanh, coordLog}
	case GM:
		return []coordinate{coordLog, coordLog}
	default:
		return []coordinate{coordLog}
	}
}

// Transform maps natural parameters to search coordinates. Zero variances are
// floored at the smallest positive float so the result stays finite.
func (m Model) Transform(theta []float64) ([]float64, error) {
	if err := m.Validate(theta); err != nil {
		return nil, err
	}
	u := make([]float64, len(theta))
	m.eachCoord(func(i int, c coordinate) {
		switch c {
		case coordLog:
			u[i] = math.Log(math.Max(theta[i], math.SmallestNonzeroFloat64))
		case coordTanh:
			u[i] = 2 * math.Atanh(clampCoef(theta[i]))
		default:
			u[i] = theta[i]
		}
	})
	return u, nil
}

// Untransform maps search coordinates back to natural parameters. The result
// may still fail Validate when u overflows (e.g. exp(u) = +Inf).
func (m Model) Untransform(u []float64) ([]float64, error) {
	if err := m.validateDescriptors("Model.Untransform"); err != nil {
		return nil, err
	}
	if len(u) != m.NParams() {
		return nil, gmwmErrors.NewDimensionError("Model.Untransform", m.NParams(), len(u), 0)
	}
	theta := make([]float64, len(u))
	m.eachCoord(func(i int, c coordinate) {
		switch c {
		case coordLog:
			theta[i] = math.Exp(u[i])
		case coordTanh:
			theta[i] = clampCoef(math.Tanh(u[i] / 2))
		default:
			theta[i] = u[i]
		}
	})
	return theta, nil
}

func (m Model) eachCoord(fn func(i int, c coordinate)) {
	i := 0
	for _, comp := range m.Components {
		for _, c := range coordinates(comp.Kind) {
			fn(i, c)
			i++
		}
	}
}

func clampCoef(x float64) float64 {
	return math.Max(-maxCoef, math.Min(maxCoef, x))
}
