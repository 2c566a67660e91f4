package process

import (
	"math"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// TheoreticalWV returns the theoretical Haar wavelet variance of model m at
// parameters theta, one value per scale.
//
// It is equivalent to m.WaveletVariance(theta, scales).
func TheoreticalWV(theta []float64, m Model, scales []float64) ([]float64, error) {
	return m.WaveletVariance(theta, scales)
}

// WaveletVariance returns the theoretical wavelet variance of the composite
// model: the sum over components of each component's closed-form curve
// evaluated at its slice of theta.
//
// Parameters:
//   - theta: parameter vector laid out in component order
//   - scales: Haar filter lengths, powers of two >= 2
//
// Returns:
//   - []float64: nonnegative wavelet variance, len(scales) values
//   - error: validation failure (no arithmetic is attempted on invalid input)
//
// Errors:
//   - ErrDimensionMismatch: len(theta) != m.NParams()
//   - ErrInvalidParameter: a parameter lies outside its component's domain
//   - ValueError: empty scales or a scale that is not a power of two >= 2
func (m Model) WaveletVariance(theta []float64, scales []float64) ([]float64, error) {
	if err := validateScales("Model.WaveletVariance", scales); err != nil {
		return nil, err
	}
	if err := m.Validate(theta); err != nil {
		return nil, err
	}

	out := make([]float64, len(scales))
	off := 0
	for _, c := range m.Components {
		addComponentWV(out, c.Kind, theta[off:off+c.NParams], scales)
		off += c.NParams
	}
	return out, nil
}

// ComponentWV returns the contribution of component i alone.
func (m Model) ComponentWV(i int, theta []float64, scales []float64) ([]float64, error) {
	if i < 0 || i >= len(m.Components) {
		return nil, gmwmErrors.NewValueError("Model.ComponentWV", "component index out of range")
	}
	if err := validateScales("Model.ComponentWV", scales); err != nil {
		return nil, err
	}
	if err := m.Validate(theta); err != nil {
		return nil, err
	}
	out := make([]float64, len(scales))
	addComponentWV(out, m.Components[i].Kind, m.Slice(theta, i), scales)
	return out, nil
}

func validateScales(op string, scales []float64) error {
	if len(scales) == 0 {
		return gmwmErrors.NewValueError(op, "no scales")
	}
	for _, tau := range scales {
		frac, exp := math.Frexp(tau)
		if math.IsNaN(tau) || tau < 2 || frac != 0.5 || exp < 2 {
			return gmwmErrors.NewValueError(op, "scales must be powers of two >= 2")
		}
	}
	return nil
}

// addComponentWV adds the contribution of one validated component to dst.
func addComponentWV(dst []float64, k Kind, p []float64, scales []float64) {
	for j, tau := range scales {
		var v float64
		switch k {
		case WN:
			v = p[0] / tau
		case QN:
			v = 3 * p[0] / (tau * tau)
		case RW:
			v = p[0] * (tau*tau + 2) / (12 * tau)
		case DR:
			v = p[0] * p[0] * tau * tau / 16
		case AR1:
			v = ar1WV(p[0], p[1], tau)
		case MA1:
			th := p[0]
			v = p[1] * ((1+th)*(1+th)*tau - 6*th) / (tau * tau)
		case GM:
			phi := math.Exp(-p[0])
			v = ar1WV(phi, p[1]*(1-phi*phi), tau)
		}
		// roundoff can leave a vanishing contribution slightly below zero
		dst[j] += math.Max(v, 0)
	}
}

// ar1WV is the Haar wavelet variance of an AR(1) with coefficient phi and
// innovation variance sigma2 at filter length tau = 2M.
func ar1WV(phi, sigma2, tau float64) float64 {
	m := tau / 2
	num := m - 3*phi - m*phi*phi + 4*math.Pow(phi, m+1) - math.Pow(phi, 2*m+1)
	den := 2 * m * m * (1 - phi) * (1 - phi) * (1 - phi*phi)
	return sigma2 * num / den
}
