package process

import (
	"math"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// StartingValues derives method-of-moments starting parameters from an
// empirical wavelet variance curve.
//
// Each component is anchored to the part of the curve it dominates and solved
// in closed form there:
//
//	WN   sigma2 = tau_1 nu_1                    (smallest scale, nu ~ 1/tau)
//	QN   q2     = tau_1^2 nu_1 / 3              (smallest scale, nu ~ 1/tau^2)
//	MA1  theta  = 0, sigma2 = tau_1 nu_1        (reduces to WN)
//	RW   gamma2 = 12 tau_J nu_J / (tau_J^2 + 2) (largest scale, nu ~ tau)
//	DR   omega  = 4 sqrt(nu_J) / tau_J          (largest scale, nu ~ tau^2)
//	AR1  phi solves (1+phi)/(1-phi)^2 = R with R = tau_J nu_J / (tau_1 nu_1), the
//	     ratio of long-run to lag-one variance; sigma2 matches nu_1 exactly
//	GM   as AR1 with phi restricted to (0, 1), beta = -log(phi),
//	     sigma2_gm = sigma2 / (1 - phi^2)
//
// Components sharing an anchor scale split its variance equally.
//
// Errors:
//   - ErrDimensionMismatch: len(wvEmpir) != len(scales)
//   - ValueError: invalid scales or model description
func StartingValues(wvEmpir, scales []float64, m Model) ([]float64, error) {
	if err := validateScales("StartingValues", scales); err != nil {
		return nil, err
	}
	if len(wvEmpir) != len(scales) {
		return nil, gmwmErrors.NewDimensionError("StartingValues", len(scales), len(wvEmpir), 0)
	}
	if err := m.validateDescriptors("StartingValues"); err != nil {
		return nil, err
	}

	nu := floorWV(wvEmpir)
	last := len(scales) - 1
	t1, tJ := scales[0], scales[last]
	nu1, nuJ := nu[0], nu[last]

	var small, large int
	for _, c := range m.Components {
		if anchoredHigh(c.Kind) {
			large++
		} else {
			small++
		}
	}
	share1 := nu1 / float64(max(small, 1))
	shareJ := nuJ / float64(max(large, 1))

	theta := make([]float64, 0, m.NParams())
	for _, c := range m.Components {
		switch c.Kind {
		case WN:
			theta = append(theta, t1*share1)
		case QN:
			theta = append(theta, t1*t1*share1/3)
		case MA1:
			theta = append(theta, 0, t1*share1)
		case RW:
			theta = append(theta, 12*tJ*shareJ/(tJ*tJ+2))
		case DR:
			theta = append(theta, 4*math.Sqrt(shareJ)/tJ)
		case AR1:
			phi := ar1StartPhi(tJ*nuJ/(t1*nu1), -0.99, 0.99)
			theta = append(theta, phi, share1/ar1WV(phi, 1, t1))
		case GM:
			phi := ar1StartPhi(tJ*nuJ/(t1*nu1), 0.01, 0.99)
			sigma2 := share1 / ar1WV(phi, 1, t1)
			theta = append(theta, -math.Log(phi), sigma2/(1-phi*phi))
		}
	}
	return theta, nil
}

func anchoredHigh(k Kind) bool {
	return k == RW || k == DR
}

// ar1StartPhi inverts (1+phi)/(1-phi)^2 = r, clamped to [lo, hi].
func ar1StartPhi(r, lo, hi float64) float64 {
	if !(r > 0) || math.IsInf(r, 0) {
		return hi
	}
	phi := (2*r + 1 - math.Sqrt(8*r+1)) / (2 * r)
	return math.Max(lo, math.Min(hi, phi))
}

// floorWV replaces non-positive or non-finite entries by a small positive value
// so every starting variance stays in the interior of its domain.
func floorWV(wv []float64) []float64 {
	top := 0.0
	for _, v := range wv {
		if v > top && !math.IsInf(v, 0) {
			top = v
		}
	}
	floor := top * 1e-10
	if floor == 0 {
		floor = 1e-12
	}
	out := make([]float64, len(wv))
	for i, v := range wv {
		if !(v > floor) || math.IsInf(v, 0) {
			v = floor
		}
		out[i] = v
	}
	return out
}
