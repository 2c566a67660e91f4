package process

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// Simulate generates a path of length n of the composite model at theta, the
// sum of independent paths of each component. All randomness is drawn from
// src, so a fixed source reproduces the same path.
//
// Component paths:
//   - WN: iid N(0, sigma2)
//   - QN: sqrt(6 q2) (U_t - U_{t-1}), U iid uniform(0, 1)
//   - RW: cumulative sum of iid N(0, gamma2)
//   - DR: omega * t, t = 1..n
//   - AR1: stationary start N(0, sigma2/(1-phi^2)), x_t = phi x_{t-1} + e_t
//   - MA1: x_t = e_t + theta e_{t-1}
//   - GM: AR1 with phi = exp(-beta), innovation variance sigma2_gm (1 - phi^2)
func Simulate(theta []float64, m Model, n int, src rand.Source) ([]float64, error) {
	if n <= 0 {
		return nil, gmwmErrors.NewValueError("Simulate", "n must be positive")
	}
	if err := m.Validate(theta); err != nil {
		return nil, err
	}

	out := make([]float64, n)
	off := 0
	for _, c := range m.Components {
		p := theta[off : off+c.NParams]
		off += c.NParams
		addComponentPath(out, c.Kind, p, src)
	}
	return out, nil
}

func addComponentPath(dst []float64, k Kind, p []float64, src rand.Source) {
	normal := func(variance float64) distuv.Normal {
		return distuv.Normal{Mu: 0, Sigma: math.Sqrt(variance), Src: src}
	}

	switch k {
	case WN:
		e := normal(p[0])
		for t := range dst {
			dst[t] += e.Rand()
		}
	case QN:
		u := distuv.Uniform{Min: 0, Max: 1, Src: src}
		scale := math.Sqrt(6 * p[0])
		prev := u.Rand()
		for t := range dst {
			cur := u.Rand()
			dst[t] += scale * (cur - prev)
			prev = cur
		}
	case RW:
		e := normal(p[0])
		level := 0.0
		for t := range dst {
			level += e.Rand()
			dst[t] += level
		}
	case DR:
		for t := range dst {
			dst[t] += p[0] * float64(t+1)
		}
	case AR1:
		addAR1Path(dst, p[0], p[1], src)
	case MA1:
		e := normal(p[1])
		prev := e.Rand()
		for t := range dst {
			cur := e.Rand()
			dst[t] += cur + p[0]*prev
			prev = cur
		}
	case GM:
		phi := math.Exp(-p[0])
		addAR1Path(dst, phi, p[1]*(1-phi*phi), src)
	}
}

func addAR1Path(dst []float64, phi, sigma2 float64, src rand.Source) {
	e := distuv.Normal{Mu: 0, Sigma: math.Sqrt(sigma2), Src: src}
	x := distuv.Normal{Mu: 0, Sigma: math.Sqrt(sigma2 / (1 - phi*phi)), Src: src}.Rand()
	for t := range dst {
		if t > 0 {
			x = phi*x + e.Rand()
		}
		dst[t] += x
	}
}
