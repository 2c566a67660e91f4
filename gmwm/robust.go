package gmwm

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// HuberConstant returns the threshold c at which a Huber-type scale estimator
// with chi(z) = min(z^2, c^2) reaches Gaussian efficiency eff relative to the
// sample variance. eff = 1 returns +Inf, the classical quadratic loss.
func HuberConstant(eff float64) (float64, error) {
	if !(eff > 0 && eff <= 1) {
		return 0, gmwmErrors.NewValueError("HuberConstant", "efficiency must lie in (0, 1]")
	}
	if eff == 1 {
		return math.Inf(1), nil
	}
	lo, hi := 1e-3, 20.0
	if eff <= huberEfficiency(lo) {
		return lo, nil
	}
	for i := 0; i < 200 && hi-lo > 1e-12; i++ {
		mid := (lo + hi) / 2
		if huberEfficiency(mid) < eff {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, nil
}

// huberEfficiency is (2 m2)^2 / (2 Var(chi(Z))) for Z ~ N(0, 1), with
// m2 = E[Z^2; |Z| < c]. It increases monotonically from 0 to 1 in c.
func huberEfficiency(c float64) float64 {
	n := distuv.UnitNormal
	inside := 2*n.CDF(c) - 1
	tail := 2 * n.Survival(c)
	dens := n.Prob(c)

	m2 := inside - 2*c*dens
	m4 := 3*inside - 2*dens*(c*c*c+3*c)
	e1 := m2 + c*c*tail
	e2 := m4 + c*c*c*c*tail
	return (2 * m2) * (2 * m2) / (2 * (e2 - e1*e1))
}

// huberRho is the Huber loss scaled so that rho(z) = z^2 inside [-c, c].
func huberRho(z, c float64) float64 {
	a := math.Abs(z)
	if a <= c {
		return z * z
	}
	return 2*c*a - c*c
}

// robustLoss evaluates the bounded-influence criterion for residuals r.
type robustLoss struct {
	omega  mat.Symmetric
	sd     []float64 // sqrt(V_jj)
	c      float64
	scale  float64 // expectDiff, or 1
	ranged float64 // clipping bound, 0 disables
}

func newRobustLoss(v, omega mat.Symmetric, eff, expectDiff, ranged float64) (*robustLoss, error) {
	c, err := HuberConstant(eff)
	if err != nil {
		return nil, err
	}
	n := v.SymmetricDim()
	sd := make([]float64, n)
	for j := range sd {
		sd[j] = math.Sqrt(v.At(j, j))
	}
	scale := expectDiff
	if !(scale > 0) {
		scale = 1
	}
	return &robustLoss{omega: omega, sd: sd, c: c, scale: scale, ranged: ranged}, nil
}

// weights returns w_j = sqrt(rho_c(clip(z_j))) / |z_j| with z_j the
// standardized residual; w_j = 1 inside the threshold.
func (l *robustLoss) weights(r []float64) []float64 {
	w := make([]float64, len(r))
	for j, rj := range r {
		z := rj / (l.sd[j] * l.scale)
		zc := z
		if l.ranged > 0 {
			zc = math.Max(-l.ranged, math.Min(l.ranged, zc))
		}
		if z == 0 || math.IsNaN(z) {
			w[j] = 1
			continue
		}
		w[j] = math.Sqrt(huberRho(zc, l.c)) / math.Abs(z)
	}
	return w
}

// value returns (W r)' Omega (W r).
func (l *robustLoss) value(r []float64) float64 {
	w := l.weights(r)
	wr := make([]float64, len(r))
	for j := range r {
		wr[j] = w[j] * r[j]
	}
	return quadForm(wr, l.omega)
}

// effectiveOmega returns W Omega W at residuals r.
func (l *robustLoss) effectiveOmega(r []float64) *mat.SymDense {
	w := l.weights(r)
	n := len(w)
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for k := i; k < n; k++ {
			out.SetSym(i, k, w[i]*l.omega.At(i, k)*w[k])
		}
	}
	return out
}
