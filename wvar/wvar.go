// Package wvar computes empirical Haar wavelet variance.
//
// The estimator is the unbiased maximal-overlap (MODWT) Haar wavelet variance:
// at level j with filter length L = 2^j the wavelet coefficients are
//
//	W_t = (sum of the last L/2 observations - sum of the previous L/2) / L
//
// and the variance is the mean of W_t^2 over the N - L + 1 coefficients not
// affected by the series boundary. Confidence bounds use the chi-square
// approximation with equivalent degrees of freedom eta = max((N-L+1)/2^j, 1).
//
// Example usage:
//
//	emp, err := wvar.Haar{Alpha: 0.05}.Estimate(data, 10)
//	if err != nil {
//		return err
//	}
//	fmt.Println(emp.Scales, emp.Variance)
package wvar

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ezoic/gmwm/core/parallel"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// parallelThreshold is the series length from which levels are computed concurrently.
const parallelThreshold = 1 << 15

// Estimator computes the empirical wavelet variance of a series over levels 1..levels.
type Estimator interface {
	Estimate(data []float64, levels int) (*Empirical, error)
}

// Empirical is an empirical wavelet variance curve.
type Empirical struct {
	Scales   []float64 // Haar filter lengths 2^1..2^J
	Variance []float64 // wavelet variance per scale
	Lower    []float64 // lower confidence bound, nil when unknown
	Upper    []float64 // upper confidence bound, nil when unknown
	N        int       // length of the series the curve was computed from
	Alpha    float64   // significance level of the bounds
}

// NewEmpirical wraps a precomputed wavelet variance curve without bounds.
//
// Errors:
//   - ErrDimensionMismatch: len(scales) != len(variance)
//   - ValueError: empty input, negative or non-finite variance, n < 1
func NewEmpirical(scales, variance []float64, n int) (*Empirical, error) {
	e := &Empirical{
		Scales:   append([]float64(nil), scales...),
		Variance: append([]float64(nil), variance...),
		N:        n,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Len returns the number of scales.
func (e *Empirical) Len() int { return len(e.Scales) }

// HasBounds reports whether confidence bounds are available.
func (e *Empirical) HasBounds() bool {
	return len(e.Lower) == len(e.Scales) && len(e.Upper) == len(e.Scales) && len(e.Scales) > 0
}

// Validate checks internal consistency.
func (e *Empirical) Validate() error {
	if e == nil || len(e.Scales) == 0 {
		return gmwmErrors.NewModelError("Empirical.Validate", "no scales", gmwmErrors.ErrEmptyData)
	}
	if len(e.Variance) != len(e.Scales) {
		return gmwmErrors.NewDimensionError("Empirical.Validate", len(e.Scales), len(e.Variance), 0)
	}
	if e.Lower != nil && len(e.Lower) != len(e.Scales) {
		return gmwmErrors.NewDimensionError("Empirical.Validate.Lower", len(e.Scales), len(e.Lower), 0)
	}
	if e.Upper != nil && len(e.Upper) != len(e.Scales) {
		return gmwmErrors.NewDimensionError("Empirical.Validate.Upper", len(e.Scales), len(e.Upper), 0)
	}
	for _, v := range e.Variance {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return gmwmErrors.NewValueError("Empirical.Validate", "wavelet variance must be finite and nonnegative")
		}
	}
	if e.N < 1 {
		return gmwmErrors.NewValueError("Empirical.Validate", "sample size must be positive")
	}
	return nil
}

// Scales returns the Haar filter lengths 2^1..2^levels.
func Scales(levels int) []float64 {
	s := make([]float64, max(levels, 0))
	for j := range s {
		s[j] = math.Ldexp(1, j+1)
	}
	return s
}

// MaxLevels returns the default number of levels for a series of length n,
// floor(log2(n)) - 1, and at least 1.
func MaxLevels(n int) int {
	if n < 4 {
		return 1
	}
	return max(1, int(math.Floor(math.Log2(float64(n))))-1)
}

// EquivalentDOF returns eta = max((n - tau + 1)/tau, 1), the chi-square
// equivalent degrees of freedom of the level with filter length tau.
func EquivalentDOF(n int, tau float64) float64 {
	return math.Max((float64(n)-tau+1)/tau, 1)
}

// Haar is the default Estimator.
type Haar struct {
	// Alpha is the significance level of the confidence bounds. Zero means 0.05.
	Alpha float64
}

// Estimate computes the MODWT Haar wavelet variance of data at levels 1..levels.
//
// Errors:
//   - ErrEmptyData: len(data) == 0
//   - ValueError: levels < 1, 2^levels > len(data), non-finite data, alpha outside (0, 1)
func (h Haar) Estimate(data []float64, levels int) (*Empirical, error) {
	n := len(data)
	if n == 0 {
		return nil, gmwmErrors.NewModelError("Haar.Estimate", "empty data", gmwmErrors.ErrEmptyData)
	}
	if levels < 1 {
		return nil, gmwmErrors.NewValueError("Haar.Estimate", "levels must be >= 1")
	}
	if math.Ldexp(1, levels) > float64(n) {
		return nil, gmwmErrors.NewValueError("Haar.Estimate", "series too short for the requested levels")
	}
	alpha := h.Alpha
	if alpha == 0 {
		alpha = 0.05
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, gmwmErrors.NewValueError("Haar.Estimate", "alpha must lie in (0, 1)")
	}

	// prefix sums of the centred series; the Haar filter sums to zero so
	// centring only improves conditioning
	var mean float64
	for _, x := range data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, gmwmErrors.NewValueError("Haar.Estimate", "data must be finite")
		}
		mean += x
	}
	mean /= float64(n)
	prefix := make([]float64, n+1)
	for i, x := range data {
		prefix[i+1] = prefix[i] + (x - mean)
	}

	scales := Scales(levels)
	emp := &Empirical{
		Scales:   scales,
		Variance: make([]float64, levels),
		Lower:    make([]float64, levels),
		Upper:    make([]float64, levels),
		N:        n,
		Alpha:    alpha,
	}
	level := func(start, end int) {
		for j := start; j < end; j++ {
			tau := scales[j]
			l := int(tau)
			half := l / 2
			var ss float64
			for t := l - 1; t < n; t++ {
				w := (prefix[t+1] - 2*prefix[t+1-half] + prefix[t+1-l]) / tau
				ss += w * w
			}
			nu := ss / float64(n-l+1)
			emp.Variance[j] = nu

			eta := EquivalentDOF(n, tau)
			chi := distuv.ChiSquared{K: eta}
			emp.Lower[j] = eta * nu / chi.Quantile(1-alpha/2)
			emp.Upper[j] = eta * nu / chi.Quantile(alpha/2)
		}
	}

	// levels are independent; long series spread them over goroutines
	if n >= parallelThreshold {
		parallel.ParallelizeWithThreshold(levels, 2, level)
	} else {
		level(0, levels)
	}
	return emp, nil
}
