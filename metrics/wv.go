// Package metrics provides goodness-of-fit diagnostics for wavelet variance fits.
//
// Wavelet variance spans many orders of magnitude across scales, so the curve
// comparisons work on log10 values:
//
//   - LogWVMSE: mean squared error of log10 wavelet variance
//   - LogWVRMSE: its square root
//   - LogWVMAE: mean absolute error of log10 wavelet variance
//   - LogWVR2: coefficient of determination in log10 space
//
// JTest reports Hansen's overidentification statistic for a fitted GMWM
// criterion under optimal weighting.
//
// Example usage:
//
//	mse, err := metrics.LogWVMSE(emp.Variance, fit.WV)
//	jt, err := metrics.JTest(fit.Objective, len(emp.Scales), len(fit.Theta))
//	fmt.Printf("J = %.3f (df=%d, p=%.3f)\n", jt.Statistic, jt.DF, jt.PValue)
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
)

// LogWVMSE calculates the mean squared error between log10 empirical and
// log10 theoretical wavelet variance.
//
// Errors:
//   - ValueError: empty input, or a non-positive value
//   - ErrDimensionMismatch: emp and theo have different lengths
//
// Example:
//
//	mse, err := metrics.LogWVMSE([]float64{1, 0.5}, []float64{1, 0.4})
func LogWVMSE(emp, theo []float64) (float64, error) {
	d, err := logDiffs("LogWVMSE", emp, theo)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range d {
		sum += v * v
	}
	return sum / float64(len(d)), nil
}

// LogWVRMSE is the square root of LogWVMSE.
func LogWVRMSE(emp, theo []float64) (float64, error) {
	mse, err := LogWVMSE(emp, theo)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// LogWVMAE calculates the mean absolute error between log10 empirical and
// log10 theoretical wavelet variance.
func LogWVMAE(emp, theo []float64) (float64, error) {
	d, err := logDiffs("LogWVMAE", emp, theo)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range d {
		sum += math.Abs(v)
	}
	return sum / float64(len(d)), nil
}

// LogWVR2 calculates the coefficient of determination of theo as a predictor of
// emp in log10 space: R² = 1 - SS_res / SS_tot.
//
// Errors are those of LogWVMSE plus a ValueError when the empirical curve is
// flat (SS_tot = 0).
func LogWVR2(emp, theo []float64) (float64, error) {
	d, err := logDiffs("LogWVR2", emp, theo)
	if err != nil {
		return 0, err
	}
	var mean float64
	for _, v := range emp {
		mean += math.Log10(v)
	}
	mean /= float64(len(emp))

	var ssRes, ssTot float64
	for j, v := range emp {
		ssRes += d[j] * d[j]
		dev := math.Log10(v) - mean
		ssTot += dev * dev
	}
	if ssTot == 0 {
		return 0, gmwmErrors.NewValueError("LogWVR2", "total sum of squares is zero (flat empirical curve)")
	}
	return 1 - ssRes/ssTot, nil
}

func logDiffs(op string, emp, theo []float64) ([]float64, error) {
	n := len(emp)
	if n == 0 {
		return nil, gmwmErrors.NewValueError(op, "empty vector")
	}
	if len(theo) != n {
		return nil, gmwmErrors.NewDimensionError(op, n, len(theo), 0)
	}
	d := make([]float64, n)
	for j := range emp {
		if !(emp[j] > 0) || !(theo[j] > 0) {
			return nil, gmwmErrors.NewValueError(op, "wavelet variance must be positive")
		}
		d[j] = math.Log10(emp[j]) - math.Log10(theo[j])
	}
	return d, nil
}

// JTestResult holds Hansen's J statistic.
type JTestResult struct {
	Statistic float64 // criterion value under optimal weighting
	DF        int     // nScales - nParams
	PValue    float64 // chi-square upper tail probability; NaN when DF == 0
}

// JTest returns the overidentification test for a criterion value obtained
// with the weighting matrix set to the inverse covariance of the moments.
//
// Errors:
//   - ValueError: negative or non-finite objective, nParams < 1, or fewer scales than parameters
func JTest(objective float64, nScales, nParams int) (JTestResult, error) {
	if math.IsNaN(objective) || math.IsInf(objective, 0) || objective < 0 {
		return JTestResult{}, gmwmErrors.NewValueError("JTest", "objective must be finite and nonnegative")
	}
	if nParams < 1 {
		return JTestResult{}, gmwmErrors.NewValueError("JTest", "nParams must be >= 1")
	}
	df := nScales - nParams
	if df < 0 {
		return JTestResult{}, gmwmErrors.NewValueError("JTest", "model is under-identified (more parameters than scales)")
	}
	res := JTestResult{Statistic: objective, DF: df, PValue: math.NaN()}
	if df > 0 {
		res.PValue = distuv.ChiSquared{K: float64(df)}.Survival(objective)
	}
	return res, nil
}
