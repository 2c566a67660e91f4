package gmwm

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/gmwm/core/model"
	"github.com/ezoic/gmwm/metrics"
	"github.com/ezoic/gmwm/process"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
	"github.com/ezoic/gmwm/wvar"
)

// FitResult is the outcome of an estimation run.
type FitResult struct {
	Model process.Model

	Theta  []float64 // estimate in natural parameters
	StdErr []float64
	Lower  []float64 // lower (1-Alpha) confidence bound
	Upper  []float64 // upper (1-Alpha) confidence bound
	Alpha  float64

	Cov   *mat.SymDense // parameter covariance (D' Omega D)^-1
	Omega *mat.SymDense // final weighting matrix
	V     *mat.SymDense // final covariance estimate of the empirical wavelet variance

	WV        []float64       // theoretical wavelet variance at Theta
	Empirical *wvar.Empirical // the curve that was fitted

	Objective  float64 // criterion at Theta under Omega
	Iterations int     // re-weighting iterations performed
	Converged  bool
	Stage      model.Stage

	// JTest is computed from Objective; it is exact only for non-robust fits.
	JTest metrics.JTestResult
}

// NonConvergence returns a wrapped ErrNonConvergence when the re-weighting loop
// stopped at its iteration cap, and nil otherwise.
func (r *FitResult) NonConvergence() error {
	if r == nil || r.Converged {
		return nil
	}
	return gmwmErrors.NewModelError("Master",
		fmt.Sprintf("no convergence after %d iterations", r.Iterations), gmwmErrors.ErrNonConvergence)
}

// Params returns the estimate keyed by parameter name.
func (r *FitResult) Params() map[string]float64 {
	names := r.Model.ParamNames()
	out := make(map[string]float64, len(names))
	for i, n := range names {
		out[n] = r.Theta[i]
	}
	return out
}

// String renders the estimate as a table.
func (r *FitResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "GMWM fit: %s\n", r.Model)
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "param\testimate\tstd.err\tlower\tupper\n")
	for i, n := range r.Model.ParamNames() {
		fmt.Fprintf(w, "%s\t%.6g\t%.3g\t%.6g\t%.6g\n", n, r.Theta[i], r.StdErr[i], r.Lower[i], r.Upper[i])
	}
	w.Flush()
	fmt.Fprintf(&b, "objective=%.6g iterations=%d converged=%v\n", r.Objective, r.Iterations, r.Converged)
	return b.String()
}
