package gmwm

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/gmwm/process"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
	"github.com/ezoic/gmwm/pkg/log"
)

// UpdateResult is the outcome of one re-weighting step.
type UpdateResult struct {
	// Omega is the weighting matrix the step optimized under. In robust mode it
	// is W Omega W at the returned Theta.
	Omega *mat.SymDense
	// V is the estimated covariance of the empirical wavelet variance before
	// robust inflation. Passing it back as orgV skips re-estimation.
	V *mat.SymDense
	// Theta is the re-optimized estimate in natural parameters.
	Theta []float64
	// Objective is the criterion value at Theta.
	Objective float64
}

// Update refreshes the weighting matrix at theta and re-optimizes theta under it.
//
// V is taken from orgV when non-nil, otherwise estimated at theta with the
// method selected by cfg.ComputeV using a series length of n. With cfg.Robust
// V is inflated by 1/cfg.Eff and the Huber-type loss replaces the quadratic
// one, calibrated by expectDiff and ranged.
//
// Errors:
//   - ErrDimensionMismatch: wv, scales, orgV or theta disagree in size
//   - ErrInvalidParameter: theta outside the admissible domain
//   - ErrSingularWeighting: V cannot be inverted
func Update(ctx context.Context, theta []float64, m process.Model, n int, expectDiff, ranged float64,
	orgV mat.Symmetric, scales, wv []float64, cfg Config) (_ *UpdateResult, err error) {
	defer gmwmErrors.Recover(&err, "Update")

	if len(wv) != len(scales) {
		return nil, gmwmErrors.NewDimensionError("Update", len(scales), len(wv), 0)
	}
	if err := m.Validate(theta); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var v *mat.SymDense
	switch {
	case orgV != nil:
		if d := orgV.SymmetricDim(); d != len(scales) {
			return nil, gmwmErrors.NewDimensionError("Update.orgV", len(scales), d, 0)
		}
		v = mat.NewSymDense(len(scales), nil)
		v.CopySym(orgV)
	case cfg.ComputeV == Bootstrap:
		cfg.logger().Debug("Bootstrap started",
			log.OperationKey, log.OperationUpdate,
			log.PhaseKey, log.PhaseBootstrap,
			log.ReplicatesKey, cfg.G,
		)
		if v, err = BootstrapV(ctx, theta, m, n, scales, cfg); err != nil {
			return nil, err
		}
	default:
		nu, err := m.WaveletVariance(theta, scales)
		if err != nil {
			return nil, err
		}
		if v, err = FastV(nu, scales, n); err != nil {
			return nil, err
		}
	}

	used := v
	if cfg.Robust {
		used = scaleSym(1/cfg.Eff, v)
	}
	omega, err := invertV("Update", used)
	if err != nil {
		return nil, err
	}

	u0, err := m.Transform(theta)
	if err != nil {
		return nil, err
	}

	if !cfg.Robust {
		crit := func(nat []float64) (float64, error) {
			r, err := residual(nat, m, wv, scales)
			if err != nil {
				return 0, err
			}
			return quadForm(r, omega), nil
		}
		est, obj, err := minimize(crit, m, u0, cfg.minimizer())
		if err != nil {
			return nil, err
		}
		return &UpdateResult{Omega: omega, V: v, Theta: est, Objective: obj}, nil
	}

	loss, err := newRobustLoss(used, omega, cfg.Eff, expectDiff, ranged)
	if err != nil {
		return nil, err
	}
	crit := func(nat []float64) (float64, error) {
		r, err := residual(nat, m, wv, scales)
		if err != nil {
			return 0, err
		}
		return loss.value(r), nil
	}
	est, obj, err := minimize(crit, m, u0, cfg.minimizer())
	if err != nil {
		return nil, err
	}
	r, err := residual(est, m, wv, scales)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{Omega: loss.effectiveOmega(r), V: v, Theta: est, Objective: obj}, nil
}
