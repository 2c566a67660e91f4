package gmwm

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/gmwm/core/model"
	"github.com/ezoic/gmwm/metrics"
	"github.com/ezoic/gmwm/process"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
	"github.com/ezoic/gmwm/pkg/log"
	"github.com/ezoic/gmwm/wvar"
)

// searchStream is the PCG stream of the starting-value search. Bootstrap
// replicates use streams 0..G-1.
const searchStream = 1 << 63

// Input is what a fit runs on: a raw series, or a precomputed empirical
// wavelet variance curve carrying its sample size.
type Input struct {
	Data []float64
	WV   *wvar.Empirical
}

// FromData returns an Input for a raw series.
func FromData(data []float64) Input { return Input{Data: data} }

// FromWV returns an Input for a precomputed curve.
func FromWV(emp *wvar.Empirical) Input { return Input{WV: emp} }

// Master runs a full GMWM estimation.
//
// With starting=true theta may be nil: starting values are derived from the
// empirical curve and refined by a random search of cfg.H candidates (a valid
// theta is tried as one more candidate). With starting=false theta is the
// starting point in natural parameters.
//
// The run then optimizes under the initial weighting, re-weights with Update
// until max_i |dtheta_i| / (1 + |theta_i|) <= cfg.Tolerance or
// cfg.MaxIterations is reached, and computes the covariance and confidence
// intervals. Hitting the iteration cap is not an error: the result carries
// Converged=false and NonConvergence() reports it.
func Master(ctx context.Context, in Input, theta []float64, m process.Model, starting bool, cfg Config) (*FitResult, error) {
	return runMaster(ctx, in, theta, m, starting, cfg, model.NewStateManager())
}

func runMaster(ctx context.Context, in Input, theta []float64, m process.Model, starting bool, cfg Config,
	state *model.StateManager) (res *FitResult, err error) {
	defer func() {
		if err != nil {
			state.Fail()
		}
	}()
	defer gmwmErrors.Recover(&err, "Master")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger().With(
		log.OperationKey, log.OperationMaster,
		log.ModelNameKey, m.String(),
	)
	started := time.Now()

	enter := func(next model.Stage) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := state.Transition(next); err != nil {
			return gmwmErrors.Wrap(err, "gmwm: Master")
		}
		logger.Debug("Stage entered", log.StageKey, next.String())
		return nil
	}

	emp, err := empirical(in, cfg)
	if err != nil {
		return nil, err
	}
	scales := emp.Scales
	state.SetDimensions(m.NParams(), len(scales), emp.N)
	logger.Info("Estimation started",
		log.SamplesKey, emp.N,
		log.ScalesKey, len(scales),
		log.ParamsKey, m.NParams(),
		log.MethodKey, string(cfg.ComputeV),
	)

	// StartingValues
	if err := enter(model.StartingValues); err != nil {
		return nil, err
	}
	v0, err := initialV(emp)
	if err != nil {
		return nil, err
	}
	omega, err := invertV("Master", v0)
	if err != nil {
		return nil, err
	}
	cur, err := startingTheta(theta, m, emp, omega, starting, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("Starting values chosen", log.PhaseKey, log.PhaseStartingValues, "theta", cur)

	// FirstFit
	if err := enter(model.FirstFit); err != nil {
		return nil, err
	}
	if cur, err = Engine(cur, m, emp.Variance, omega, scales, false, cfg.minimizer()); err != nil {
		return nil, err
	}
	obj, err := Objective(cur, m, emp.Variance, omega, scales, false)
	if err != nil {
		return nil, err
	}
	logger.Debug("First fit done", log.PhaseKey, log.PhaseFirstFit, log.ObjectiveKey, obj)

	v := v0
	converged := cfg.MaxIterations == 0
	iterations := 0
	for it := 1; it <= cfg.MaxIterations; it++ {
		if err := enter(model.ReweightFit); err != nil {
			return nil, err
		}
		var orgV mat.Symmetric
		if cfg.ComputeV == Bootstrap && it > cfg.K {
			orgV = v
		}
		upd, err := Update(ctx, cur, m, emp.N, cfg.ExpectDiff, cfg.Ranged, orgV, scales, emp.Variance, cfg)
		if err != nil {
			return nil, err
		}
		delta := maxRelChange(cur, upd.Theta)
		cur, omega, v, obj = upd.Theta, upd.Omega, upd.V, upd.Objective
		iterations = it

		logger.Debug("Re-weighting iteration",
			log.PhaseKey, log.PhaseReweight,
			log.IterationKey, it,
			log.ObjectiveKey, obj,
			log.DeltaKey, delta,
		)
		if delta <= cfg.Tolerance {
			converged = true
			break
		}
	}

	// CovarianceAndCI
	if err := enter(model.CovarianceAndCI); err != nil {
		return nil, err
	}
	cov, err := Covariance(cur, m, omega, scales)
	if err != nil {
		return nil, err
	}
	se, lower, upper := confidenceIntervals(cur, cov, cfg.Alpha)
	logger.Debug("Standard errors computed", log.PhaseKey, log.PhaseCovariance, "std_err", se)
	wv, err := m.WaveletVariance(cur, scales)
	if err != nil {
		return nil, err
	}

	res = &FitResult{
		Model:      m,
		Theta:      cur,
		StdErr:     se,
		Lower:      lower,
		Upper:      upper,
		Alpha:      cfg.Alpha,
		Cov:        cov,
		Omega:      omega,
		V:          v,
		WV:         wv,
		Empirical:  emp,
		Objective:  obj,
		Iterations: iterations,
		Converged:  converged,
	}
	if jt, err := metrics.JTest(obj, len(scales), m.NParams()); err == nil {
		res.JTest = jt
	}

	if err := enter(model.Done); err != nil {
		return nil, err
	}
	res.Stage = model.Done

	if !converged {
		logger.Warn("Re-weighting did not converge",
			log.IterationKey, iterations,
			log.ObjectiveKey, obj,
		)
	}
	logger.Info("Estimation completed",
		log.DurationMsKey, time.Since(started).Milliseconds(),
		log.IterationKey, iterations,
		log.ObjectiveKey, obj,
	)
	return res, nil
}

func empirical(in Input, cfg Config) (*wvar.Empirical, error) {
	if in.WV != nil {
		if err := in.WV.Validate(); err != nil {
			return nil, err
		}
		return in.WV, nil
	}
	if len(in.Data) == 0 {
		return nil, gmwmErrors.NewModelError("Master", "no data", gmwmErrors.ErrEmptyData)
	}
	levels := cfg.Levels
	if levels == 0 {
		levels = wvar.MaxLevels(len(in.Data))
	}
	return cfg.estimator().Estimate(in.Data, levels)
}

func startingTheta(theta []float64, m process.Model, emp *wvar.Empirical, omega mat.Symmetric,
	starting bool, cfg Config) ([]float64, error) {
	if !starting {
		if err := m.Validate(theta); err != nil {
			return nil, err
		}
		return append([]float64(nil), theta...), nil
	}

	sv, err := process.StartingValues(emp.Variance, emp.Scales, m)
	if err != nil {
		return nil, err
	}
	u0, err := m.Transform(sv)
	if err != nil {
		return nil, err
	}
	crit := func(u []float64) float64 {
		v, err := Objective(u, m, emp.Variance, omega, emp.Scales, true)
		if err != nil || math.IsNaN(v) {
			return math.Inf(1)
		}
		return v
	}

	best, bestF := u0, crit(u0)
	if theta != nil && m.Validate(theta) == nil {
		if u, err := m.Transform(theta); err == nil {
			if f := crit(u); f < bestF {
				best, bestF = u, f
			}
		}
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, searchStream))
	cand := make([]float64, len(u0))
	for h := 0; h < cfg.H; h++ {
		for i := range cand {
			cand[i] = u0[i] + rng.NormFloat64()
		}
		if f := crit(cand); f < bestF {
			best, bestF = append([]float64(nil), cand...), f
		}
	}
	return m.Untransform(best)
}

func maxRelChange(prev, next []float64) float64 {
	var d float64
	for i := range prev {
		d = math.Max(d, math.Abs(next[i]-prev[i])/(1+math.Abs(prev[i])))
	}
	return d
}
