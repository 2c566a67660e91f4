// Package gmwm estimates composite time-series models with the Generalized
// Method of Wavelet Moments.
//
// A model is a sum of independent components (white noise, quantization noise,
// random walk, drift, AR(1), MA(1), Gauss-Markov). GMWM matches the Haar
// wavelet variance of an observed series against the theoretical wavelet
// variance of the model by minimizing the weighted criterion
//
//	(nu_hat - nu(theta))' Omega (nu_hat - nu(theta))
//
// where Omega is the inverse covariance of the empirical wavelet variance,
// re-estimated at the current fit until the parameters stop moving.
//
// The building blocks are exposed as functions (Objective, Engine, Update,
// Master); GMWM wraps them in a fit/predict estimator:
//
//	est := gmwm.New(process.NewModel(process.WN, process.RW),
//		gmwm.WithAlpha(0.05),
//		gmwm.WithBootstrap(2, 100, 500),
//	)
//	if err := est.Fit(ctx, data); err != nil {
//		log.Fatal(err)
//	}
//	res, _ := est.Result()
//	fmt.Println(res)
package gmwm

import (
	"context"
	"sync"

	"github.com/ezoic/gmwm/core/model"
	"github.com/ezoic/gmwm/process"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
	"github.com/ezoic/gmwm/pkg/log"
	"github.com/ezoic/gmwm/wvar"
)

// GMWM is a fit/predict estimator for one model.
type GMWM struct {
	State *model.StateManager

	model  process.Model
	cfg    Config
	logger log.Logger

	mu     sync.RWMutex
	result *FitResult
}

// New returns an unfitted estimator for m with DefaultConfig modified by opts.
func New(m process.Model, opts ...Option) *GMWM {
	cfg := DefaultConfig().Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = log.GetLoggerWithName("gmwm").With(
			log.ModelNameKey, "GMWM",
			log.ComponentKey, "gmwm",
		)
	}
	return &GMWM{
		State:  model.NewStateManager(),
		model:  m,
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Config returns the estimator configuration.
func (g *GMWM) Config() Config { return g.cfg }

// Model returns the model description.
func (g *GMWM) Model() process.Model { return g.model }

// Fit estimates the model from a raw series with derived starting values.
//
// Errors:
//   - ErrEmptyData: data is empty
//   - ErrSingularWeighting: a weighting or information matrix cannot be inverted
//   - ValidationError: invalid configuration
func (g *GMWM) Fit(ctx context.Context, data []float64) error {
	return g.fit(ctx, FromData(data), nil, true)
}

// FitWV estimates the model from a precomputed empirical wavelet variance.
func (g *GMWM) FitWV(ctx context.Context, emp *wvar.Empirical) error {
	return g.fit(ctx, FromWV(emp), nil, true)
}

// FitFrom estimates the model starting at theta in natural parameters.
func (g *GMWM) FitFrom(ctx context.Context, in Input, theta []float64) error {
	return g.fit(ctx, in, theta, false)
}

func (g *GMWM) fit(ctx context.Context, in Input, theta []float64, starting bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.State.Reset()
	g.result = nil
	res, err := runMaster(ctx, in, theta, g.model, starting, g.cfg, g.State)
	if err != nil {
		g.logger.Error("Fit failed", log.OperationKey, log.OperationFit, log.ErrorKey, err.Error(), log.StageKey, g.State.Stage().String())
		return err
	}
	g.result = res
	return nil
}

// Result returns the last successful fit.
func (g *GMWM) Result() (*FitResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.result == nil {
		return nil, gmwmErrors.NewNotFittedError("GMWM", "Result")
	}
	return g.result, nil
}

// Predict returns the theoretical wavelet variance of the fitted model at scales.
func (g *GMWM) Predict(scales []float64) ([]float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.result == nil {
		return nil, gmwmErrors.NewNotFittedError("GMWM", "Predict")
	}
	return g.model.WaveletVariance(g.result.Theta, scales)
}

// IsFitted reports whether a fit completed.
func (g *GMWM) IsFitted() bool { return g.State.IsFitted() }

// Stage returns the current stage. It may be read while a fit is running.
func (g *GMWM) Stage() model.Stage { return g.State.Stage() }
