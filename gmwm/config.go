package gmwm

import (
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
	"github.com/ezoic/gmwm/pkg/log"
	"github.com/ezoic/gmwm/wvar"
)

// ComputeV selects how the covariance V of the empirical wavelet variance is estimated.
type ComputeV string

const (
	// Fast uses the diagonal chi-square approximation V_jj = 2 nu_j^2 / eta_j.
	Fast ComputeV = "fast"
	// Bootstrap uses the sample covariance of parametric bootstrap replicates.
	Bootstrap ComputeV = "bootstrap"
)

// Config holds the tuning parameters of an estimation run.
//
// Scalar fields can be loaded from the environment with LoadConfig; collaborator
// fields are set through options only.
type Config struct {
	ComputeV ComputeV `envconfig:"COMPUTE_V" default:"fast" validate:"oneof=fast bootstrap"`
	Alpha    float64  `envconfig:"ALPHA" default:"0.05" validate:"gt=0,lt=1"`

	// K is the number of outer iterations that recompute the bootstrap V;
	// later iterations reuse the last one.
	K int `envconfig:"K" default:"1" validate:"gte=1"`
	// H is the number of random candidates tried around the heuristic starting values.
	H int `envconfig:"H" default:"100" validate:"gte=0"`
	// G is the number of bootstrap replicates.
	G int `envconfig:"G" default:"1000" validate:"gte=1"`

	Robust bool    `envconfig:"ROBUST" default:"false"`
	Eff    float64 `envconfig:"EFF" default:"0.6" validate:"gt=0,lte=1"`
	// ExpectDiff scales standardized residuals before the Huber loss; zero means 1.
	ExpectDiff float64 `envconfig:"EXPECT_DIFF" default:"0" validate:"gte=0"`
	// Ranged clips standardized residuals to [-Ranged, Ranged]; zero disables clipping.
	Ranged float64 `envconfig:"RANGED" default:"0" validate:"gte=0"`

	MaxIterations int     `envconfig:"MAX_ITERATIONS" default:"20" validate:"gte=0"`
	Tolerance     float64 `envconfig:"TOLERANCE" default:"1e-6" validate:"gt=0"`
	Seed          uint64  `envconfig:"SEED" default:"1"`
	// Workers bounds bootstrap parallelism; zero means GOMAXPROCS.
	Workers int `envconfig:"WORKERS" default:"0" validate:"gte=0"`
	// Levels is the number of wavelet scales computed from raw data; zero picks
	// floor(log2(N)) - 1.
	Levels int `envconfig:"LEVELS" default:"0" validate:"gte=0,lte=62"`

	Minimizer   Minimizer      `ignored:"true" validate:"-"`
	Logger      log.Logger     `ignored:"true" validate:"-"`
	WVEstimator wvar.Estimator `ignored:"true" validate:"-"`
}

var validate = validator.New()

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ComputeV:      Fast,
		Alpha:         0.05,
		K:             1,
		H:             100,
		G:             1000,
		Eff:           0.6,
		MaxIterations: 20,
		Tolerance:     1e-6,
		Seed:          1,
		Workers:       runtime.GOMAXPROCS(0),
	}
}

// LoadConfig reads a Config from environment variables named PREFIX_FIELD,
// for example GMWM_COMPUTE_V or GMWM_MAX_ITERATIONS, and validates it.
func LoadConfig(prefix string, opts ...Option) (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, gmwmErrors.Wrap(err, "gmwm: failed to load config from env")
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges. The first violation is returned as a
// *ValidationError.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return gmwmErrors.NewValidationError(fe.Field(), "failed '"+fe.Tag()+"' check", fe.Value())
	}
	return gmwmErrors.Wrap(err, "gmwm: config validation failed")
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (c Config) minimizer() Minimizer {
	if c.Minimizer != nil {
		return c.Minimizer
	}
	return NelderMead{}
}

func (c Config) logger() log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.GetLoggerWithName("gmwm")
}

func (c Config) estimator() wvar.Estimator {
	if c.WVEstimator != nil {
		return c.WVEstimator
	}
	return wvar.Haar{Alpha: c.Alpha}
}

// Option modifies a Config.
type Option func(*Config)

// Apply returns a copy of c with opts applied.
func (c Config) Apply(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithComputeV selects the V estimator.
func WithComputeV(v ComputeV) Option {
	return func(c *Config) { c.ComputeV = v }
}

// WithAlpha sets the significance level of the confidence intervals.
func WithAlpha(alpha float64) Option {
	return func(c *Config) { c.Alpha = alpha }
}

// WithBootstrap switches to bootstrap V with k refreshes, h starting candidates
// and g replicates.
func WithBootstrap(k, h, g int) Option {
	return func(c *Config) {
		c.ComputeV = Bootstrap
		c.K, c.H, c.G = k, h, g
	}
}

// WithSearchCandidates sets the number of random starting candidates.
func WithSearchCandidates(h int) Option {
	return func(c *Config) { c.H = h }
}

// WithRobust enables the Huber-type objective at Gaussian efficiency eff.
func WithRobust(eff float64) Option {
	return func(c *Config) {
		c.Robust = true
		c.Eff = eff
	}
}

// WithRobustCalibration sets the residual scale and clipping bound of the robust loss.
func WithRobustCalibration(expectDiff, ranged float64) Option {
	return func(c *Config) {
		c.ExpectDiff = expectDiff
		c.Ranged = ranged
	}
}

// WithSeed sets the seed of every random stream used by the fit.
func WithSeed(seed uint64) Option {
	return func(c *Config) { c.Seed = seed }
}

// WithWorkers bounds bootstrap parallelism.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithMaxIterations caps the re-weighting loop.
func WithMaxIterations(n int) Option {
	return func(c *Config) { c.MaxIterations = n }
}

// WithTolerance sets the relative parameter change that stops the re-weighting loop.
func WithTolerance(tol float64) Option {
	return func(c *Config) { c.Tolerance = tol }
}

// WithLevels sets the number of scales computed from raw data.
func WithLevels(levels int) Option {
	return func(c *Config) { c.Levels = levels }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMinimizer replaces the default Nelder-Mead minimizer.
func WithMinimizer(m Minimizer) Option {
	return func(c *Config) { c.Minimizer = m }
}

// WithWVEstimator replaces the default Haar wavelet variance estimator.
func WithWVEstimator(e wvar.Estimator) Option {
	return func(c *Config) { c.WVEstimator = e }
}
