// Command gmwm fits a latent process model to a time series by matching its
// Haar wavelet variance.
//
//	gmwm --model WN,AR1 --input imu.csv --column 2 --plot fit.png
//
// Settings not given on the command line are read from GMWM_* environment
// variables, then from the defaults.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/ezoic/gmwm/gmwm"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
	"github.com/ezoic/gmwm/pkg/log"
	"github.com/ezoic/gmwm/process"
	"github.com/ezoic/gmwm/viz"
)

type options struct {
	model    string
	input    string
	column   int
	header   bool
	theta    string
	plot     string
	logLevel string

	computeV string
	levels   int
	robust   bool
	eff      float64
	seed     uint64
	maxIter  int
}

func newFlagSet(o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("gmwm", flag.ContinueOnError)
	fs.StringVarP(&o.model, "model", "m", "", "model components, e.g. WN,RW or WN+AR1+AR1")
	fs.StringVarP(&o.input, "input", "i", "-", "series file, one value per line or CSV; - reads stdin")
	fs.IntVar(&o.column, "column", 0, "CSV column holding the series")
	fs.BoolVar(&o.header, "header", false, "skip the first row of the input")
	fs.StringVar(&o.theta, "theta", "", "comma separated starting parameters; disables the starting value search")
	fs.StringVar(&o.plot, "plot", "", "write the fit plot to this file (png, svg, pdf)")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level")

	fs.StringVar(&o.computeV, "compute-v", "", "weighting covariance: fast or bootstrap")
	fs.IntVar(&o.levels, "levels", 0, "number of wavelet scales")
	fs.BoolVar(&o.robust, "robust", false, "use the Huber robust criterion")
	fs.Float64Var(&o.eff, "eff", 0, "robust efficiency in (0, 1]")
	fs.Uint64Var(&o.seed, "seed", 0, "random seed")
	fs.IntVar(&o.maxIter, "max-iterations", 0, "re-weighting iteration cap")
	return fs
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.LogError(err, "gmwm failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var o options
	fs := newFlagSet(&o)
	if err := fs.Parse(args); err != nil {
		return err
	}
	log.SetupLogger(o.logLevel)

	m, err := parseModel(o.model)
	if err != nil {
		return err
	}
	cfg, err := gmwm.LoadConfig("GMWM", flagOptions(fs, &o)...)
	if err != nil {
		return err
	}

	data, err := readInput(o.input, stdin, o.column, o.header)
	if err != nil {
		return err
	}
	var theta []float64
	if o.theta != "" {
		if theta, err = parseFloats(o.theta); err != nil {
			return gmwmErrors.Wrap(err, "gmwm: --theta")
		}
	}

	res, err := gmwm.Master(ctx, gmwm.FromData(data), theta, m, theta == nil, cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, res.String())
	fmt.Fprintf(stdout, "J test: statistic=%.4g df=%d p=%.4g\n", res.JTest.Statistic, res.JTest.DF, res.JTest.PValue)
	if err := res.NonConvergence(); err != nil {
		fmt.Fprintf(stdout, "warning: %v\n", err)
	}

	if o.plot != "" {
		return viz.PlotFit(res, nil, o.plot)
	}
	return nil
}

// flagOptions turns explicitly set flags into overrides of the loaded config.
func flagOptions(fs *flag.FlagSet, o *options) []gmwm.Option {
	var opts []gmwm.Option
	if fs.Changed("compute-v") {
		opts = append(opts, gmwm.WithComputeV(gmwm.ComputeV(o.computeV)))
	}
	if fs.Changed("levels") {
		opts = append(opts, gmwm.WithLevels(o.levels))
	}
	if fs.Changed("robust") || fs.Changed("eff") {
		opts = append(opts, func(c *gmwm.Config) {
			c.Robust = o.robust || fs.Changed("eff")
			if fs.Changed("eff") {
				c.Eff = o.eff
			}
		})
	}
	if fs.Changed("seed") {
		opts = append(opts, gmwm.WithSeed(o.seed))
	}
	if fs.Changed("max-iterations") {
		opts = append(opts, gmwm.WithMaxIterations(o.maxIter))
	}
	return opts
}

// parseModel accepts labels separated by commas or plus signs.
func parseModel(spec string) (process.Model, error) {
	fields := strings.FieldsFunc(spec, func(r rune) bool { return r == ',' || r == '+' || r == ' ' })
	if len(fields) == 0 {
		return process.Model{}, gmwmErrors.NewValueError("parseModel", "--model is required")
	}
	counts := make([]int, len(fields))
	for i, f := range fields {
		k, err := process.ParseKind(f)
		if err != nil {
			return process.Model{}, err
		}
		counts[i] = k.NParams()
	}
	return process.ParseModel(fields, counts)
}

func readInput(path string, stdin io.Reader, column int, header bool) ([]float64, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, gmwmErrors.Wrapf(err, "gmwm: open %s", path)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	return readSeries(r, column, header)
}

// readSeries reads one column of a CSV stream. Blank lines are skipped.
func readSeries(r io.Reader, column int, header bool) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, gmwmErrors.Wrap(err, "gmwm: read series")
	}
	if header && len(records) > 0 {
		records = records[1:]
	}
	if column < 0 {
		return nil, gmwmErrors.NewValueError("readSeries", fmt.Sprintf("column must be >= 0, got %d", column))
	}
	data := make([]float64, 0, len(records))
	for i, rec := range records {
		if column >= len(rec) {
			return nil, gmwmErrors.NewDimensionError("readSeries", column+1, len(rec), i)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[column]), 64)
		if err != nil {
			return nil, gmwmErrors.NewValueError("readSeries", fmt.Sprintf("row %d: %v", i+1, err))
		}
		data = append(data, v)
	}
	if len(data) == 0 {
		return nil, gmwmErrors.NewModelError("readSeries", "no observations", gmwmErrors.ErrEmptyData)
	}
	return data, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
