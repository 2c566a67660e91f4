// Package viz draws wavelet variance fits.
//
// Plots are log-log: Haar scale on the x axis, wavelet variance on the y axis.
// The empirical curve is drawn with markers, its confidence bounds as a shaded
// band and the fitted theoretical curve as a line, with one dashed line per
// component when the model has more than one.
//
//	if err := viz.PlotFit(res, nil, "fit.png"); err != nil {
//		log.Fatal(err)
//	}
package viz

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ezoic/gmwm/gmwm"
	gmwmErrors "github.com/ezoic/gmwm/pkg/errors"
	"github.com/ezoic/gmwm/wvar"
)

var (
	bandColor  = color.RGBA{R: 160, G: 190, B: 230, A: 120}
	fitColor   = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	empColor   = color.RGBA{R: 20, G: 60, B: 160, A: 255}
	componentW = vg.Points(1)
)

// Figure builds the plot of res against emp. A nil emp uses res.Empirical.
func Figure(res *gmwm.FitResult, emp *wvar.Empirical) (*plot.Plot, error) {
	if res == nil {
		return nil, gmwmErrors.NewNotFittedError("GMWM", "Figure")
	}
	if emp == nil {
		emp = res.Empirical
	}
	if emp == nil || emp.Len() == 0 {
		return nil, gmwmErrors.NewModelError("Figure", "no empirical wavelet variance", gmwmErrors.ErrEmptyData)
	}
	if len(res.WV) != emp.Len() {
		return nil, gmwmErrors.NewDimensionError("Figure", emp.Len(), len(res.WV), 0)
	}

	p := plot.New()
	p.Title.Text = "Haar wavelet variance: " + res.Model.String()
	p.X.Label.Text = "Scale"
	p.Y.Label.Text = "Wavelet variance"
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true

	if emp.HasBounds() {
		band, err := ciBand(emp)
		if err != nil {
			return nil, err
		}
		p.Add(band)
		p.Legend.Add("CI", band)
	}

	pts := positive(emp.Scales, emp.Variance)
	empirical, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	empirical.Color = empColor
	points.Color = empColor
	p.Add(empirical, points)
	p.Legend.Add("Empirical", empirical, points)

	fitted, err := plotter.NewLine(positive(emp.Scales, res.WV))
	if err != nil {
		return nil, err
	}
	fitted.Color = fitColor
	fitted.Width = vg.Points(2)
	p.Add(fitted)
	p.Legend.Add("Fitted", fitted)

	if res.Model.Len() > 1 {
		labels := res.Model.Labels()
		for i := range res.Model.Components {
			wv, err := res.Model.ComponentWV(i, res.Theta, emp.Scales)
			if err != nil {
				return nil, err
			}
			xy := positive(emp.Scales, wv)
			if len(xy) == 0 {
				continue
			}
			line, err := plotter.NewLine(xy)
			if err != nil {
				return nil, err
			}
			line.Width = componentW
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(line)
			p.Legend.Add(labels[i], line)
		}
	}
	return p, nil
}

// PlotFit writes the fit plot to path. The format follows the file extension
// (png, svg, pdf, ...).
func PlotFit(res *gmwm.FitResult, emp *wvar.Empirical, path string) error {
	p, err := Figure(res, emp)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return gmwmErrors.Wrapf(err, "gmwm: PlotFit: failed to save %s", path)
	}
	return nil
}

func ciBand(emp *wvar.Empirical) (*plotter.Polygon, error) {
	n := emp.Len()
	ring := make(plotter.XYs, 0, 2*n)
	for j := 0; j < n; j++ {
		if emp.Lower[j] > 0 {
			ring = append(ring, plotter.XY{X: emp.Scales[j], Y: emp.Lower[j]})
		}
	}
	for j := n - 1; j >= 0; j-- {
		if emp.Upper[j] > 0 {
			ring = append(ring, plotter.XY{X: emp.Scales[j], Y: emp.Upper[j]})
		}
	}
	band, err := plotter.NewPolygon(ring)
	if err != nil {
		return nil, err
	}
	band.Color = bandColor
	band.LineStyle.Width = 0
	return band, nil
}

// positive drops points a log axis cannot show.
func positive(x, y []float64) plotter.XYs {
	xy := make(plotter.XYs, 0, len(x))
	for i := range x {
		if x[i] > 0 && y[i] > 0 {
			xy = append(xy, plotter.XY{X: x[i], Y: y[i]})
		}
	}
	return xy
}
