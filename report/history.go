// SPDX-License-Identifier: MIT
// Package report - convergence diagnostics.
//
// ChiSquareHistory draws log10 χ² against the accepted-step index for the
// fitted pixels that recorded a history (fitter option history: true).

package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/katalvlaran/oceanfit/pipeline"
)

// ErrNoHistory indicates no result carried a chi-square history.
var ErrNoHistory = errors.New("report: no chi-square history")

// palette cycles per line.
var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
}

// ChiSquareHistory builds the plot for at most maxLines pixels (0: all).
func ChiSquareHistory(results []pipeline.Result, maxLines int) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Levenberg-Marquardt convergence"
	p.X.Label.Text = "accepted step"
	p.Y.Label.Text = "log10 chi-square"

	lines := 0
	for i, r := range results {
		if maxLines > 0 && lines == maxLines {
			break
		}
		if !r.Fitted || len(r.Fit.History) == 0 {
			continue
		}
		pts := make(plotter.XYs, 0, len(r.Fit.History))
		for k, chi2 := range r.Fit.History {
			// an exact fit reaches χ² = 0; keep it on the axis
			pts = append(pts, plotter.XY{X: float64(k), Y: math.Log10(math.Max(chi2, 1e-300))})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("report: pixel %d: %w", i, err)
		}
		line.Width = vg.Points(1)
		line.Color = palette[lines%len(palette)]
		p.Add(line)
		lines++
	}
	if lines == 0 {
		return nil, ErrNoHistory
	}
	p.Add(plotter.NewGrid())

	return p, nil
}

// SaveChiSquareHistory renders ChiSquareHistory to path; the format follows
// the extension (.png, .svg, .pdf).
func SaveChiSquareHistory(path string, results []pipeline.Result, maxLines int) error {
	p, err := ChiSquareHistory(results, maxLines)
	if err != nil {
		return err
	}

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
