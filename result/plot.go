/*
 * plot.go, part of diadem.
 *
 *
 * Copyright 2024 The diadem authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package result

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const regressionPoints = 100

// Plot saves to path a log-scale plot of the mobility against the square root of
// the field, with error bars, the regression line and the zero field mobility.
// The format is taken from the extension of path.
func (M *Mobility) Plot(path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s mobility", M.Carrier)
	p.X.Label.Text = "sqrt(field) (V/cm)^0.5"
	p.Y.Label.Text = "mobility (cm^2/Vs)"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	var data struct {
		plotter.XYs
		plotter.YErrors
	}
	maxX := 0.0
	for i, f := range M.Fields {
		if M.Mobilities[i] <= 0 || f < 0 {
			continue
		}
		x := math.Sqrt(f)
		maxX = math.Max(maxX, x)
		//lower bars can't go below zero on a log axis
		low := math.Min(M.Stderr[i], 0.99*M.Mobilities[i])
		data.XYs = append(data.XYs, plotter.XY{X: x, Y: M.Mobilities[i]})
		data.YErrors = append(data.YErrors, struct{ Low, High float64 }{low, M.Stderr[i]})
	}
	if len(data.XYs) == 0 {
		return fmt.Errorf("nothing to plot")
	}
	s, err := plotter.NewScatter(data.XYs)
	if err != nil {
		return err
	}
	s.GlyphStyle.Color = color.Black
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	bars, err := plotter.NewYErrorBars(data)
	if err != nil {
		return err
	}
	line := make(plotter.XYs, regressionPoints)
	for i := range line {
		x := maxX * float64(i) / float64(regressionPoints-1)
		line[i] = plotter.XY{X: x, Y: math.Exp(M.Intercept + M.Slope*x)}
	}
	l, err := plotter.NewLine(line)
	if err != nil {
		return err
	}
	l.Color = color.RGBA{R: 255, A: 255}
	zero, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: M.ZeroField}})
	if err != nil {
		return err
	}
	zero.GlyphStyle.Color = color.RGBA{B: 255, A: 255}
	zero.GlyphStyle.Shape = draw.CircleGlyph{}
	zero.GlyphStyle.Radius = vg.Points(4)
	p.Add(s, bars, l, zero)
	p.Legend.Add("Data", s)
	p.Legend.Add("Regression line", l)
	p.Legend.Add(fmt.Sprintf("Zero-field mobility: %.2e", M.ZeroField), zero)
	p.Legend.Top = true
	return p.Save(5*vg.Inch, 4*vg.Inch, path)
}
