// Package render draws grids as PNG heat maps. Cells outside the valid range
// and null cells get their own colours so they stand out.
package render

import (
	"image/color"
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/sdifrance/era5check/grid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Colours of cells outside the range.
var (
	UnderflowColor = color.NRGBA{B: 255, A: 255}
	OverflowColor  = color.NRGBA{R: 255, G: 0, B: 255, A: 255}
	NullColor      = color.NRGBA{R: 128, G: 128, B: 128, A: 255}
)

// Options controls PNG.
type Options struct {
	Title string
	// Min and Max bound the colour scale. Values below Min or above Max are
	// drawn in UnderflowColor and OverflowColor.
	Min, Max float64
	// Colors is the palette size, 64 by default.
	Colors int
	// Width and Height default to 8 and 4 inches.
	Width, Height vg.Length
}

// gridXYZ flips rows so the first row, the northernmost, is drawn at the top.
type gridXYZ struct {
	g *grid.Grid
}

func (x gridXYZ) Dims() (c, r int) {
	rows, cols := x.g.Dims()
	return cols, rows
}

func (x gridXYZ) Z(c, r int) float64 {
	rows, _ := x.g.Dims()
	return x.g.At(rows-1-r, c)
}

func (x gridXYZ) X(c int) float64 { return float64(c) }
func (x gridXYZ) Y(r int) float64 { return float64(r) }

// PNG writes g as a heat map.
func PNG(w io.Writer, g *grid.Grid, opts Options) error {
	if opts.Colors <= 0 {
		opts.Colors = 64
	}
	if opts.Width == 0 {
		opts.Width = 8 * vg.Inch
	}
	if opts.Height == 0 {
		opts.Height = 4 * vg.Inch
	}
	if math.IsNaN(opts.Min) || math.IsInf(opts.Min, 0) || math.IsNaN(opts.Max) || math.IsInf(opts.Max, 0) {
		return errors.Errorf("render: range [%g, %g] is not finite", opts.Min, opts.Max)
	}
	if !(opts.Max > opts.Min) {
		return errors.Errorf("render: max %g must be above min %g", opts.Max, opts.Min)
	}

	cm := moreland.ExtendedBlackBody()
	cm.SetMin(opts.Min)
	cm.SetMax(opts.Max)
	hm := plotter.NewHeatMap(gridXYZ{g}, cm.Palette(opts.Colors))
	hm.Min = opts.Min
	hm.Max = opts.Max
	hm.Underflow = UnderflowColor
	hm.Overflow = OverflowColor
	hm.NaN = NullColor
	hm.Rasterized = true

	p := plot.New()
	p.Title.Text = opts.Title
	p.HideAxes()
	p.Add(hm)

	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return errors.Wrap(err, "render")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "render")
}
