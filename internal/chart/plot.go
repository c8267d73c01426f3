package chart

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// WriteSpectrum draws the singular values of every channel as a static
// image on a log axis. format is one of the gonum/plot canvas formats such
// as png, svg or pdf. Zero values cannot be placed on the axis and are skipped.
func WriteSpectrum(w io.Writer, title string, series []Series, format string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "i"
	p.Y.Label.Text = "singular value"

	var lines []any
	for _, s := range series {
		xys := make(plotter.XYs, 0, len(s.Values))
		for i, v := range s.Values {
			if v > 0 {
				xys = append(xys, plotter.XY{X: float64(i + 1), Y: v})
			}
		}
		if len(xys) > 0 {
			lines = append(lines, s.Name, xys)
		}
	}
	if len(lines) > 0 {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
		if err := plotutil.AddLinePoints(p, lines...); err != nil {
			return fmt.Errorf("failed to add spectrum lines: %w", err)
		}
	}

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("failed to create %s canvas: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}
