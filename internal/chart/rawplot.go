package chart

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Default PNG size.
const (
	DefaultPNGWidth  = 10 * vg.Inch
	DefaultPNGHeight = 3 * vg.Inch
)

// RenderRawPNG draws values as a line against their index and writes a PNG.
// Non-positive sizes select the defaults.
func RenderRawPNG(w io.Writer, values []int64, width, height vg.Length) error {
	if width <= 0 {
		width = DefaultPNGWidth
	}
	if height <= 0 {
		height = DefaultPNGHeight
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Raw wave (%d samples)", len(values))
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Value"

	if len(values) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = -1, 1
	} else {
		pts := make(plotter.XYs, len(values))
		for i, v := range values {
			pts[i] = plotter.XY{X: float64(i), Y: float64(v)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build raw line: %w", err)
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to create png canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}
