package monitor

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tape/internal/realtime"
)

// TracePlot draws per-sample intensity and the current scale against
// seconds since the first sample.
func TracePlot(history []realtime.Sample, scale float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session intensity (%d samples)", len(history))
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = "pressure sum"
	p.Legend.Top = true
	p.Legend.Left = false

	if len(history) == 0 {
		return p, nil
	}

	t0 := history[0].Timestamp
	left := make(plotter.XYs, len(history))
	right := make(plotter.XYs, len(history))
	for i, s := range history {
		x := float64(s.Timestamp-t0) / 1000
		left[i] = plotter.XY{X: x, Y: s.SumLeft}
		right[i] = plotter.XY{X: x, Y: s.SumRight}
	}

	for _, series := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{
		{"left", left, color.RGBA{R: 0x1a, G: 0x73, B: 0xe8, A: 0xff}},
		{"right", right, color.RGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}},
	} {
		line, err := plotter.NewLine(series.pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", series.name, err)
		}
		line.Color = series.c
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(series.name, line)
	}

	last := left[len(left)-1].X
	scaleLine, err := plotter.NewLine(plotter.XYs{{X: 0, Y: scale}, {X: last, Y: scale}})
	if err != nil {
		return nil, fmt.Errorf("scale line: %w", err)
	}
	scaleLine.Color = color.RGBA{R: 0xb9, G: 0x1c, B: 0x1c, A: 0xff}
	scaleLine.Width = vg.Points(1.5)
	scaleLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(scaleLine)
	p.Legend.Add(fmt.Sprintf("scale %.0f", scale), scaleLine)

	return p, nil
}

// WriteTracePNG renders TracePlot as a PNG of the given size.
func WriteTracePNG(w io.Writer, history []realtime.Sample, scale float64, width, height vg.Length) error {
	p, err := TracePlot(history, scale)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render trace: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
