// Package heatmap maps normalized pressure values to colours and lays grid
// frames out as plottable cells.
package heatmap

import (
	"fmt"
	"image/color"
	"math"

	"github.com/banshee-data/tape/internal/realtime"
)

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Color maps t in [0,1] onto a blue, green, yellow, red ramp. Values outside
// the range are clamped.
func Color(t float64) color.RGBA {
	t = clamp01(t)
	return color.RGBA{
		R: uint8(math.Round(255 * clamp01((t-0.5)*2))),
		G: uint8(math.Round(255 * (1 - math.Abs(t-0.5)*2))),
		B: uint8(math.Round(255 * clamp01((0.5-t)*2))),
		A: 0xff,
	}
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Ramp returns n evenly spaced colour stops from 0 to 1.
func Ramp(n int) []string {
	if n < 2 {
		n = 2
	}
	out := make([]string, n)
	for i := range out {
		out[i] = Hex(Color(float64(i) / float64(n-1)))
	}
	return out
}

// Cell is one grid value positioned for plotting. X is the column and Y the
// row, row 0 being the toe end.
type Cell struct {
	X     int
	Y     int
	Value float64
}

// Cells lays a row-major frame out as cells. With mirror set the columns are
// flipped so a left foot renders as the mirror image of a right foot. Values
// beyond Rows*Cols are ignored.
func Cells(f realtime.GridFrame, mirror bool) []Cell {
	if f.Cols <= 0 || f.Rows <= 0 {
		return nil
	}
	n := min(len(f.Values), f.Rows*f.Cols)
	out := make([]Cell, 0, n)
	for i := 0; i < n; i++ {
		r, c := i/f.Cols, i%f.Cols
		if mirror {
			c = f.Cols - 1 - c
		}
		out = append(out, Cell{X: c, Y: r, Value: f.Values[i]})
	}
	return out
}
