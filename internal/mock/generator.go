// Package mock synthesizes insole frames in place of the device transport.
package mock

import (
	"math"
	"time"

	"github.com/banshee-data/tape/internal/realtime"
	"github.com/banshee-data/tape/internal/timeutil"
)

// DefaultAmplitude is the peak cell reading of a synthetic frame.
const DefaultAmplitude = 800

// phase offsets the right foot by a quarter stride.
var phase = map[realtime.Foot]float64{
	realtime.Left:  0,
	realtime.Right: 0.25,
}

// Generator produces a radial pressure blob modulated by a 1 Hz stride wave.
type Generator struct {
	Rows      int
	Cols      int
	Amplitude float64
}

func NewGenerator(rows, cols int, amplitude float64) *Generator {
	return &Generator{Rows: rows, Cols: cols, Amplitude: amplitude}
}

// Frame returns the synthetic frame for foot at now, t0 being the start of
// the stride wave. The frame is stamped with now in epoch milliseconds.
func (g *Generator) Frame(foot realtime.Foot, t0, now time.Time) realtime.GridFrame {
	t := now.Sub(t0).Seconds()
	rows, cols := float64(g.Rows), float64(g.Cols)
	values := make([]float64, g.Rows*g.Cols)
	for i := range values {
		r, c := float64(i/g.Cols), float64(i%g.Cols)
		dx := (c - cols*0.5) / (cols * 0.5)
		dy := (r - rows*0.2) / (rows * 0.8)
		radial := math.Exp(-2.5 * (dx*dx + dy*dy))
		stride := 0.5 + 0.5*math.Sin(2*math.Pi*(t+phase[foot])+c*0.45+r*0.35)
		values[i] = max(0, math.Round(g.Amplitude*radial*stride))
	}
	return realtime.GridFrame{
		Foot:      foot,
		Timestamp: timeutil.UnixMilli(now),
		Rows:      g.Rows,
		Cols:      g.Cols,
		Values:    values,
	}
}

// Pair returns the left and right frames for one producer tick.
func (g *Generator) Pair(t0, now time.Time) (realtime.GridFrame, realtime.GridFrame) {
	return g.Frame(realtime.Left, t0, now), g.Frame(realtime.Right, t0, now)
}
