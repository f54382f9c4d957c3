// Package scale derives the display divisor used to normalize pressure
// frames. The scale follows a high percentile of the session's aggregate
// intensity, never decreases on its own and rises by a bounded ratio per
// update.
package scale

import (
	"math"
	"slices"
	"sync"

	"github.com/banshee-data/tape/internal/realtime"
)

// Params controls the estimator.
type Params struct {
	// Percentile in [0,1] selected from the intensity history.
	Percentile float64
	// Floor is the smallest target the scale will chase.
	Floor float64
	// MaxRise bounds each update to scale*MaxRise.
	MaxRise float64
	// MinSamples is the history length below which updates are skipped.
	MinSamples int
}

// DefaultParams returns the P95 / floor 200 / +12% / 5 sample settings.
func DefaultParams() Params {
	return Params{
		Percentile: 0.95,
		Floor:      200,
		MaxRise:    1.12,
		MinSamples: 5,
	}
}

// Percentile returns the nearest-rank value at index floor(p*(n-1)) of the
// ascending values. An empty input yields 1. A zero at the selected rank
// falls back to the maximum, and to 1 if that is zero as well.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 1
	}
	a := slices.Clone(values)
	slices.Sort(a)
	k := int(math.Floor(p * float64(n-1)))
	k = max(0, min(n-1, k))
	if a[k] != 0 {
		return a[k]
	}
	if a[n-1] != 0 {
		return a[n-1]
	}
	return 1
}

// Intensities maps every history sample to the load of its more active
// foot. The whole history is used, not a window.
func Intensities(history []realtime.Sample) []float64 {
	out := make([]float64, len(history))
	for i, s := range history {
		out[i] = s.Intensity()
	}
	return out
}

// Estimator holds the current scale and lock flag. It is safe for
// concurrent use.
type Estimator struct {
	params Params

	mu     sync.Mutex
	scale  float64
	locked bool
}

// NewEstimator returns an unlocked estimator with scale 1.
func NewEstimator(p Params) *Estimator {
	return &Estimator{params: p, scale: 1}
}

// Params returns the estimator settings.
func (e *Estimator) Params() Params {
	return e.params
}

// Target is the value the scale moves toward for history:
// max(Floor, percentile of intensities).
func (e *Estimator) Target(history []realtime.Sample) float64 {
	return max(e.params.Floor, Percentile(Intensities(history), e.params.Percentile))
}

// Update recomputes the scale from history and returns it. Nothing changes
// while locked, with fewer than MinSamples entries, or when the target does
// not exceed the current scale. Otherwise the scale moves to the target,
// capped at scale*MaxRise.
func (e *Estimator) Update(history []realtime.Sample) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locked || len(history) < e.params.MinSamples {
		return e.scale
	}
	target := e.Target(history)
	if target <= e.scale {
		return e.scale
	}
	e.scale = min(target, e.scale*e.params.MaxRise)
	return e.scale
}

func (e *Estimator) Scale() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scale
}

func (e *Estimator) Lock() {
	e.mu.Lock()
	e.locked = true
	e.mu.Unlock()
}

func (e *Estimator) Unlock() {
	e.mu.Lock()
	e.locked = false
	e.mu.Unlock()
}

// Toggle flips the lock and returns the new state.
func (e *Estimator) Toggle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = !e.locked
	return e.locked
}

func (e *Estimator) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

// Reset puts the scale back to 1. The lock flag is left as is.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scale = 1
}

// Normalize divides v by the scale, treating scales below 1 as 1. The result
// is not clamped; renderers clamp to [0,1].
func Normalize(v, scale float64) float64 {
	return v / max(1, scale)
}

// NormalizeFrame returns a copy of f with every value normalized.
func NormalizeFrame(f realtime.GridFrame, scale float64) realtime.GridFrame {
	out := f.Clone()
	for i, v := range out.Values {
		out.Values[i] = Normalize(v, scale)
	}
	return out
}
