package session

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tape/internal/realtime"
	"github.com/banshee-data/tape/internal/scale"
)

// Snapshot is what a renderer needs to draw one refresh of the running
// screen. Frames are already normalized by the current scale.
type Snapshot struct {
	SessionID  string              `json:"session_id,omitempty"`
	Active     bool                `json:"active"`
	Producing  bool                `json:"producing"`
	StartTime  int64               `json:"start_time,omitempty"`
	ElapsedMs  int64               `json:"elapsed_ms"`
	Elapsed    string              `json:"elapsed"`
	Scale      float64             `json:"scale"`
	Locked     bool                `json:"locked"`
	HistoryLen int                 `json:"history_len"`
	Left       *realtime.GridFrame `json:"left,omitempty"`
	Right      *realtime.GridFrame `json:"right,omitempty"`
}

// Snapshot captures the current session state.
func (r *Runner) Snapshot() Snapshot {
	start, active := r.store.StartTime()
	elapsed := r.Elapsed()
	s := r.est.Scale()
	snap := Snapshot{
		SessionID:  r.SessionID(),
		Active:     active,
		Producing:  r.Producing(),
		ElapsedMs:  elapsed.Milliseconds(),
		Elapsed:    FormatElapsed(elapsed),
		Scale:      s,
		Locked:     r.est.Locked(),
		HistoryLen: r.store.HistoryLen(),
	}
	if active {
		snap.StartTime = start
	}
	if f, ok := r.store.Last(realtime.Left); ok {
		n := scale.NormalizeFrame(f, s)
		snap.Left = &n
	}
	if f, ok := r.store.Last(realtime.Right); ok {
		n := scale.NormalizeFrame(f, s)
		snap.Right = &n
	}
	return snap
}

// Summary holds descriptive statistics of a session's aggregate history.
// Intensity is the load of the more active foot per sample.
type Summary struct {
	SessionID       string  `json:"session_id,omitempty"`
	Samples         int     `json:"samples"`
	DurationMs      int64   `json:"duration_ms"`
	MeanIntensity   float64 `json:"mean_intensity"`
	StdDevIntensity float64 `json:"stddev_intensity"`
	MedianIntensity float64 `json:"median_intensity"`
	PeakIntensity   float64 `json:"peak_intensity"`
	MeanLeft        float64 `json:"mean_left"`
	MeanRight       float64 `json:"mean_right"`
	LeftShare       float64 `json:"left_share"`
	Scale           float64 `json:"scale"`
}

// Summary summarizes the current session.
func (r *Runner) Summary() Summary {
	s := Summarize(r.store.History())
	s.SessionID = r.SessionID()
	s.Scale = r.est.Scale()
	return s
}

// Summarize computes statistics over history. An empty history yields a
// zero summary with an even left share.
func Summarize(history []realtime.Sample) Summary {
	sum := Summary{Samples: len(history), LeftShare: 0.5}
	if len(history) == 0 {
		return sum
	}

	intensity := scale.Intensities(history)
	left := make([]float64, len(history))
	right := make([]float64, len(history))
	first, last := history[0].Timestamp, history[0].Timestamp
	for i, h := range history {
		left[i], right[i] = h.SumLeft, h.SumRight
		first = min(first, h.Timestamp)
		last = max(last, h.Timestamp)
	}
	sum.DurationMs = last - first

	mean, std := stat.MeanStdDev(intensity, nil)
	if math.IsNaN(std) {
		std = 0
	}
	sum.MeanIntensity = mean
	sum.StdDevIntensity = std
	sum.PeakIntensity = floats.Max(intensity)

	sorted := slices.Clone(intensity)
	slices.Sort(sorted)
	sum.MedianIntensity = stat.Quantile(0.5, stat.Empirical, sorted, nil)

	sum.MeanLeft = stat.Mean(left, nil)
	sum.MeanRight = stat.Mean(right, nil)
	if total := floats.Sum(left) + floats.Sum(right); total > 0 {
		sum.LeftShare = floats.Sum(left) / total
	}
	return sum
}
