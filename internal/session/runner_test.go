package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tape/internal/mock"
	"github.com/banshee-data/tape/internal/monitoring"
	"github.com/banshee-data/tape/internal/realtime"
	"github.com/banshee-data/tape/internal/scale"
	"github.com/banshee-data/tape/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

var epoch = time.Date(2025, time.May, 4, 6, 30, 0, 0, time.UTC)

func newTestRunner(t *testing.T) (*Runner, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(epoch)
	r := NewRunner(Config{
		Clock:            clock,
		Generator:        mock.NewGenerator(4, 4, mock.DefaultAmplitude),
		FrameInterval:    40 * time.Millisecond,
		EstimateInterval: time.Second,
	})
	t.Cleanup(r.Reset)
	return r, clock
}

func pushPair(r *Runner, ts int64, left, right float64) {
	r.PushFrame(realtime.GridFrame{Foot: realtime.Left, Timestamp: ts, Rows: 1, Cols: 1, Values: []float64{left}})
	r.PushFrame(realtime.GridFrame{Foot: realtime.Right, Timestamp: ts, Rows: 1, Cols: 1, Values: []float64{right}})
}

func TestNewRunner_Defaults(t *testing.T) {
	t.Parallel()
	r := NewRunner(Config{})
	assert.Equal(t, 40*time.Millisecond, r.frameInterval)
	assert.Equal(t, time.Second, r.estimateInterval)
	assert.NotNil(t, r.Store())
	assert.Equal(t, 1.0, r.Estimator().Scale())
	assert.IsType(t, timeutil.RealClock{}, r.clock)
}

func TestRunner_StartProducesFrames(t *testing.T) {
	t.Parallel()
	r, clock := newTestRunner(t)

	id := r.Start()
	require.NotEmpty(t, id)
	assert.Equal(t, id, r.SessionID())
	assert.True(t, r.Producing())
	require.Equal(t, 1, clock.Tickers())

	start, ok := r.Store().StartTime()
	require.True(t, ok)
	assert.Equal(t, epoch.UnixMilli(), start)

	// every tick pushes L then R; each tick adds exactly one aggregate
	for i := 1; i <= 6; i++ {
		clock.Advance(40 * time.Millisecond)
		require.Eventually(t, func() bool { return r.Store().HistoryLen() == i },
			time.Second, time.Millisecond, "tick %d", i)
	}

	h := r.Store().History()
	assert.Equal(t, epoch.Add(40*time.Millisecond).UnixMilli(), h[0].Timestamp)
	for _, s := range h {
		assert.Greater(t, s.SumLeft, 0.0)
		assert.Greater(t, s.SumRight, 0.0)
	}
}

func TestRunner_StartTwiceReplacesProducer(t *testing.T) {
	t.Parallel()
	r, clock := newTestRunner(t)

	first := r.Start()
	clock.Advance(40 * time.Millisecond)
	require.Eventually(t, func() bool { return r.Store().HistoryLen() == 1 }, time.Second, time.Millisecond)

	second := r.Start()
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, clock.Tickers(), "old producer ticker stopped")
	assert.Equal(t, 0, r.Store().HistoryLen(), "restart clears history")
}

func TestRunner_Pause(t *testing.T) {
	t.Parallel()
	r, clock := newTestRunner(t)

	r.Start()
	clock.Advance(40 * time.Millisecond)
	require.Eventually(t, func() bool { return r.Store().HistoryLen() == 1 }, time.Second, time.Millisecond)

	r.Pause()
	assert.False(t, r.Producing())
	assert.Equal(t, 0, clock.Tickers())

	clock.Advance(time.Second)
	assert.Equal(t, 1, r.Store().HistoryLen(), "no frames after pause")
	_, active := r.Store().StartTime()
	assert.True(t, active, "pause keeps the session")

	// pausing twice is harmless
	r.Pause()
}

func TestRunner_Reset(t *testing.T) {
	t.Parallel()
	r, clock := newTestRunner(t)

	r.Start()
	for i := int64(1); i <= 10; i++ {
		pushPair(r, epoch.UnixMilli()+i, 900, 800)
	}
	r.Estimate()
	require.Greater(t, r.Estimator().Scale(), 1.0)

	r.Reset()
	assert.False(t, r.Producing())
	assert.Equal(t, 0, clock.Tickers())
	assert.Empty(t, r.SessionID())
	assert.Equal(t, 1.0, r.Estimator().Scale())
	assert.Equal(t, 0, r.Store().HistoryLen())
	_, ok := r.Store().Last(realtime.Left)
	assert.False(t, ok)
	assert.Equal(t, time.Duration(0), r.Elapsed())
}

func TestRunner_EstimateFollowsHistory(t *testing.T) {
	t.Parallel()
	r, _ := newTestRunner(t)
	r.Start()
	r.Pause()

	base := epoch.UnixMilli()
	for i := int64(1); i <= 4; i++ {
		pushPair(r, base+i, 400, 100)
	}
	assert.Equal(t, 1.0, r.Estimate(), "fewer than five samples")

	pushPair(r, base+5, 400, 100)
	assert.InDelta(t, 1.12, r.Estimate(), 1e-12)

	r.Lock()
	assert.InDelta(t, 1.12, r.Estimate(), 1e-12, "locked")
	assert.False(t, r.ToggleLock())
	assert.InDelta(t, 1.12*1.12, r.Estimate(), 1e-12)
	r.Unlock()
}

func TestRunner_RunDrivesEstimator(t *testing.T) {
	t.Parallel()
	r, clock := newTestRunner(t)
	r.Start()
	r.Pause()
	for i := int64(1); i <= 5; i++ {
		pushPair(r, epoch.UnixMilli()+i, 1000, 1000)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return r.Estimator().Scale() > 1 }, time.Second, time.Millisecond)
	assert.InDelta(t, 1.12, r.Estimator().Scale(), 1e-12)

	// a producer started while running is torn down with the loop
	r.Start()
	require.True(t, r.Producing())

	cancel()
	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, r.Producing())
	assert.Equal(t, 0, clock.Tickers())
}

func TestRunner_Elapsed(t *testing.T) {
	t.Parallel()
	r, clock := newTestRunner(t)
	assert.Equal(t, time.Duration(0), r.Elapsed())

	r.Start()
	r.Pause()
	clock.Advance(83*time.Second + 400*time.Millisecond)
	assert.Equal(t, 83*time.Second+400*time.Millisecond, r.Elapsed())
	assert.Equal(t, "01:23", FormatElapsed(r.Elapsed()))
}

func TestFormatElapsed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{-5 * time.Second, "00:00"},
		{999 * time.Millisecond, "00:00"},
		{59 * time.Second, "00:59"},
		{61 * time.Second, "01:01"},
		{75 * time.Minute, "75:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.d), "%v", tt.d)
	}
}

func TestRunner_Snapshot(t *testing.T) {
	t.Parallel()
	r, clock := newTestRunner(t)

	empty := r.Snapshot()
	assert.False(t, empty.Active)
	assert.Nil(t, empty.Left)
	assert.Equal(t, "00:00", empty.Elapsed)
	assert.Equal(t, 1.0, empty.Scale)

	r.Start()
	r.Pause()
	base := epoch.UnixMilli()
	for i := int64(1); i <= 5; i++ {
		pushPair(r, base+i, 500, 250)
	}
	for i := 0; i < 100; i++ {
		r.Estimate()
	}
	require.Equal(t, 500.0, r.Estimator().Scale())
	clock.Advance(2 * time.Second)

	snap := r.Snapshot()
	assert.True(t, snap.Active)
	assert.False(t, snap.Producing)
	assert.Equal(t, base, snap.StartTime)
	assert.Equal(t, int64(2000), snap.ElapsedMs)
	assert.Equal(t, "00:02", snap.Elapsed)
	assert.Equal(t, 5, snap.HistoryLen)
	require.NotNil(t, snap.Left)
	require.NotNil(t, snap.Right)
	assert.Equal(t, []float64{1}, snap.Left.Values)
	assert.Equal(t, []float64{0.5}, snap.Right.Values)

	// stored frames stay raw
	raw, _ := r.Store().Last(realtime.Left)
	assert.Equal(t, []float64{500}, raw.Values)
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	empty := Summarize(nil)
	assert.Equal(t, Summary{LeftShare: 0.5}, empty)

	h := []realtime.Sample{
		{Timestamp: 1000, SumLeft: 100, SumRight: 300},
		{Timestamp: 1040, SumLeft: 200, SumRight: 100},
		{Timestamp: 1080, SumLeft: 400, SumRight: 100},
		{Timestamp: 1120, SumLeft: 100, SumRight: 100},
	}
	s := Summarize(h)
	assert.Equal(t, 4, s.Samples)
	assert.Equal(t, int64(120), s.DurationMs)
	// intensities 300, 200, 400, 100
	assert.InDelta(t, 250, s.MeanIntensity, 1e-9)
	assert.InDelta(t, 129.0994, s.StdDevIntensity, 1e-3)
	assert.Equal(t, 200.0, s.MedianIntensity)
	assert.Equal(t, 400.0, s.PeakIntensity)
	assert.Equal(t, 200.0, s.MeanLeft)
	assert.Equal(t, 150.0, s.MeanRight)
	assert.InDelta(t, 800.0/1400.0, s.LeftShare, 1e-12)

	one := Summarize(h[:1])
	assert.Equal(t, 0.0, one.StdDevIntensity)
	assert.Equal(t, int64(0), one.DurationMs)
}

func TestRunner_Summary(t *testing.T) {
	t.Parallel()
	r, _ := newTestRunner(t)
	id := r.Start()
	r.Pause()
	pushPair(r, epoch.UnixMilli()+1, 10, 30)

	s := r.Summary()
	assert.Equal(t, id, s.SessionID)
	assert.Equal(t, 1, s.Samples)
	assert.Equal(t, 1.0, s.Scale)
	assert.Equal(t, 0.25, s.LeftShare)
}

func TestSummarize_UsesScaleIntensities(t *testing.T) {
	t.Parallel()
	h := []realtime.Sample{{SumLeft: 3, SumRight: 9}}
	assert.Equal(t, scale.Intensities(h)[0], Summarize(h).PeakIntensity)
}

func TestRunner_StartAfterRunReturnsIsNotProducing(t *testing.T) {
	t.Parallel()
	r, clock := newTestRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	id := r.Start()
	assert.Equal(t, id, r.SessionID())
	require.Eventually(t, func() bool { return !r.Producing() }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return clock.Tickers() == 0 }, time.Second, time.Millisecond)
	assert.False(t, r.Snapshot().Producing)
	assert.True(t, r.Snapshot().Active)

	// stopping an exited producer is harmless
	r.Pause()
	assert.False(t, r.Producing())
}

func TestRunner_ElapsedFollowsClockSince(t *testing.T) {
	t.Parallel()
	r, clock := newTestRunner(t)
	r.Start()
	r.Pause()

	start, ok := r.Store().StartTime()
	require.True(t, ok)
	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, clock.Since(time.UnixMilli(start)), r.Elapsed())

	// a clock set before the start never yields a negative elapsed time
	clock.Set(epoch.Add(-time.Minute))
	assert.Equal(t, time.Duration(0), r.Elapsed())
}
