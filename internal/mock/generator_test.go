package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tape/internal/realtime"
)

func TestGenerator_FrameShape(t *testing.T) {
	t.Parallel()
	g := NewGenerator(4, 4, DefaultAmplitude)
	t0 := time.Unix(1000, 0)
	now := t0.Add(130 * time.Millisecond)

	f := g.Frame(realtime.Right, t0, now)
	require.NoError(t, f.Validate())
	assert.Equal(t, realtime.Right, f.Foot)
	assert.Equal(t, now.UnixMilli(), f.Timestamp)
	for i, v := range f.Values {
		assert.GreaterOrEqual(t, v, 0.0, "cell %d", i)
		assert.LessOrEqual(t, v, float64(DefaultAmplitude), "cell %d", i)
		assert.Equal(t, float64(int64(v)), v, "cell %d is rounded", i)
	}
}

func TestGenerator_KnownCell(t *testing.T) {
	t.Parallel()
	g := NewGenerator(4, 4, 800)
	t0 := time.Unix(0, 0)

	// cell (r=1, c=2) at t=0 for the left foot: dx=0, dy=(1-0.8)/3.2,
	// stride=0.5+0.5*sin(0.9+0.35)
	f := g.Frame(realtime.Left, t0, t0)
	assert.Equal(t, 772.0, f.Values[1*4+2])
}

func TestGenerator_FeetOutOfPhase(t *testing.T) {
	t.Parallel()
	g := NewGenerator(4, 4, 800)
	t0 := time.Unix(0, 0)
	l, r := g.Pair(t0, t0.Add(200*time.Millisecond))
	assert.Equal(t, l.Timestamp, r.Timestamp)
	assert.NotEqual(t, l.Values, r.Values)
}

func TestGenerator_StrideRepeatsEverySecond(t *testing.T) {
	t.Parallel()
	g := NewGenerator(4, 4, 800)
	t0 := time.Unix(0, 0)
	a := g.Frame(realtime.Left, t0, t0.Add(300*time.Millisecond))
	b := g.Frame(realtime.Left, t0, t0.Add(1300*time.Millisecond))
	assert.InDeltaSlice(t, a.Values, b.Values, 1)
}
