// Package realtime ingests per-foot pressure grid frames and accumulates the
// aggregate history used to derive the display scale of a running session.
package realtime

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFoot = errors.New("unknown foot")
	ErrGridSize    = errors.New("grid size does not match value count")
)

// Foot identifies which insole produced a frame.
type Foot int

const (
	Left Foot = iota
	Right
)

func (f Foot) String() string {
	switch f {
	case Left:
		return "L"
	case Right:
		return "R"
	default:
		return fmt.Sprintf("Foot(%d)", int(f))
	}
}

// ParseFoot accepts "L"/"R" as well as the long forms.
func ParseFoot(s string) (Foot, error) {
	switch s {
	case "L", "l", "left", "Left":
		return Left, nil
	case "R", "r", "right", "Right":
		return Right, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFoot, s)
}

func (f Foot) MarshalText() ([]byte, error) {
	if f != Left && f != Right {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFoot, int(f))
	}
	return []byte(f.String()), nil
}

func (f *Foot) UnmarshalText(b []byte) error {
	v, err := ParseFoot(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// GridFrame is one sampled pressure grid reading for one foot. Values are
// stored row-major; Timestamp is the receipt time in epoch milliseconds.
type GridFrame struct {
	Foot      Foot      `json:"foot"`
	Timestamp int64     `json:"ts"`
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Values    []float64 `json:"values"`
}

// Sum returns the total pressure of the frame with negative readings
// clamped to zero. Whatever values are present are summed, regardless of
// Rows and Cols.
func (f GridFrame) Sum() float64 {
	var s float64
	for _, v := range f.Values {
		if v > 0 {
			s += v
		}
	}
	return s
}

// Validate reports whether the frame satisfies len(Values) == Rows*Cols.
// The store does not call it; transports that want strict input do.
func (f GridFrame) Validate() error {
	if f.Foot != Left && f.Foot != Right {
		return fmt.Errorf("%w: %d", ErrUnknownFoot, int(f.Foot))
	}
	if f.Rows <= 0 || f.Cols <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrGridSize, f.Rows, f.Cols)
	}
	if len(f.Values) != f.Rows*f.Cols {
		return fmt.Errorf("%w: %dx%d with %d values", ErrGridSize, f.Rows, f.Cols, len(f.Values))
	}
	return nil
}

// Clone returns a deep copy so callers can hold it without sharing Values.
func (f GridFrame) Clone() GridFrame {
	c := f
	if f.Values != nil {
		c.Values = append([]float64(nil), f.Values...)
	}
	return c
}

// Sample is one aggregate history entry: the clamped sums of a synchronized
// left/right pair, stamped with the later of the two frame timestamps.
type Sample struct {
	Timestamp int64   `json:"ts"`
	SumLeft   float64 `json:"sum_left"`
	SumRight  float64 `json:"sum_right"`
}

// Intensity is the load of the more active foot.
func (s Sample) Intensity() float64 {
	return max(s.SumLeft, s.SumRight)
}
