// Package device tracks the insole status shown on the home dashboard.
package device

import (
	"fmt"
	"sync"
)

// AnkleState is the coarse ankle assessment reported to the runner.
type AnkleState string

const (
	AnkleSafe    AnkleState = "safe"
	AnkleCaution AnkleState = "caution"
)

func ParseAnkleState(s string) (AnkleState, error) {
	switch AnkleState(s) {
	case AnkleSafe, AnkleCaution:
		return AnkleState(s), nil
	}
	return "", fmt.Errorf("unknown ankle state %q: expected %q or %q", s, AnkleSafe, AnkleCaution)
}

// Status is a point-in-time copy of the device state.
type Status struct {
	Connected    bool       `json:"connected"`
	BatteryLeft  int        `json:"battery_left"`
	BatteryRight int        `json:"battery_right"`
	RecentRuns   int        `json:"recent_runs"`
	AnkleState   AnkleState `json:"ankle_state"`
}

// Tracker holds the device status. It is safe for concurrent use.
type Tracker struct {
	mu sync.Mutex
	s  Status
}

// NewTracker returns a disconnected device with empty batteries.
func NewTracker() *Tracker {
	return &Tracker{s: Status{AnkleState: AnkleSafe}}
}

// NewDemoTracker returns the status used by the demo build: connected,
// batteries at 100% and 98%, five recent runs, ankle safe.
func NewDemoTracker() *Tracker {
	return &Tracker{s: Status{
		Connected:    true,
		BatteryLeft:  100,
		BatteryRight: 98,
		RecentRuns:   5,
		AnkleState:   AnkleSafe,
	}}
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

func (t *Tracker) SetConnection(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Connected = connected
}

// SetBatteries sets both battery levels, clamped to 0..100.
func (t *Tracker) SetBatteries(left, right int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.BatteryLeft = clampPercent(left)
	t.s.BatteryRight = clampPercent(right)
}

func (t *Tracker) SetRecentRuns(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.RecentRuns = max(0, n)
}

func (t *Tracker) SetAnkleState(s AnkleState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.AnkleState = s
}

// Update is a partial status change; nil fields are left untouched.
type Update struct {
	Connected    *bool   `json:"connected,omitempty"`
	BatteryLeft  *int    `json:"battery_left,omitempty"`
	BatteryRight *int    `json:"battery_right,omitempty"`
	RecentRuns   *int    `json:"recent_runs,omitempty"`
	AnkleState   *string `json:"ankle_state,omitempty"`
}

// Apply validates u and applies it atomically, returning the new status.
func (t *Tracker) Apply(u Update) (Status, error) {
	var ankle AnkleState
	if u.AnkleState != nil {
		a, err := ParseAnkleState(*u.AnkleState)
		if err != nil {
			return t.Status(), err
		}
		ankle = a
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if u.Connected != nil {
		t.s.Connected = *u.Connected
	}
	if u.BatteryLeft != nil {
		t.s.BatteryLeft = clampPercent(*u.BatteryLeft)
	}
	if u.BatteryRight != nil {
		t.s.BatteryRight = clampPercent(*u.BatteryRight)
	}
	if u.RecentRuns != nil {
		t.s.RecentRuns = max(0, *u.RecentRuns)
	}
	if ankle != "" {
		t.s.AnkleState = ankle
	}
	return t.s, nil
}

func clampPercent(v int) int {
	return max(0, min(100, v))
}
