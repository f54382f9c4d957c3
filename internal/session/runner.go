// Package session drives a running session: the mock frame producer, the
// periodic scale estimator, and the start/pause/lock/reset controls that
// bind them to a shared store and estimator.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/tape/internal/mock"
	"github.com/banshee-data/tape/internal/monitoring"
	"github.com/banshee-data/tape/internal/realtime"
	"github.com/banshee-data/tape/internal/scale"
	"github.com/banshee-data/tape/internal/timeutil"
)

// Config wires a Runner. Zero intervals fall back to 40ms frames and a 1s
// estimate period; a nil Clock uses the wall clock.
type Config struct {
	Clock            timeutil.Clock
	Store            *realtime.Store
	Estimator        *scale.Estimator
	Generator        *mock.Generator
	FrameInterval    time.Duration
	EstimateInterval time.Duration
}

// Runner owns the two periodic drivers of a session. The estimator loop
// lives for the duration of Run; the frame producer lives between Start and
// Pause/Reset, and never outlives Run.
type Runner struct {
	clock            timeutil.Clock
	store            *realtime.Store
	est              *scale.Estimator
	gen              *mock.Generator
	frameInterval    time.Duration
	estimateInterval time.Duration

	mu        sync.Mutex
	parent    context.Context
	sessionID string
	producer  *producer
}

type producer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner creates a Runner. Store, Estimator and Generator are created
// with defaults when nil.
func NewRunner(cfg Config) *Runner {
	r := &Runner{
		clock:            cfg.Clock,
		store:            cfg.Store,
		est:              cfg.Estimator,
		gen:              cfg.Generator,
		frameInterval:    cfg.FrameInterval,
		estimateInterval: cfg.EstimateInterval,
		parent:           context.Background(),
	}
	if r.clock == nil {
		r.clock = timeutil.RealClock{}
	}
	if r.store == nil {
		r.store = realtime.NewStore()
	}
	if r.est == nil {
		r.est = scale.NewEstimator(scale.DefaultParams())
	}
	if r.gen == nil {
		r.gen = mock.NewGenerator(4, 4, mock.DefaultAmplitude)
	}
	if r.frameInterval <= 0 {
		r.frameInterval = 40 * time.Millisecond
	}
	if r.estimateInterval <= 0 {
		r.estimateInterval = time.Second
	}
	return r
}

func (r *Runner) Store() *realtime.Store      { return r.store }
func (r *Runner) Estimator() *scale.Estimator { return r.est }

// Run drives the scale estimator until ctx is done, then stops the frame
// producer. It always returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.parent = ctx
	r.mu.Unlock()

	ticker := r.clock.NewTicker(r.estimateInterval)
	defer ticker.Stop()
	defer r.Pause()

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("session: estimator loop stopped: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C():
			r.Estimate()
		}
	}
}

// Estimate runs one estimator update against the current history.
func (r *Runner) Estimate() float64 {
	before := r.est.Scale()
	after := r.est.Update(r.store.History())
	if after != before {
		monitoring.Debugf("session: scale %.1f -> %.1f", before, after)
	}
	return after
}

// Start begins a new session at the current time and (re)starts the mock
// frame producer. Any previous producer is stopped first. It returns the new
// session ID.
func (r *Runner) Start() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopProducerLocked()
	t0 := r.clock.Now()
	r.store.SetStart(timeutil.UnixMilli(t0))
	r.sessionID = uuid.NewString()
	r.startProducerLocked(t0)

	monitoring.Logf("session %s: started at %s", r.sessionID, t0.Format(time.RFC3339Nano))
	return r.sessionID
}

// Pause stops the frame producer. History, scale and the session start are
// kept.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopProducerLocked() {
		monitoring.Logf("session %s: producer paused", r.sessionID)
	}
}

// Reset stops the producer and discards the session and the scale.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopProducerLocked()
	r.store.Reset()
	r.est.Reset()
	if r.sessionID != "" {
		monitoring.Logf("session %s: reset", r.sessionID)
	}
	r.sessionID = ""
}

func (r *Runner) Lock()            { r.est.Lock() }
func (r *Runner) Unlock()          { r.est.Unlock() }
func (r *Runner) ToggleLock() bool { return r.est.Toggle() }

// PushFrame feeds a frame from an external transport into the store.
func (r *Runner) PushFrame(f realtime.GridFrame) {
	r.store.PushFrame(f)
}

// Producing reports whether the mock producer is running. A producer
// started after Run has returned exits at once and is not reported.
func (r *Runner) Producing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.producer == nil {
		return false
	}
	select {
	case <-r.producer.done:
		return false
	default:
		return true
	}
}

func (r *Runner) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Elapsed is the time since the session start, zero without a session.
func (r *Runner) Elapsed() time.Duration {
	start, ok := r.store.StartTime()
	if !ok {
		return 0
	}
	return max(0, r.clock.Since(time.UnixMilli(start)))
}

// FormatElapsed renders d as mm:ss. Negative durations read as 00:00 and
// minutes keep counting past an hour.
func FormatElapsed(d time.Duration) string {
	s := int64(max(0, d) / time.Second)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func (r *Runner) startProducerLocked(t0 time.Time) {
	ctx, cancel := context.WithCancel(r.parent)
	p := &producer{cancel: cancel, done: make(chan struct{})}
	r.producer = p

	// the ticker exists before Start returns so a mock clock can drive it
	ticker := r.clock.NewTicker(r.frameInterval)
	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C():
				left, right := r.gen.Pair(t0, now)
				r.store.PushFrame(left)
				r.store.PushFrame(right)
			}
		}
	}()
}

// stopProducerLocked cancels the producer and waits for it to exit. It
// reports whether a producer was running.
func (r *Runner) stopProducerLocked() bool {
	p := r.producer
	if p == nil {
		return false
	}
	p.cancel()
	<-p.done
	r.producer = nil
	return true
}
