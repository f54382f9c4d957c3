package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/tape/internal/monitoring"
)

// Store holds the latest frame per foot and the aggregate history of the
// current session. It is safe for concurrent use; readers get copies.
//
// Frames are also fanned out to subscribers so a renderer can follow the
// live stream without polling.
type Store struct {
	mu        sync.Mutex
	started   bool
	startTime int64
	lastLeft  *GridFrame
	lastRight *GridFrame
	history   []Sample

	subscriberMu sync.Mutex
	subscribers  map[string]chan GridFrame
	closing      bool
}

// NewStore returns an empty store with no active session.
func NewStore() *Store {
	return &Store{
		subscribers: make(map[string]chan GridFrame),
	}
}

// SetStart begins a session at t (epoch ms). History is cleared; the last
// frames are kept so the pre-session preview stays on screen.
func (s *Store) SetStart(t int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.startTime = t
	s.history = nil
}

// PushFrame records f as the latest frame for its foot. Once a session is
// active and f is not older than the start time, the clamped sums of the
// cached left/right pair are appended to the history unless the previous
// entry carries the same timestamp.
func (s *Store) PushFrame(f GridFrame) {
	f = f.Clone()

	s.mu.Lock()
	s.setLast(&f)
	if s.started && f.Timestamp >= s.startTime {
		s.aggregate()
	}
	s.mu.Unlock()

	s.publish(f)
}

func (s *Store) setLast(f *GridFrame) {
	if f.Foot == Left {
		s.lastLeft = f
	} else {
		s.lastRight = f
	}
}

func (s *Store) aggregate() {
	l, r := s.lastLeft, s.lastRight
	if l == nil || r == nil {
		return
	}
	ts := max(l.Timestamp, r.Timestamp)
	// only consecutive duplicates are skipped
	if n := len(s.history); n > 0 && s.history[n-1].Timestamp == ts {
		return
	}
	s.history = append(s.history, Sample{
		Timestamp: ts,
		SumLeft:   l.Sum(),
		SumRight:  r.Sum(),
	})
}

// Reset discards the session: start time, both cached frames and history.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.startTime = 0
	s.lastLeft = nil
	s.lastRight = nil
	s.history = nil
}

// StartTime returns the session start and whether a session is active.
func (s *Store) StartTime() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime, s.started
}

// Last returns a copy of the most recent frame for foot.
func (s *Store) Last(foot Foot) (GridFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.lastLeft
	if foot == Right {
		f = s.lastRight
	}
	if f == nil {
		return GridFrame{}, false
	}
	return f.Clone(), true
}

// History returns a copy of the aggregate history.
func (s *Store) History() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.history...)
}

func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Subscribe creates a channel receiving every pushed frame. The ID is used
// to unsubscribe. Delivery is best effort: frames are dropped for a
// subscriber that is not ready to receive.
func (s *Store) Subscribe() (string, chan GridFrame) {
	id := uuid.NewString()
	ch := make(chan GridFrame, 1)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closing {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (s *Store) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Close closes every subscriber channel. Frames pushed afterwards are still
// stored but no longer published.
func (s *Store) Close() {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.closing = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *Store) publish(f GridFrame) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closing {
		return
	}
	for id, ch := range s.subscribers {
		select {
		case ch <- f.Clone():
		default:
			monitoring.Debugf("realtime: subscriber %s not ready, dropped %s frame ts=%d", id, f.Foot, f.Timestamp)
		}
	}
}
