package session

import "sync"

// subscription guards callback delivery: snapshots arrive in commit
// order, stale or duplicate versions are dropped, and close prevents
// any callback from firing after cancellation returns.
type subscription struct {
	mu     sync.Mutex
	closed bool
	last   int64
	fn     func(*GameSession)
}

func newSubscription(fn func(*GameSession)) *subscription {
	return &subscription{fn: fn}
}

func (s *subscription) deliver(g *GameSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if g != nil {
		if g.Version <= s.last {
			return
		}
		s.last = g.Version
	}
	s.fn(g)
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
