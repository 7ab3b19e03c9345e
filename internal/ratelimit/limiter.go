package ratelimit

import (
	"sync"
	"time"
)

// Defaults for the AI escalation budget
const (
	DefaultLimit  = 15
	DefaultWindow = 60 * time.Second
)

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Window is a snapshot of the limiter state
type Window struct {
	Start time.Time
	Calls int
}

// Limiter allows at most limit calls per fixed window. The window restarts on the
// first call made more than window after it began. Safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	clock  Clock
	limit  int
	window time.Duration
	state  Window
}

// New creates a Limiter using the system clock
func New(limit int, window time.Duration) *Limiter {
	return NewWithClock(limit, window, systemClock{})
}

// NewWithClock creates a Limiter with an injected clock
func NewWithClock(limit int, window time.Duration, clock Clock) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		clock:  clock,
		limit:  limit,
		window: window,
	}
}

// Allow records an attempt and reports whether it fits in the budget
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.state.Start.IsZero() || now.Sub(l.state.Start) > l.window {
		l.state = Window{Start: now, Calls: 1}
		return true
	}
	if l.state.Calls < l.limit {
		l.state.Calls++
		return true
	}
	return false
}

// Snapshot returns the current window
func (l *Limiter) Snapshot() Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Limit returns the number of calls allowed per window
func (l *Limiter) Limit() int {
	return l.limit
}
