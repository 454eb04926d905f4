package clock

import (
	"sync"
	"time"
)

// Clocker abstracts time so callers can replace real time in tests.
type Clocker interface {
	Now() time.Time
}

// TimeClocker is the production clock backed by time.Now.
type TimeClocker struct{}

// New returns a TimeClocker that reads the current system time.
func New() *TimeClocker {
	return &TimeClocker{}
}

// Now returns the current system time.
func (*TimeClocker) Now() time.Time {
	return time.Now()
}

// Fixed is a Clocker pinned to a settable instant.
type Fixed struct {
	mu sync.RWMutex
	at time.Time
}

// NewFixed returns a clock that always reports at until moved.
func NewFixed(at time.Time) *Fixed {
	return &Fixed{at: at}
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.at
}

// Set pins the clock to at.
func (f *Fixed) Set(at time.Time) {
	f.mu.Lock()
	f.at = at
	f.mu.Unlock()
}

// Advance moves the pinned instant forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.at = f.at.Add(d)
	f.mu.Unlock()
}
