// Package clock provides the injectable time source used by every component
// that reads the wall clock, so tests can drive schedules deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock exposes wall-clock time, a monotonic reading, and the local calendar
// date. Today is used only for "problems solved today" aggregations.
type Clock interface {
	Now() time.Time
	Monotonic() time.Duration
	Today() time.Time
}

// System is the real clock.
type System struct {
	start time.Time
}

// NewSystem returns a clock backed by the OS. The monotonic origin is the
// moment of construction.
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) Now() time.Time { return time.Now().UTC() }

// Monotonic returns nanosecond-resolution elapsed time since construction,
// immune to wall-clock adjustments.
func (s *System) Monotonic() time.Duration { return time.Since(s.start) }

// Today returns midnight of the current calendar date in the local timezone.
func (s *System) Today() time.Time {
	now := time.Now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// Fake is a manually driven clock for tests.
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	mono time.Duration
}

// NewFake returns a fake clock pinned at the given instant.
func NewFake(at time.Time) *Fake {
	return &Fake{now: at.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Monotonic() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mono
}

func (f *Fake) Today() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	y, m, d := f.now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Advance moves both the wall clock and the monotonic reading forward.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	f.mono += d
}

// Set pins the wall clock to a new instant without touching the monotonic
// reading.
func (f *Fake) Set(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = at.UTC()
}
