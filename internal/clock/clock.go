// Package clock abstracts time so that timers in the studio packages
// (call timeouts, settings debounce, batch ticks, refresh throttles)
// can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package the studio relies on.
type Clock interface {
	Now() time.Time

	// NewTimer returns a Timer whose C channel receives once after d.
	NewTimer(d time.Duration) *Timer

	// AfterFunc calls f in its own goroutine (real clock) or in the
	// goroutine calling Advance (fake clock) once d has elapsed.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a cancellable pending timer. C is nil for AfterFunc timers.
type Timer struct {
	C <-chan time.Time

	stop func() bool
}

// Stop prevents the timer from firing. It reports whether the call
// stopped the timer, false if it had already fired or been stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) *Timer {
	t := time.NewTimer(d)
	return &Timer{C: t.C, stop: t.Stop}
}

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}

// OrReal returns c, or the real clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}
