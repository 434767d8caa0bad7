// Package batch coalesces bursts of work into at most one flush per tick.
package batch

import (
	"sync"
	"time"

	"github.com/grp06/openclaw-studio/internal/clock"
)

// DefaultTick is one display frame at 60Hz.
const DefaultTick = 16 * time.Millisecond

// Scheduler calls flush at most once per tick no matter how often Schedule
// is called in between.
type Scheduler struct {
	clock clock.Clock
	tick  time.Duration
	flush func()

	mu      sync.Mutex
	timer   *clock.Timer
	gen     uint64
	stopped bool
}

// NewScheduler returns a Scheduler calling flush. tick <= 0 uses DefaultTick
// and a nil clock uses the real one.
func NewScheduler(c clock.Clock, tick time.Duration, flush func()) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{clock: clock.OrReal(c), tick: tick, flush: flush}
}

// Schedule marks a flush as due on the next tick.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.timer != nil {
		return
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.tick, func() { s.fire(gen) })
}

// Cancel aborts a pending flush. Later Schedule calls work as usual.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Stop cancels a pending flush and ignores every later Schedule.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelLocked()
}

// Pending reports whether a flush is scheduled.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// fire ignores timers that were cancelled after they started firing.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.timer == nil || s.gen != gen || s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()
	s.flush()
}

// Queue accumulates items and hands everything gathered since the last
// flush to one call of flush, in insertion order.
type Queue[T any] struct {
	sched *Scheduler
	flush func([]T)

	// draining is held from taking the items until flush returns so
	// batches are delivered in the order they were taken.
	draining sync.Mutex

	mu    sync.Mutex
	items []T
}

// NewQueue returns a Queue flushing through fn once per tick.
func NewQueue[T any](c clock.Clock, tick time.Duration, fn func([]T)) *Queue[T] {
	q := &Queue[T]{flush: fn}
	q.sched = NewScheduler(c, tick, q.drain)
	return q
}

// Add appends items and schedules a flush.
func (q *Queue[T]) Add(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
	q.sched.Schedule()
}

// Len returns the number of items waiting for the next flush.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush delivers pending items immediately.
func (q *Queue[T]) Flush() {
	q.sched.Cancel()
	q.drain()
}

// Stop cancels the pending flush and drops whatever was queued.
func (q *Queue[T]) Stop() {
	q.sched.Stop()
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

func (q *Queue[T]) drain() {
	q.draining.Lock()
	defer q.draining.Unlock()

	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	if len(items) > 0 {
		q.flush(items)
	}
}
