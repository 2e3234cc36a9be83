// Package frame provides a cooperative animation-frame scheduler.
//
// A Scheduler holds callbacks requested for the next frame. Each call to Step
// runs exactly the callbacks that were pending when the frame began; callbacks
// requested while a frame is running are deferred to the following frame. All
// callbacks run on the goroutine that calls Step, so loop bodies never run
// concurrently with each other.
package frame

import (
	"sync"
	"time"
)

// Callback is invoked once per requested frame with the time elapsed since
// the scheduler was created.
type Callback func(now time.Duration)

// Scheduler queues callbacks for the next animation frame.
type Scheduler struct {
	mu      sync.Mutex
	pending []Callback
	start   time.Time
	clock   func() time.Time
	frames  uint64
}

// NewScheduler creates a Scheduler using the wall clock.
func NewScheduler() *Scheduler {
	return NewSchedulerWithClock(time.Now)
}

// NewSchedulerWithClock creates a Scheduler using the given clock.
func NewSchedulerWithClock(clock func() time.Time) *Scheduler {
	return &Scheduler{
		clock: clock,
		start: clock(),
	}
}

// Request schedules cb for the next frame. It is safe to call from any goroutine.
func (s *Scheduler) Request(cb Callback) {
	if cb == nil {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, cb)
	s.mu.Unlock()
}

// Pending returns the number of callbacks waiting for the next frame.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Frames returns the number of frames stepped so far.
func (s *Scheduler) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Step runs one animation frame and returns the number of callbacks invoked.
func (s *Scheduler) Step() int {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.frames++
	now := s.clock().Sub(s.start)
	s.mu.Unlock()

	for _, cb := range batch {
		cb(now)
	}
	return len(batch)
}
