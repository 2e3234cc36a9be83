package frame

import (
	"sync"
	"time"
)

// Loop is a self-rescheduling frame callback guarded by a running gate.
//
// After each tick the loop requests the next frame only if the gate is still
// set. Clearing the gate never interrupts a tick in progress; it prevents the
// next one.
type Loop struct {
	sched *Scheduler
	body  Callback

	mu        sync.Mutex
	running   bool
	scheduled bool
	ticks     uint64
}

// NewLoop creates a stopped loop that runs body once per frame.
func NewLoop(sched *Scheduler, body Callback) *Loop {
	return &Loop{sched: sched, body: body}
}

// Start sets the gate and schedules the first tick if none is pending.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = true
	if !l.scheduled {
		l.scheduled = true
		l.sched.Request(l.tick)
	}
}

// Stop clears the gate.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
}

// SetRunning starts or stops the loop.
func (l *Loop) SetRunning(running bool) {
	if running {
		l.Start()
		return
	}
	l.Stop()
}

// Toggle flips the gate and returns the new state.
func (l *Loop) Toggle() bool {
	l.mu.Lock()
	running := !l.running
	l.mu.Unlock()
	l.SetRunning(running)
	return running
}

// Running reports whether the gate is set.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Ticks returns how many times the body has run.
func (l *Loop) Ticks() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ticks
}

func (l *Loop) tick(now time.Duration) {
	l.mu.Lock()
	l.scheduled = false
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.ticks++
	l.mu.Unlock()

	l.body(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running && !l.scheduled {
		l.scheduled = true
		l.sched.Request(l.tick)
	}
}
