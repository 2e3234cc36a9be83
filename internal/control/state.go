// Package control holds the state shared between the gesture loop, the
// scene loop and the outer surfaces (HTTP, tray, publisher).
package control

import (
	"sync"
	"time"
)

// State is one snapshot of the game control state.
type State struct {
	Session string `json:"session" cbor:"session"`
	// Left and Right are the last published finger counts per side.
	Left  int `json:"left" cbor:"left"`
	Right int `json:"right" cbor:"right"`
	// Target is the random digit drawn at mount.
	Target int `json:"target" cbor:"target"`

	Webcam      bool    `json:"webcam" cbor:"webcam"`
	Hands       int     `json:"hands" cbor:"hands"`
	VideoTimeMs float64 `json:"video_time_ms" cbor:"video_time_ms"`
	Frame       uint64  `json:"frame" cbor:"frame"`

	ObjectLoaded bool    `json:"object_loaded" cbor:"object_loaded"`
	ObjectZ      float64 `json:"object_z" cbor:"object_z"`

	Errors  []string  `json:"errors,omitempty" cbor:"errors,omitempty"`
	Updated time.Time `json:"updated" cbor:"updated"`
}

// Total returns the sum of both hands.
func (s State) Total() int { return s.Left + s.Right }

// Cell is a mutex-guarded State with latest-value subscribers.
type Cell struct {
	mu    sync.RWMutex
	state State
	subs  map[chan State]struct{}
	now   func() time.Time
}

// NewCell creates a cell holding initial.
func NewCell(initial State) *Cell {
	return &Cell{
		state: initial,
		subs:  make(map[chan State]struct{}),
		now:   time.Now,
	}
}

// Load returns a copy of the current state.
func (c *Cell) Load() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Update applies fn to the state, stamps it and notifies subscribers.
func (c *Cell) Update(fn func(*State)) State {
	c.mu.Lock()
	fn(&c.state)
	c.state.Updated = c.now()
	snap := c.state.clone()
	for ch := range c.subs {
		offer(ch, snap.clone())
	}
	c.mu.Unlock()
	return snap
}

// AddError records a status error message. Duplicates are ignored.
func (c *Cell) AddError(msg string) {
	c.Update(func(s *State) {
		for _, e := range s.Errors {
			if e == msg {
				return
			}
		}
		s.Errors = append(s.Errors, msg)
	})
}

// Subscribe returns a channel that always holds the most recent state, and a
// cancel func. Slow readers skip intermediate states.
func (c *Cell) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.state.clone()
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			close(ch)
			c.mu.Unlock()
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (c *Cell) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// offer replaces whatever is buffered in ch with s. Callers hold c.mu, so
// there is a single sender per channel.
func offer(ch chan State, s State) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}

func (s State) clone() State {
	if s.Errors != nil {
		s.Errors = append([]string(nil), s.Errors...)
	}
	return s
}
