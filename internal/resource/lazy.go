// Package resource models collaborators that become usable asynchronously.
//
// A Lazy value is loaded on a background goroutine; frame loops poll Ready
// instead of blocking, so a slow or stalled load never stalls a frame.
package resource

import (
	"context"
	"errors"
	"sync"
)

// ErrNotReady is returned by Get while the load is still in flight.
var ErrNotReady = errors.New("resource not ready")

// Loader produces the value of a Lazy.
type Loader[T any] func(ctx context.Context) (T, error)

// Lazy holds a value that is loaded once, in the background.
type Lazy[T any] struct {
	name string

	mu     sync.RWMutex
	value  T
	err    error
	ready  bool
	loaded bool
	done   chan struct{}
	once   sync.Once
}

// NewLazy creates an unloaded value identified by name.
func NewLazy[T any](name string) *Lazy[T] {
	return &Lazy[T]{name: name, done: make(chan struct{})}
}

// Ready returns an already-loaded Lazy holding v.
func Ready[T any](name string, v T) *Lazy[T] {
	l := NewLazy[T](name)
	l.Set(v, nil)
	return l
}

// Name returns the identifier given at construction.
func (l *Lazy[T]) Name() string { return l.name }

// Start runs load on a new goroutine. Only the first call has an effect.
func (l *Lazy[T]) Start(ctx context.Context, load Loader[T]) {
	l.once.Do(func() {
		go func() {
			v, err := load(ctx)
			l.Set(v, err)
		}()
	})
}

// Set completes the load with v or err. Later calls are ignored.
func (l *Lazy[T]) Set(v T, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return
	}
	l.loaded = true
	if err != nil {
		l.err = err
	} else {
		l.value = v
		l.ready = true
	}
	close(l.done)
}

// Ready reports whether the value loaded successfully.
func (l *Lazy[T]) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ready
}

// Get returns the loaded value, the load error, or ErrNotReady.
func (l *Lazy[T]) Get() (T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		var zero T
		return zero, l.err
	}
	if !l.ready {
		var zero T
		return zero, ErrNotReady
	}
	return l.value, nil
}

// Err returns the load error, if the load finished with one.
func (l *Lazy[T]) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Done is closed when the load finishes, successfully or not.
func (l *Lazy[T]) Done() <-chan struct{} { return l.done }

// Wait blocks until the load finishes or ctx is done.
func (l *Lazy[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-l.done:
		return l.Get()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
