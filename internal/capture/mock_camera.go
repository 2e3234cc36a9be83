package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockVideo is a Video whose clock and frames are advanced by the test.
type MockVideo struct {
	mu      sync.Mutex
	frame   gocv.Mat
	time    float64
	width   int
	height  int
	loaded  chan struct{}
	once    sync.Once
	reads   int
	closed  bool
	readErr error
}

// NewMockVideo creates a mock video of the given size with a black frame.
// It is not loaded until Advance or MarkLoaded is called.
func NewMockVideo(width, height int) *MockVideo {
	return &MockVideo{
		frame:  gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3),
		width:  width,
		height: height,
		loaded: make(chan struct{}),
	}
}

// Advance moves playback time forward by ms and marks the video loaded.
func (v *MockVideo) Advance(ms float64) {
	v.mu.Lock()
	v.time += ms
	v.mu.Unlock()
	v.MarkLoaded()
}

// MarkLoaded closes the Loaded channel.
func (v *MockVideo) MarkLoaded() {
	v.once.Do(func() { close(v.loaded) })
}

// SetReadError makes Frame fail with err until cleared with nil.
func (v *MockVideo) SetReadError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.readErr = err
}

// CurrentTime returns the mock playback time.
func (v *MockVideo) CurrentTime() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.time
}

// Frame returns a copy of the mock frame.
func (v *MockVideo) Frame() (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrCameraNotOpen
	}
	if v.readErr != nil {
		return nil, v.readErr
	}
	v.reads++
	mat := v.frame.Clone()
	return &mat, nil
}

// Reads returns how many frames were copied out.
func (v *MockVideo) Reads() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reads
}

// Size returns the mock frame size.
func (v *MockVideo) Size() (int, int) { return v.width, v.height }

// Loaded is closed by Advance or MarkLoaded.
func (v *MockVideo) Loaded() <-chan struct{} { return v.loaded }

// Close releases the mock frame.
func (v *MockVideo) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	v.frame.Close()
	return nil
}

// Closed reports whether Close was called.
func (v *MockVideo) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
