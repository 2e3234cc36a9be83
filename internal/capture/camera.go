// Package capture provides live video capture using GoCV (OpenCV).
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned before the first frame has arrived.
	ErrNoFrame = errors.New("no frame captured yet")
)

// Video is a live video source whose frames advance on their own.
// Readers sample it; they never drive it.
type Video interface {
	// CurrentTime returns the playback time of the current frame in milliseconds.
	CurrentTime() float64
	// Frame returns a copy of the current frame. The caller closes it.
	Frame() (*gocv.Mat, error)
	// Size returns the frame dimensions.
	Size() (width, height int)
	// Loaded is closed once the first frame is available.
	Loaded() <-chan struct{}
	// Close stops capture and releases resources.
	Close() error
}

// Config holds webcam settings.
type Config struct {
	DeviceID int `yaml:"device_id" env:"DEVICE_ID"`
	Width    int `yaml:"width" env:"WIDTH"`
	Height   int `yaml:"height" env:"HEIGHT"`
	FPS      int `yaml:"fps" env:"FPS"`
}

// DefaultConfig returns the default webcam settings.
func DefaultConfig() Config {
	return Config{
		DeviceID: 0,
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		FPS:      DefaultFPS,
	}
}

// Webcam streams frames from a camera device on a background goroutine and
// exposes the most recent one.
type Webcam struct {
	config  Config
	capture *gocv.VideoCapture

	mu       sync.Mutex
	current  gocv.Mat
	hasFrame bool
	time     float64
	width    int
	height   int
	running  bool

	opened time.Time
	loaded chan struct{}
	once   sync.Once
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewWebcam creates a closed Webcam.
func NewWebcam(config Config) *Webcam {
	if config.Width <= 0 {
		config.Width = DefaultWidth
	}
	if config.Height <= 0 {
		config.Height = DefaultHeight
	}
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	return &Webcam{
		config:  config,
		current: gocv.NewMat(),
		loaded:  make(chan struct{}),
	}
}

// Open opens the device and starts streaming. Permission or device failures
// are returned to the caller.
func (w *Webcam) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	capture, err := gocv.OpenVideoCapture(w.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", w.config.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open camera %d: %w", w.config.DeviceID, ErrCameraNotOpen)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(w.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(w.config.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(w.config.FPS))

	w.capture = capture
	w.running = true
	w.opened = time.Now()
	w.done = make(chan struct{})

	w.wg.Add(1)
	go w.stream(w.done)

	return nil
}

func (w *Webcam) stream(done <-chan struct{}) {
	defer w.wg.Done()

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		select {
		case <-done:
			return
		default:
		}

		if ok := w.capture.Read(&mat); !ok || mat.Empty() {
			time.Sleep(time.Second / time.Duration(w.config.FPS))
			continue
		}

		ts := w.capture.Get(gocv.VideoCapturePosMsec)
		if ts <= 0 {
			ts = float64(time.Since(w.opened).Microseconds()) / 1000
		}

		w.mu.Lock()
		mat.CopyTo(&w.current)
		w.hasFrame = true
		w.time = ts
		w.width = mat.Cols()
		w.height = mat.Rows()
		w.mu.Unlock()

		w.once.Do(func() { close(w.loaded) })
	}
}

// CurrentTime returns the capture time of the current frame in milliseconds.
func (w *Webcam) CurrentTime() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.time
}

// Frame returns a copy of the current frame.
func (w *Webcam) Frame() (*gocv.Mat, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil, ErrCameraNotOpen
	}
	if !w.hasFrame {
		return nil, ErrNoFrame
	}
	mat := w.current.Clone()
	return &mat, nil
}

// Size returns the dimensions of the current frame, or the requested size
// before the first frame arrives.
func (w *Webcam) Size() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hasFrame {
		return w.width, w.height
	}
	return w.config.Width, w.config.Height
}

// Loaded is closed once the first frame has been captured.
func (w *Webcam) Loaded() <-chan struct{} { return w.loaded }

// IsOpen returns true if the camera is currently streaming.
func (w *Webcam) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Close stops streaming and releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.capture.Close()
	w.capture = nil
	w.current.Close()
	w.current = gocv.NewMat()
	w.hasFrame = false
	return err
}
