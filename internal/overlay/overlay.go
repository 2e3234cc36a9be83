// Package overlay draws detected hand landmarks over a mirrored video frame.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/ayusman/fingertrain/internal/detector"
	"gocv.io/x/gocv"
)

// Drawing colors and sizes.
var (
	ConnectionColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	LandmarkColor   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

const (
	connectionThickness = 2
	landmarkRadius      = 4
	jpegQuality         = 80
)

// ErrClosed is returned when drawing on a closed overlay.
var ErrClosed = errors.New("overlay closed")

// Overlay is a canvas sized to the video. Each Draw clears it, copies the
// mirrored frame in, draws every hand and keeps a JPEG of the result.
type Overlay struct {
	mu     sync.Mutex
	canvas gocv.Mat
	width  int
	height int
	jpeg   []byte
	seq    uint64
	closed bool
}

// New creates an overlay of the given size.
func New(width, height int) *Overlay {
	return &Overlay{
		canvas: gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3),
		width:  width,
		height: height,
	}
}

// Size returns the canvas dimensions.
func (o *Overlay) Size() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.width, o.height
}

// Project maps a normalized landmark onto a mirrored canvas of size w x h.
func Project(p detector.Point3D, w, h int) image.Point {
	return image.Pt(int((1-p.X)*float64(w)), int(p.Y*float64(h)))
}

// Draw redraws the canvas from frame and hands. A nil frame leaves a black
// background.
func (o *Overlay) Draw(frame *gocv.Mat, hands []detector.HandLandmarks) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}

	if frame != nil && !frame.Empty() && (frame.Cols() != o.width || frame.Rows() != o.height) {
		o.resize(frame.Cols(), frame.Rows())
	}

	o.canvas.SetTo(gocv.NewScalar(0, 0, 0, 0))
	if frame != nil && !frame.Empty() {
		gocv.Flip(*frame, &o.canvas, 1)
	}

	for i := range hands {
		o.drawHand(&hands[i])
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, o.canvas, []int{int(gocv.IMWriteJpegQuality), jpegQuality})
	if err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	data := buf.GetBytes()
	o.jpeg = append(o.jpeg[:0], data...)
	buf.Close()
	o.seq++

	return nil
}

func (o *Overlay) drawHand(hand *detector.HandLandmarks) {
	for _, c := range detector.Connections {
		a := Project(hand.Points[c[0]], o.width, o.height)
		b := Project(hand.Points[c[1]], o.width, o.height)
		gocv.Line(&o.canvas, a, b, ConnectionColor, connectionThickness)
	}
	for _, p := range hand.Points {
		gocv.Circle(&o.canvas, Project(p, o.width, o.height), landmarkRadius, LandmarkColor, -1)
	}
}

func (o *Overlay) resize(w, h int) {
	o.canvas.Close()
	o.canvas = gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	o.width = w
	o.height = h
}

// JPEG returns the last drawn canvas and its sequence number. The sequence
// is zero until the first Draw.
func (o *Overlay) JPEG() ([]byte, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seq == 0 {
		return nil, 0
	}
	out := make([]byte, len(o.jpeg))
	copy(out, o.jpeg)
	return out, o.seq
}

// Snapshot returns a copy of the canvas. The caller closes it.
func (o *Overlay) Snapshot() gocv.Mat {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.canvas.Clone()
}

// Close releases the canvas.
func (o *Overlay) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return o.canvas.Close()
}
