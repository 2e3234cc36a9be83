// Package game mounts a play session: it wires the camera, the hand detector,
// the overlay and the scene assets into the two frame loops and publishes the
// control state they share.
package game

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/ayusman/fingertrain/internal/capture"
	"github.com/ayusman/fingertrain/internal/control"
	"github.com/ayusman/fingertrain/internal/detector"
	"github.com/ayusman/fingertrain/internal/frame"
	"github.com/ayusman/fingertrain/internal/gesture"
	"github.com/ayusman/fingertrain/internal/logging"
	"github.com/ayusman/fingertrain/internal/overlay"
	"github.com/ayusman/fingertrain/internal/resource"
	"github.com/ayusman/fingertrain/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gocv.io/x/gocv"
)

// GestureLoop samples the video once per frame, runs landmark inference on
// new frames only, redraws the overlay and publishes per-hand finger counts.
type GestureLoop struct {
	video     *resource.Lazy[capture.Video]
	detector  *resource.Lazy[detector.Detector]
	overlay   *resource.Lazy[*overlay.Overlay]
	threshold float64
	cell      *control.Cell
	log       *logging.Logger
	tracer    trace.Tracer
	gate      *frame.Loop

	// mu is held for the whole tick so Release can wait out a running one.
	mu            sync.Mutex
	released      bool
	lastVideoTime float64
	lastStamp     int64
	frame         gocv.Mat
	hands         []detector.HandLandmarks
	counts        gesture.DigitCounts
	inferences    uint64
	ready         bool
}

// GestureOptions are optional collaborators of a GestureLoop.
type GestureOptions struct {
	// Threshold is the extension angle in degrees; zero means the default.
	Threshold float64
	Cell      *control.Cell
	Logger    *logging.Logger
}

// NewGestureLoop creates a stopped gesture loop over asynchronously loaded
// collaborators. overlay may be nil to disable drawing.
func NewGestureLoop(
	sched *frame.Scheduler,
	video *resource.Lazy[capture.Video],
	det *resource.Lazy[detector.Detector],
	ov *resource.Lazy[*overlay.Overlay],
	opts GestureOptions,
) *GestureLoop {
	if opts.Threshold <= 0 {
		opts.Threshold = gesture.DefaultAngleThreshold
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	g := &GestureLoop{
		video:         video,
		detector:      det,
		overlay:       ov,
		threshold:     opts.Threshold,
		cell:          opts.Cell,
		log:           opts.Logger.With("loop", "gesture"),
		tracer:        telemetry.Tracer(),
		lastVideoTime: -1,
		lastStamp:     -1,
		frame:         gocv.NewMat(),
	}
	g.gate = frame.NewLoop(sched, g.Tick)
	return g
}

// Start sets the gate and requests the first frame.
func (g *GestureLoop) Start() {
	g.gate.Start()
	g.publishGate()
}

// Stop clears the gate. A tick already running completes.
func (g *GestureLoop) Stop() {
	g.gate.Stop()
	g.publishGate()
}

// SetRunning starts or stops the loop.
func (g *GestureLoop) SetRunning(running bool) {
	if running {
		g.Start()
		return
	}
	g.Stop()
}

// Toggle flips the gate and returns the new state.
func (g *GestureLoop) Toggle() bool {
	running := g.gate.Toggle()
	g.publishGate()
	return running
}

// Running reports whether the gate is set.
func (g *GestureLoop) Running() bool { return g.gate.Running() }

func (g *GestureLoop) publishGate() {
	if g.cell == nil {
		return
	}
	running := g.gate.Running()
	g.cell.Update(func(s *control.State) { s.Webcam = running })
}

// Tick runs one frame: dedupe, infer, draw, classify, publish.
func (g *GestureLoop) Tick(time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return
	}

	video, err := g.video.Get()
	if err != nil {
		return
	}
	det, err := g.detector.Get()
	if err != nil {
		return
	}
	if !g.ready {
		g.ready = true
		g.log.Info("video and detector ready")
	}

	now := video.CurrentTime()
	if now != g.lastVideoTime {
		g.lastVideoTime = now
		g.infer(video, det, now)
	}

	if ov, ok := g.overlayReady(); ok {
		var bg *gocv.Mat
		if !g.frame.Empty() {
			bg = &g.frame
		}
		if err := ov.Draw(bg, g.hands); err != nil {
			g.log.Debug("overlay draw failed", "error", err)
		}
	}

	counts := gesture.Classify(g.hands, g.threshold)
	if g.counts.Apply(counts) {
		g.log.Debug("digits changed", "left", g.counts.Left, "right", g.counts.Right)
	}

	if g.cell != nil {
		left, right := g.counts.Left, g.counts.Right
		hands := len(g.hands)
		g.cell.Update(func(s *control.State) {
			s.Left = left
			s.Right = right
			s.Hands = hands
			s.VideoTimeMs = now
			s.Frame++
		})
	}
}

func (g *GestureLoop) overlayReady() (*overlay.Overlay, bool) {
	if g.overlay == nil {
		return nil, false
	}
	ov, err := g.overlay.Get()
	return ov, err == nil
}

func (g *GestureLoop) infer(video capture.Video, det detector.Detector, now float64) {
	mat, err := video.Frame()
	if err != nil {
		g.log.Debug("frame unavailable", "error", err)
		return
	}
	g.frame.Close()
	g.frame = *mat

	stamp := int64(math.Round(now))
	if stamp <= g.lastStamp {
		stamp = g.lastStamp + 1
	}
	g.lastStamp = stamp

	_, span := g.tracer.Start(context.Background(), "gesture.detect",
		trace.WithAttributes(attribute.Int64("video.timestamp_ms", stamp)))
	hands, err := det.Detect(&g.frame, stamp)
	span.End()

	if err != nil {
		g.log.Warn("hand detection failed", "error", err)
		return
	}
	g.hands = hands
	g.inferences++
}

// Counts returns the published digit counts.
func (g *GestureLoop) Counts() gesture.DigitCounts {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts
}

// Inferences returns how many frames went through the detector successfully.
func (g *GestureLoop) Inferences() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inferences
}

// Hands returns the most recent observations.
func (g *GestureLoop) Hands() []detector.HandLandmarks {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]detector.HandLandmarks(nil), g.hands...)
}

// Release stops the loop, waits for a running tick to finish and frees the
// retained frame. Later ticks do nothing.
func (g *GestureLoop) Release() {
	g.gate.Stop()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}
	g.released = true
	g.frame.Close()
	g.hands = nil
}
