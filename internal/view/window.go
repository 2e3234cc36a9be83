// Package view shows the scene and the hand overlay in a desktop window and
// pumps the frame scheduler once per window tick.
package view

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/fingertrain/internal/control"
	"github.com/ayusman/fingertrain/internal/frame"
	"github.com/ayusman/fingertrain/internal/scene"
)

var (
	skyColor    = color.RGBA{R: 0x87, G: 0xce, B: 0xeb, A: 0xff}
	groundColor = color.RGBA{R: 0x4c, G: 0x7a, B: 0x3a, A: 0xff}
	railColor   = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
	trainColor  = color.RGBA{R: 0xc0, G: 0x1c, B: 0x28, A: 0xff}
)

// Config holds window settings.
type Config struct {
	Title  string `yaml:"title" env:"TITLE"`
	Width  int    `yaml:"width" env:"WIDTH"`
	Height int    `yaml:"height" env:"HEIGHT"`
	TPS    int    `yaml:"tps" env:"TPS"`
}

// DefaultConfig returns a 960x540 window at 60 ticks per second.
func DefaultConfig() Config {
	return Config{Title: "fingertrain", Width: 960, Height: 540, TPS: 60}
}

// JPEGSource yields the latest encoded overlay and its sequence number.
type JPEGSource interface {
	JPEG() ([]byte, uint64)
}

// Window is an ebiten.Game driving a session.
type Window struct {
	config   Config
	sched    *frame.Scheduler
	renderer *scene.SnapshotRenderer
	cell     *control.Cell
	overlay  func() (JPEGSource, bool)
	resize   func(w, h int)

	ctx        context.Context
	width      int
	height     int
	overlayImg *ebiten.Image
	overlaySeq uint64
}

// New creates a window. overlay and resize may be nil.
func New(config Config, sched *frame.Scheduler, renderer *scene.SnapshotRenderer, cell *control.Cell, overlay func() (JPEGSource, bool), resize func(w, h int)) *Window {
	if config.Width <= 0 || config.Height <= 0 {
		config.Width, config.Height = DefaultConfig().Width, DefaultConfig().Height
	}
	if config.TPS <= 0 {
		config.TPS = 60
	}
	return &Window{
		config:   config,
		sched:    sched,
		renderer: renderer,
		cell:     cell,
		overlay:  overlay,
		resize:   resize,
		ctx:      context.Background(),
	}
}

// Run opens the window and blocks until it is closed or ctx is done.
func (w *Window) Run(ctx context.Context) error {
	w.ctx = ctx
	ebiten.SetWindowTitle(w.config.Title)
	ebiten.SetWindowSize(w.config.Width, w.config.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(w.config.TPS)
	return ebiten.RunGame(w)
}

// Update steps every frame loop once.
func (w *Window) Update() error {
	if w.ctx.Err() != nil {
		return ebiten.Termination
	}
	w.sched.Step()
	return nil
}

// Draw paints the last rendered scene, the overlay and the digits.
func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(skyColor)

	if snap, ok := w.renderer.Latest(); ok {
		w.drawScene(screen, snap)
	}
	w.drawOverlay(screen)
	w.drawStatus(screen)
}

// Layout reports the window size and forwards changes to the resize handler.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != w.width || outsideHeight != w.height {
		w.width, w.height = outsideWidth, outsideHeight
		if w.resize != nil {
			w.resize(outsideWidth, outsideHeight)
		}
	}
	return outsideWidth, outsideHeight
}

func (w *Window) drawScene(screen *ebiten.Image, snap scene.Snapshot) {
	// Horizon: project a point far ahead at ground level.
	far := r3.Vec{X: snap.Object.X, Z: snap.Object.Z - 1000}
	if _, hy, ok := snap.Camera.Project(far, snap.Width, snap.Height); ok {
		hy = math.Max(0, math.Min(float64(snap.Height), hy))
		vector.DrawFilledRect(screen, 0, float32(hy), float32(snap.Width), float32(float64(snap.Height)-hy), groundColor, false)
	}

	for _, l := range scene.TrackLines(snap) {
		vector.StrokeLine(screen, float32(l.X0), float32(l.Y0), float32(l.X1), float32(l.Y1), 2, railColor, true)
	}

	// Train body: a box over the object, sized by its projected width.
	left := r3.Add(snap.Object, r3.Vec{X: -0.6, Y: 0.9})
	right := r3.Add(snap.Object, r3.Vec{X: 0.6})
	lx, ly, okL := snap.Camera.Project(left, snap.Width, snap.Height)
	rx, ry, okR := snap.Camera.Project(right, snap.Width, snap.Height)
	if okL && okR {
		vector.DrawFilledRect(screen, float32(lx), float32(ly), float32(rx-lx), float32(ry-ly), trainColor, true)
	}
}

func (w *Window) drawOverlay(screen *ebiten.Image) {
	if w.overlay == nil {
		return
	}
	src, ok := w.overlay()
	if !ok {
		return
	}
	data, seq := src.JPEG()
	if seq != 0 && seq != w.overlaySeq {
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err == nil {
			w.replaceOverlay(img)
			w.overlaySeq = seq
		}
	}
	if w.overlayImg == nil {
		return
	}

	// Top-right corner at a quarter of the window width.
	b := w.overlayImg.Bounds()
	scale := float64(w.width) / 4 / float64(b.Dx())
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(float64(w.width)-float64(b.Dx())*scale-8, 8)
	screen.DrawImage(w.overlayImg, op)
}

func (w *Window) replaceOverlay(img image.Image) {
	if w.overlayImg != nil && w.overlayImg.Bounds() == img.Bounds() {
		w.overlayImg.WritePixels(toRGBA(img).Pix)
		return
	}
	if w.overlayImg != nil {
		w.overlayImg.Deallocate()
	}
	w.overlayImg = ebiten.NewImageFromImage(img)
}

func (w *Window) drawStatus(screen *ebiten.Image) {
	if w.cell == nil {
		return
	}
	s := w.cell.Load()
	msg := fmt.Sprintf("Left %d  Right %d  Target %d", s.Left, s.Right, s.Target)
	if !s.Webcam {
		msg += "  (webcam off)"
	}
	ebitenutil.DebugPrintAt(screen, msg, 8, 8)
	for i, e := range s.Errors {
		ebitenutil.DebugPrintAt(screen, e, 8, 24+16*i)
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	return rgba
}
