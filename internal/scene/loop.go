package scene

import (
	"time"

	"github.com/ayusman/fingertrain/internal/control"
	"github.com/ayusman/fingertrain/internal/frame"
	"github.com/ayusman/fingertrain/internal/logging"
	"github.com/ayusman/fingertrain/internal/resource"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config holds the per-frame motion and follow offsets.
type Config struct {
	// Step is how far the object moves along -Z each frame.
	Step float64 `yaml:"step" env:"STEP"`
	// CameraOffset places the camera relative to the object.
	CameraOffset r3.Vec `yaml:"camera_offset"`
	// LookOffset is the camera's aim point relative to the object.
	LookOffset r3.Vec `yaml:"look_offset"`
	// LightOffset places the directional light relative to the object.
	LightOffset r3.Vec `yaml:"light_offset"`
}

// DefaultConfig returns the default motion: 0.01 units per frame, camera
// behind and above, looking ahead down the track.
func DefaultConfig() Config {
	return Config{
		Step:         0.01,
		CameraOffset: r3.Vec{X: 0, Y: 2, Z: 3},
		LookOffset:   r3.Vec{X: 0, Y: 0, Z: -5},
		LightOffset:  r3.Vec{X: 5, Y: 10, Z: 7},
	}
}

// Steering lets control state influence the object before it advances.
type Steering interface {
	Steer(obj *Object, state control.State)
}

// SteeringFunc adapts a function to Steering.
type SteeringFunc func(obj *Object, state control.State)

// Steer calls f.
func (f SteeringFunc) Steer(obj *Object, state control.State) { f(obj, state) }

// IgnoreControls is the default Steering. Digit counts do not move the object.
type IgnoreControls struct{}

// Steer does nothing.
func (IgnoreControls) Steer(*Object, control.State) {}

// Options are optional collaborators of a Loop.
type Options struct {
	Steering Steering
	Cell     *control.Cell
	Logger   *logging.Logger
}

// Loop advances the object each frame and keeps the camera and light
// following it.
type Loop struct {
	cfg      Config
	scene    *Scene
	camera   *Camera
	renderer Renderer
	assets   *resource.Lazy[*Assets]
	steering Steering
	cell     *control.Cell
	log      *logging.Logger
	gate     *frame.Loop
	attached bool
	renders  uint64
}

// NewLoop creates a stopped scene loop. assets may be nil, in which case the
// object must be set with SetObject.
func NewLoop(sched *frame.Scheduler, renderer Renderer, assets *resource.Lazy[*Assets], cfg Config, opts Options) *Loop {
	if opts.Steering == nil {
		opts.Steering = IgnoreControls{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	l := &Loop{
		cfg:      cfg,
		scene:    &Scene{Light: &DirectionalLight{Intensity: 1}},
		camera:   NewCamera(1),
		renderer: renderer,
		assets:   assets,
		steering: opts.Steering,
		cell:     opts.Cell,
		log:      opts.Logger.With("loop", "scene"),
	}
	l.gate = frame.NewLoop(sched, l.Tick)
	return l
}

// Start begins requesting frames.
func (l *Loop) Start() { l.gate.Start() }

// Stop prevents the next frame.
func (l *Loop) Stop() { l.gate.Stop() }

// Running reports whether the loop gate is set.
func (l *Loop) Running() bool { return l.gate.Running() }

// Scene returns the scene the loop drives.
func (l *Loop) Scene() *Scene { return l.scene }

// Camera returns the following camera.
func (l *Loop) Camera() *Camera { return l.camera }

// Renders returns how many frames were rendered.
func (l *Loop) Renders() uint64 { return l.renders }

// SetObject replaces the controlled object. Call it from the frame goroutine.
func (l *Loop) SetObject(obj *Object) {
	l.scene.Object = obj
}

// Tick runs one frame. Without an object it does nothing.
func (l *Loop) Tick(time.Duration) {
	l.attachAssets()

	obj := l.scene.Object
	if obj == nil {
		return
	}

	var state control.State
	if l.cell != nil {
		state = l.cell.Load()
	}
	l.steering.Steer(obj, state)

	obj.Position.Z -= l.cfg.Step

	l.camera.Position = r3.Add(obj.Position, l.cfg.CameraOffset)
	l.camera.LookAt(r3.Add(obj.Position, l.cfg.LookOffset))

	light := l.scene.Light
	light.Position = r3.Add(obj.Position, l.cfg.LightOffset)
	light.Target = obj.Position
	light.TargetDirty = true

	if l.renderer != nil {
		if err := l.renderer.Render(l.scene, l.camera); err != nil {
			l.log.Warn("render failed", "error", err)
		} else {
			l.renders++
		}
	}

	if l.cell != nil {
		z := obj.Position.Z
		l.cell.Update(func(s *control.State) {
			s.ObjectLoaded = true
			s.ObjectZ = z
		})
	}
}

// Resize updates the camera aspect and the renderer size. It is driven by
// window layout, not by the loop.
func (l *Loop) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	l.camera.Aspect = float64(width) / float64(height)
	l.camera.UpdateProjection()
	if l.renderer != nil {
		l.renderer.SetSize(width, height)
	}
}

func (l *Loop) attachAssets() {
	if l.attached || l.assets == nil {
		return
	}
	select {
	case <-l.assets.Done():
	default:
		return
	}
	l.attached = true

	a, err := l.assets.Get()
	if err != nil {
		l.log.Error("scene assets failed to load", "error", err)
		return
	}
	l.scene.Environment = a.Environment
	l.scene.Ground = a.Ground
	if a.Object != nil {
		l.scene.Object = a.Object
		l.log.Info("object loaded", "name", a.Object.Name)
	}
}
