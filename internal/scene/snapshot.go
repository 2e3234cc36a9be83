package scene

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Snapshot is what one Render call saw. It is safe to read after the frame.
type Snapshot struct {
	Object   r3.Vec
	Name     string
	Camera   Camera
	Light    r3.Vec
	Width    int
	Height   int
	Renders  uint64
	HasModel bool
}

// SnapshotRenderer records the last rendered frame for a display to draw.
// It is the renderer used by both the window and headless runs.
type SnapshotRenderer struct {
	mu     sync.Mutex
	snap   Snapshot
	ok     bool
	width  int
	height int
}

// NewSnapshotRenderer creates a renderer with the given initial viewport.
func NewSnapshotRenderer(width, height int) *SnapshotRenderer {
	return &SnapshotRenderer{width: width, height: height}
}

// Render records the scene.
func (r *SnapshotRenderer) Render(s *Scene, c *Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap.Renders++
	r.snap.Camera = *c
	r.snap.Width = r.width
	r.snap.Height = r.height
	if s.Object != nil {
		r.snap.Object = s.Object.Position
		r.snap.Name = s.Object.Name
		r.snap.HasModel = s.Object.Model != nil
	}
	if s.Light != nil {
		r.snap.Light = s.Light.Position
	}
	r.ok = true
	return nil
}

// SetSize updates the viewport used for the next Render.
func (r *SnapshotRenderer) SetSize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width = width
	r.height = height
}

// Latest returns the last snapshot, ok is false before the first Render.
func (r *SnapshotRenderer) Latest() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap, r.ok
}

// Line is a projected 2D segment in pixels.
type Line struct {
	X0, Y0, X1, Y1 float64
}

// Track geometry, in world units.
const (
	RailGauge   = 1.0
	SleeperStep = 1.0
	TrackAhead  = 40.0
	TrackBehind = 2.0
)

// TrackLines projects the two rails and the sleepers around the object.
// Segments with an endpoint behind the camera are dropped.
func TrackLines(snap Snapshot) []Line {
	cam := snap.Camera
	w, h := snap.Width, snap.Height
	z0 := snap.Object.Z + TrackBehind
	z1 := snap.Object.Z - TrackAhead
	x := snap.Object.X
	half := RailGauge / 2

	var lines []Line
	add := func(a, b r3.Vec) {
		ax, ay, okA := cam.Project(a, w, h)
		bx, by, okB := cam.Project(b, w, h)
		if okA && okB {
			lines = append(lines, Line{ax, ay, bx, by})
		}
	}

	// Rails are drawn in sleeper-length pieces so the near end can clip.
	for z := z0; z > z1; z -= SleeperStep {
		next := math.Max(z-SleeperStep, z1)
		add(r3.Vec{X: x - half, Z: z}, r3.Vec{X: x - half, Z: next})
		add(r3.Vec{X: x + half, Z: z}, r3.Vec{X: x + half, Z: next})
	}

	// Sleepers sit on whole-unit marks so they scroll as the object moves.
	for z := math.Floor(z0); z > z1; z -= SleeperStep {
		add(r3.Vec{X: x - half - 0.2, Z: z}, r3.Vec{X: x + half + 0.2, Z: z})
	}
	return lines
}
