// Package scene holds the 3D scene graph pieces the scene loop drives: the
// controlled object, the following camera and the directional light.
package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Object is the controlled object. Its pose is a position in world space.
type Object struct {
	Name     string
	Position r3.Vec
	Model    *Model
}

// Camera is a perspective camera aimed at a target point.
type Camera struct {
	Position r3.Vec
	Target   r3.Vec
	Up       r3.Vec

	// FOV is the vertical field of view in degrees.
	FOV    float64
	Aspect float64
	Near   float64
	Far    float64

	focal float64
}

// NewCamera returns a camera with a 75 degree field of view.
func NewCamera(aspect float64) *Camera {
	c := &Camera{
		Up:     r3.Vec{Y: 1},
		FOV:    75,
		Aspect: aspect,
		Near:   0.1,
		Far:    1000,
	}
	c.UpdateProjection()
	return c
}

// LookAt aims the camera at target.
func (c *Camera) LookAt(target r3.Vec) {
	c.Target = target
}

// UpdateProjection recomputes the projection after FOV or Aspect changed.
func (c *Camera) UpdateProjection() {
	fov := c.FOV
	if fov <= 0 || fov >= 180 {
		fov = 75
	}
	c.focal = 1 / math.Tan(fov*math.Pi/360)
}

// Focal returns the projection scale computed by the last UpdateProjection.
func (c *Camera) Focal() float64 { return c.focal }

// Project maps a world point to pixel coordinates on a w x h viewport. ok is
// false when the point is behind the near plane.
func (c *Camera) Project(p r3.Vec, w, h int) (x, y float64, ok bool) {
	up := c.Up
	if up == (r3.Vec{}) {
		up = r3.Vec{Y: 1}
	}
	forward := r3.Unit(r3.Sub(c.Target, c.Position))
	right := r3.Unit(r3.Cross(forward, up))
	trueUp := r3.Cross(right, forward)

	d := r3.Sub(p, c.Position)
	zc := r3.Dot(d, forward)
	if zc <= c.Near {
		return 0, 0, false
	}
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	ndcX := c.focal * r3.Dot(d, right) / (zc * aspect)
	ndcY := c.focal * r3.Dot(d, trueUp) / zc

	x = (ndcX + 1) / 2 * float64(w)
	y = (1 - ndcY) / 2 * float64(h)
	return x, y, true
}

// DirectionalLight shines from Position toward Target. TargetDirty tells the
// renderer the target moved and its world matrix must be refreshed.
type DirectionalLight struct {
	Position    r3.Vec
	Target      r3.Vec
	TargetDirty bool
	Intensity   float64
}

// Direction returns the unit vector from the light toward its target.
func (l *DirectionalLight) Direction() r3.Vec {
	d := r3.Sub(l.Target, l.Position)
	if r3.Norm(d) == 0 {
		return r3.Vec{Y: -1}
	}
	return r3.Unit(d)
}

// Scene is everything a renderer draws.
type Scene struct {
	Object      *Object
	Light       *DirectionalLight
	Environment [6]*Texture
	Ground      *Texture
}

// Renderer draws a scene from a camera.
type Renderer interface {
	Render(s *Scene, c *Camera) error
	SetSize(width, height int)
}
