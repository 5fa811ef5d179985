// Package camera provides the perspective camera and the orbit controls
// that drive it while the user has free control.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/drone-explorer/pkg/math"
)

// Perspective is a perspective camera defined by an eye position and a
// look-at point.
type Perspective struct {
	position math.Vec3
	target   math.Vec3
	Up       math.Vec3

	FOVY   float32 // Vertical field of view, radians
	Aspect float32
	Near   float32
	Far    float32
}

// NewPerspective creates a camera at position looking at target.
func NewPerspective(fovDegrees, aspect float32, position, target math.Vec3) *Perspective {
	return &Perspective{
		position: position,
		target:   target,
		Up:       math.UnitY,
		FOVY:     fovDegrees * math32.Pi / 180,
		Aspect:   aspect,
		Near:     0.1,
		Far:      5000,
	}
}

// Position returns the eye position.
func (c *Perspective) Position() math.Vec3 { return c.position }

// SetPosition moves the eye.
func (c *Perspective) SetPosition(p math.Vec3) { c.position = p }

// Target returns the point the camera looks at.
func (c *Perspective) Target() math.Vec3 { return c.target }

// LookAt points the camera at p.
func (c *Perspective) LookAt(p math.Vec3) { c.target = p }

// FOV returns the vertical field of view in radians.
func (c *Perspective) FOV() float32 { return c.FOVY }

// SetAspect updates the aspect ratio after a resize.
func (c *Perspective) SetAspect(width, height int) {
	if height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
}

// ViewMatrix returns the view matrix for this camera.
func (c *Perspective) ViewMatrix() math.Mat4 {
	return math.LookAt(c.position, c.target, c.Up)
}

// ProjectionMatrix returns the projection matrix for this camera.
func (c *Perspective) ProjectionMatrix() math.Mat4 {
	return math.Perspective(c.FOVY, c.Aspect, c.Near, c.Far)
}

// ViewProjection returns projection * view.
func (c *Perspective) ViewProjection() math.Mat4 {
	return c.ProjectionMatrix().Mul(c.ViewMatrix())
}

// Orbit rotates and zooms a Perspective camera around a target point. Input
// is ignored while disabled so that animations can own the camera.
type Orbit struct {
	cam     *Perspective
	target  math.Vec3
	enabled bool

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbit creates enabled orbit controls around the camera's current target.
func NewOrbit(cam *Perspective) *Orbit {
	return &Orbit{
		cam:             cam,
		target:          cam.Target(),
		enabled:         true,
		MinDistance:     5,
		MaxDistance:     2000,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Enabled reports whether user input moves the camera.
func (o *Orbit) Enabled() bool { return o.enabled }

// SetEnabled turns user control on or off.
func (o *Orbit) SetEnabled(enabled bool) { o.enabled = enabled }

// Target returns the orbit center.
func (o *Orbit) Target() math.Vec3 { return o.target }

// SetTarget moves the orbit center and points the camera at it.
func (o *Orbit) SetTarget(t math.Vec3) {
	o.target = t
	o.cam.LookAt(t)
}

// spherical returns distance, yaw and pitch of the camera about the target.
func (o *Orbit) spherical() (dist, yaw, pitch float32) {
	offset := o.cam.Position().Sub(o.target)
	dist = offset.Length()
	if dist == 0 {
		return 0, 0, 0
	}
	yaw = math32.Atan2(offset.X, offset.Z)
	pitch = math32.Asin(math32.Max(-1, math32.Min(1, offset.Y/dist)))
	return dist, yaw, pitch
}

func (o *Orbit) place(dist, yaw, pitch float32) {
	offset := math.Vec3{
		X: dist * math32.Cos(pitch) * math32.Sin(yaw),
		Y: dist * math32.Sin(pitch),
		Z: dist * math32.Cos(pitch) * math32.Cos(yaw),
	}
	o.cam.SetPosition(o.target.Add(offset))
	o.cam.LookAt(o.target)
}

// HandleDrag rotates the camera around the target by a mouse delta.
func (o *Orbit) HandleDrag(deltaX, deltaY float32) {
	if !o.enabled {
		return
	}
	dist, yaw, pitch := o.spherical()
	yaw -= deltaX * o.DragSensitivity
	pitch += deltaY * o.DragSensitivity
	pitch = math32.Max(o.MinPitch, math32.Min(o.MaxPitch, pitch))
	o.place(dist, yaw, pitch)
}

// HandleZoom moves the camera toward or away from the target.
func (o *Orbit) HandleZoom(delta float32) {
	if !o.enabled {
		return
	}
	dist, yaw, pitch := o.spherical()
	dist -= delta * dist * o.ZoomSensitivity
	dist = math32.Max(o.MinDistance, math32.Min(o.MaxDistance, dist))
	o.place(dist, yaw, pitch)
}
