package physics

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/drone-explorer/pkg/math"
)

// Body is a rigid body with a diagonal inertia tensor. Forces and torques
// accumulate until the next World.Step and are cleared by it.
type Body struct {
	Position        math.Vec3
	Orientation     math.Quat
	Velocity        math.Vec3
	AngularVelocity math.Vec3 // world frame, rad/s

	Force  math.Vec3
	Torque math.Vec3

	Mass float32
	// Inertia holds the principal moments about the body's local axes.
	Inertia math.Vec3

	// Damping is the fraction of velocity lost per second, in [0, 1).
	LinearDamping  float32
	AngularDamping float32

	// Static bodies do not move and are not affected by gravity.
	Static bool
}

// NewBody returns a body at the origin with identity orientation. mass is
// clamped to a positive value. Inertia defaults to that of a unit cube.
func NewBody(mass float32) *Body {
	if mass <= 0 {
		mass = 1
	}
	i := mass / 6 // m*(s²+s²)/12 with s=1
	return &Body{
		Orientation: math.QuatIdentity(),
		Mass:        mass,
		Inertia:     math.Vec3{X: i, Y: i, Z: i},
	}
}

// ApplyForce adds a world-space force through the center of mass.
func (b *Body) ApplyForce(f math.Vec3) {
	b.Force = b.Force.Add(f)
}

// ApplyTorque adds a world-space torque.
func (b *Body) ApplyTorque(t math.Vec3) {
	b.Torque = b.Torque.Add(t)
}

// ClearForces zeroes accumulated force and torque.
func (b *Body) ClearForces() {
	b.Force = math.Vec3{}
	b.Torque = math.Vec3{}
}

// VectorToWorld rotates a body-local direction into world space.
func (b *Body) VectorToWorld(local math.Vec3) math.Vec3 {
	return b.Orientation.Rotate(local)
}

// Up returns the body's local +Y axis in world space.
func (b *Body) Up() math.Vec3 {
	return b.VectorToWorld(math.UnitY)
}

// SetPose places the body and stops all motion. Accumulated forces are
// dropped so nothing carries over into the next step.
func (b *Body) SetPose(position math.Vec3, orientation math.Quat) {
	b.Position = position
	b.Orientation = orientation.Normalize()
	b.Velocity = math.Vec3{}
	b.AngularVelocity = math.Vec3{}
	b.ClearForces()
}

// integrate advances the body by dt using semi-implicit Euler.
func (b *Body) integrate(gravity math.Vec3, dt float32) {
	accel := b.Force.Scale(1 / b.Mass).Add(gravity)
	b.Velocity = b.Velocity.Add(accel.Scale(dt)).Scale(dampingFactor(b.LinearDamping, dt))
	b.Position = b.Position.Add(b.Velocity.Scale(dt))

	// Angular acceleration is computed in the body frame where the inertia
	// tensor is diagonal.
	localTorque := b.Orientation.Conjugate().Rotate(b.Torque)
	localAlpha := math.Vec3{
		X: safeDiv(localTorque.X, b.Inertia.X),
		Y: safeDiv(localTorque.Y, b.Inertia.Y),
		Z: safeDiv(localTorque.Z, b.Inertia.Z),
	}
	alpha := b.Orientation.Rotate(localAlpha)
	b.AngularVelocity = b.AngularVelocity.Add(alpha.Scale(dt)).Scale(dampingFactor(b.AngularDamping, dt))
	b.Orientation = b.Orientation.Integrate(b.AngularVelocity, dt)
}

func dampingFactor(damping, dt float32) float32 {
	if damping <= 0 {
		return 1
	}
	return math32.Pow(1-math32.Min(damping, 0.999), dt)
}

func safeDiv(a, b float32) float32 {
	if b == 0 {
		return 0
	}
	return a / b
}
