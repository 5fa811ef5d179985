// Package flight drives the model as a rigid body from held keys and spins
// its propellers.
package flight

import (
	"errors"
	"time"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/config"
	"github.com/Faultbox/drone-explorer/internal/controls"
	"github.com/Faultbox/drone-explorer/internal/logger"
	"github.com/Faultbox/drone-explorer/internal/physics"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

// maxStepsPerUpdate bounds catch-up after a long frame.
const maxStepsPerUpdate = 5

// Body-local axes. The model faces -Z.
var (
	axisUp      = math.UnitY
	axisForward = math.Vec3{Z: -1}
	axisRight   = math.UnitX
)

// Telemetry is the read-only flight state published once per tick.
type Telemetry struct {
	Position        math.Vec3
	Orientation     math.Quat
	Velocity        math.Vec3
	AngularVelocity math.Vec3
	Thrust          float32

	// Force and Torque are what the last tick applied.
	Force  math.Vec3
	Torque math.Vec3

	Started bool
	Ticks   uint64
}

// Controller computes per-tick forces and torques for one body and steps
// the world it lives in. The world is owned by the caller.
type Controller struct {
	world *physics.World
	body  *physics.Body
	cfg   config.FlightConfig
	input *InputState
	log   *zap.Logger

	started bool
	thrust  float32
	force   math.Vec3
	torque  math.Vec3
	ticks   uint64
	pending time.Duration
}

// NewController adds body to world and returns its controller.
func NewController(world *physics.World, body *physics.Body, cfg config.FlightConfig, input *InputState, log *zap.Logger) (*Controller, error) {
	if world == nil || body == nil {
		return nil, errors.New("flight controller needs a world and a body")
	}
	if input == nil {
		input = NewInputState()
	}
	log = logger.OrNop(log)
	body.Mass = cfg.Mass
	body.LinearDamping = cfg.LinearDamping
	body.AngularDamping = cfg.AngularDamping
	if err := world.AddBody(body); err != nil {
		return nil, err
	}
	return &Controller{world: world, body: body, cfg: cfg, input: input, log: log}, nil
}

// Input returns the held-key state the controller reads.
func (c *Controller) Input() *InputState { return c.input }

// Body returns the controlled body.
func (c *Controller) Body() *physics.Body { return c.body }

// Started reports whether the simulation is running.
func (c *Controller) Started() bool { return c.started }

// Thrust returns the current thrust on top of gravity compensation.
func (c *Controller) Thrust() float32 { return c.thrust }

// Start begins simulating.
func (c *Controller) Start() {
	if c.started {
		return
	}
	c.started = true
	c.pending = 0
	c.log.Info("flight started")
}

// Stop halts simulation and zeroes everything applied to the body.
func (c *Controller) Stop() {
	if !c.started {
		return
	}
	c.started = false
	c.thrust = 0
	c.pending = 0
	c.clear()
	c.log.Info("flight stopped")
}

// Reset puts the body back at the origin, upright and at rest.
func (c *Controller) Reset() {
	c.body.SetPose(math.Vec3{}, math.QuatIdentity())
	c.thrust = 0
	c.pending = 0
	c.clear()
	c.log.Debug("flight reset")
}

func (c *Controller) clear() {
	c.body.ClearForces()
	c.force = math.Vec3{}
	c.torque = math.Vec3{}
}

// Update runs as many fixed ticks as elapsed covers and returns how many ran.
func (c *Controller) Update(elapsed time.Duration) (int, error) {
	if !c.started {
		return 0, nil
	}
	step := c.cfg.FixedStep
	if step <= 0 {
		step = time.Second / 60
	}
	c.pending += elapsed
	n := 0
	for c.pending >= step && n < maxStepsPerUpdate {
		c.pending -= step
		if err := c.Tick(float32(step.Seconds())); err != nil {
			return n, err
		}
		n++
	}
	if n == maxStepsPerUpdate {
		c.pending = 0
	}
	return n, nil
}

// Tick applies one tick of forces and steps the world by dt seconds. It does
// nothing while stopped.
func (c *Controller) Tick(dt float32) error {
	c.clear()
	if !c.started {
		return nil
	}
	b := c.body
	in := c.input

	c.thrust += in.axis(controls.ThrustUp, controls.ThrustDown) * c.cfg.ThrustStep
	c.thrust = math32.Max(0, math32.Min(c.thrust, c.cfg.MaxThrust))

	force := math.UnitY.Scale(b.Mass*c.cfg.Gravity + c.thrust)

	move := math.Vec3{}.
		Add(axisForward.Scale(in.axis(controls.StrafeForward, controls.StrafeBack))).
		Add(axisRight.Scale(in.axis(controls.StrafeRight, controls.StrafeLeft)))
	force = force.Add(b.VectorToWorld(move).Scale(c.cfg.MoveSpeed))

	// Proportional auto-level: the error bodyUp x worldUp rotates the body
	// back toward upright.
	torque := b.Up().Cross(math.UnitY).Scale(c.cfg.Stability)

	turn := math.Vec3{
		X: in.axis(controls.PitchUp, controls.PitchDown),
		Y: in.axis(controls.YawLeft, controls.YawRight),
	}
	torque = torque.Add(b.VectorToWorld(turn).Scale(c.cfg.RotationSpeed))

	b.ApplyForce(force)
	b.ApplyTorque(torque)
	c.force, c.torque = force, torque

	if err := c.world.Step(dt); err != nil {
		return err
	}
	c.ticks++
	return nil
}

// Telemetry returns the current flight state.
func (c *Controller) Telemetry() Telemetry {
	b := c.body
	return Telemetry{
		Position:        b.Position,
		Orientation:     b.Orientation,
		Velocity:        b.Velocity,
		AngularVelocity: b.AngularVelocity,
		Thrust:          c.thrust,
		Force:           c.force,
		Torque:          c.torque,
		Started:         c.started,
		Ticks:           c.ticks,
	}
}

// Close detaches the body from the world.
func (c *Controller) Close() error {
	c.started = false
	c.world.RemoveBody(c.body)
	return nil
}
