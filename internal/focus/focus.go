// Package focus animates the camera between free orbit control and framing
// a selected part.
package focus

import (
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/config"
	"github.com/Faultbox/drone-explorer/internal/logger"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

// EntireModel selects the home view.
const EntireModel = "entire_model"

// Stage is the animation stage.
type Stage int

const (
	// Idle leaves the camera to the user.
	Idle Stage = iota
	// Returning heads back to the home pose.
	Returning
	// Approaching heads to the current target pose.
	Approaching
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Returning:
		return "returning"
	case Approaching:
		return "approaching"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Camera is the camera being animated.
type Camera interface {
	Position() math.Vec3
	SetPosition(math.Vec3)
	Target() math.Vec3
	LookAt(math.Vec3)
	// FOV returns the vertical field of view in radians.
	FOV() float32
}

// Controls is the free orbit control the machine suspends while animating.
type Controls interface {
	Enabled() bool
	SetEnabled(bool)
	SetTarget(math.Vec3)
}

// Resolver finds the world-space bounds of a part by name.
type Resolver interface {
	Resolve(name string) (math.Box3, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (math.Box3, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(name string) (math.Box3, bool) { return f(name) }

// viewDirection is the fixed diagonal the camera approaches parts along.
var viewDirection = math.Vec3{X: 1, Y: 0.5, Z: 1}.Normalize()

// State is a snapshot of the machine.
type State struct {
	Stage          Stage
	TargetPosition math.Vec3
	TargetLookAt   math.Vec3
	// Selection is the last selected name; empty before the first selection.
	Selection string
	// Resolved reports whether Selection was found when it was selected.
	Resolved bool
}

// Machine is the camera focus state machine. It runs on the frame loop and
// is not safe for concurrent use.
type Machine struct {
	cam      Camera
	controls Controls
	resolver Resolver
	cfg      config.CameraConfig
	log      *zap.Logger

	home       math.Vec3
	homeLookAt math.Vec3

	state       State
	look        math.Vec3
	transitions int
}

// New creates a machine in the Idle stage.
func New(cam Camera, controls Controls, resolver Resolver, cfg config.CameraConfig, log *zap.Logger) *Machine {
	log = logger.OrNop(log)
	return &Machine{
		cam:        cam,
		controls:   controls,
		resolver:   resolver,
		cfg:        cfg,
		log:        log,
		home:       math.FromArray(cfg.HomePosition),
		homeLookAt: math.FromArray(cfg.HomeLookAt),
		look:       cam.Target(),
		state:      State{Resolved: true},
	}
}

// SetResolver replaces the part resolver, for example after a reload.
func (m *Machine) SetResolver(r Resolver) { m.resolver = r }

// Stage returns the current stage.
func (m *Machine) Stage() Stage { return m.state.Stage }

// State returns a snapshot.
func (m *Machine) State() State { return m.state }

// Transitions returns how many stage changes have happened.
func (m *Machine) Transitions() int { return m.transitions }

// Home returns the home camera position.
func (m *Machine) Home() math.Vec3 { return m.home }

func (m *Machine) setStage(s Stage) {
	if m.state.Stage == s {
		return
	}
	m.log.Debug("focus stage", zap.Stringer("from", m.state.Stage), zap.Stringer("to", s))
	m.state.Stage = s
	m.transitions++
}

// Select handles a change of selected part. Selecting the current selection
// again, or an empty name, does nothing.
func (m *Machine) Select(name string) {
	if name == "" || name == m.state.Selection {
		return
	}
	previousResolved := m.state.Resolved
	first := m.state.Selection == ""
	m.state.Selection = name
	m.controls.SetEnabled(false)

	if name == EntireModel {
		m.state.Resolved = true
		m.state.TargetPosition = m.home
		m.state.TargetLookAt = m.homeLookAt
		m.setStage(Returning)
		return
	}

	var box math.Box3
	ok := m.resolver != nil
	if ok {
		box, ok = m.resolver.Resolve(name)
	}
	if !ok || box.IsEmpty() {
		m.log.Warn("selected part not found, returning home", zap.String("part", name))
		m.state.Resolved = false
		m.state.TargetPosition = m.home
		m.state.TargetLookAt = m.homeLookAt
		m.setStage(Returning)
		return
	}

	m.state.Resolved = true
	m.state.TargetPosition, m.state.TargetLookAt = m.Frame(box)
	if !previousResolved && !first {
		m.setStage(Returning)
		return
	}
	m.setStage(Approaching)
}

// Frame returns the camera position and look-at point that fit box in view.
func (m *Machine) Frame(box math.Box3) (position, lookAt math.Vec3) {
	center := box.Center()
	extent := box.Size().MaxComponent()
	distance := math32.Max(extent*m.cfg.StandoffFactor/math32.Tan(m.cam.FOV()/2), m.cfg.MinStandoff)
	return center.Add(viewDirection.Scale(distance)), center
}

// Update advances the animation by one frame.
func (m *Machine) Update() {
	switch m.state.Stage {
	case Returning:
		m.cam.SetPosition(m.cam.Position().Lerp(m.home, m.cfg.ReturnSmoothing))
		m.look = m.look.Lerp(m.homeLookAt, m.cfg.LookSmoothing)
		m.cam.LookAt(m.look)
		if m.cam.Position().Distance(m.home) < m.cfg.Epsilon {
			m.setStage(Approaching)
		}

	case Approaching:
		m.cam.SetPosition(m.cam.Position().Lerp(m.state.TargetPosition, m.cfg.ApproachSmoothing))
		m.look = m.look.Lerp(m.state.TargetLookAt, m.cfg.LookSmoothing)
		m.cam.LookAt(m.look)
		if m.cam.Position().Distance(m.state.TargetPosition) < m.cfg.Epsilon {
			m.look = m.state.TargetLookAt
			m.cam.LookAt(m.look)
			m.release()
		}
	}
}

// release ends any animation and hands the camera back to the user.
func (m *Machine) release() {
	m.setStage(Idle)
	m.controls.SetTarget(m.look)
	m.controls.SetEnabled(true)
}

// SnapHome jumps to the home pose without animating.
func (m *Machine) SnapHome() {
	m.cam.SetPosition(m.home)
	m.look = m.homeLookAt
	m.cam.LookAt(m.look)
	m.release()
}

// EnableFreeControl stops any animation where it is and re-enables the
// orbit controls.
func (m *Machine) EnableFreeControl() {
	m.look = m.cam.Target()
	m.release()
}

// Reset forgets the current selection so the next Select always acts.
func (m *Machine) Reset() {
	m.state.Selection = ""
	m.state.Resolved = true
}
