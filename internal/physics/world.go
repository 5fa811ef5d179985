// Package physics is a small rigid-body integrator. A World is an explicitly
// constructed simulation context: it owns its bodies and must be closed by
// whoever created it.
package physics

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Faultbox/drone-explorer/pkg/math"
)

// ErrClosed is returned when stepping or modifying a closed world.
var ErrClosed = errors.New("physics world closed")

// World holds a set of bodies and advances them with a fixed gravity.
type World struct {
	Gravity math.Vec3

	mu     sync.Mutex
	bodies []*Body
	steps  uint64
	closed bool
}

// NewWorld returns a world with gravity g pointing down -Y.
func NewWorld(g float32) *World {
	return &World{Gravity: math.Vec3{Y: -g}}
}

// AddBody adds a body to the world.
func (w *World) AddBody(b *Body) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	for _, existing := range w.bodies {
		if existing == b {
			return errors.New("body already in world")
		}
	}
	w.bodies = append(w.bodies, b)
	return nil
}

// RemoveBody removes b. It reports whether b was present.
func (w *World) RemoveBody(b *Body) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, existing := range w.bodies {
		if existing == b {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			return true
		}
	}
	return false
}

// Bodies returns a copy of the body list.
func (w *World) Bodies() []*Body {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Body(nil), w.bodies...)
}

// Steps returns how many times Step has run.
func (w *World) Steps() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps
}

// Step advances every dynamic body by dt seconds, then clears forces.
func (w *World) Step(dt float32) error {
	if dt <= 0 {
		return fmt.Errorf("invalid time step %v", dt)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	for _, b := range w.bodies {
		if !b.Static {
			b.integrate(w.Gravity, dt)
		}
		b.ClearForces()
	}
	w.steps++
	return nil
}

// Close releases the world's bodies. Later calls are no-ops.
func (w *World) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.bodies = nil
	return nil
}
