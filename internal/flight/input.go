package flight

import "github.com/Faultbox/drone-explorer/internal/controls"

// InputState records which flight controls are held. It changes on key
// edges and is read once per tick.
type InputState struct {
	held map[controls.Action]bool
}

// NewInputState returns a state with nothing held.
func NewInputState() *InputState {
	return &InputState{held: make(map[controls.Action]bool)}
}

// Press marks a flight action held. Non-flight actions are ignored; the
// result reports whether a was accepted.
func (s *InputState) Press(a controls.Action) bool {
	if !a.IsFlight() {
		return false
	}
	s.held[a] = true
	return true
}

// Release marks a flight action released.
func (s *InputState) Release(a controls.Action) {
	delete(s.held, a)
}

// Held reports whether a is held.
func (s *InputState) Held(a controls.Action) bool {
	return s.held[a]
}

// ReleaseAll clears every held action, e.g. when the window loses focus.
func (s *InputState) ReleaseAll() {
	clear(s.held)
}

// axis returns +1, -1 or 0 for a pair of opposing actions.
func (s *InputState) axis(positive, negative controls.Action) float32 {
	var v float32
	if s.held[positive] {
		v++
	}
	if s.held[negative] {
		v--
	}
	return v
}
