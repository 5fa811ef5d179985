// Package controls defines the logical actions a user can trigger and the
// key bindings that produce them. It has no windowing dependency; the SDL
// input layer translates physical keys into these actions.
package controls

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/Faultbox/drone-explorer/internal/config"
)

// Action is a logical control.
type Action int

const (
	None Action = iota

	// Held flight controls.
	ThrustUp
	ThrustDown
	YawLeft
	YawRight
	PitchUp
	PitchDown
	StrafeForward
	StrafeBack
	StrafeLeft
	StrafeRight

	// One-shot commands.
	StartStop
	Reset
	Reload
	CyclePart
	OpenModel
	FreeView
	Screenshot
)

var actionNames = map[Action]string{
	None:          "none",
	ThrustUp:      "thrust_up",
	ThrustDown:    "thrust_down",
	YawLeft:       "yaw_left",
	YawRight:      "yaw_right",
	PitchUp:       "pitch_up",
	PitchDown:     "pitch_down",
	StrafeForward: "strafe_forward",
	StrafeBack:    "strafe_back",
	StrafeLeft:    "strafe_left",
	StrafeRight:   "strafe_right",
	StartStop:     "start_stop",
	Reset:         "reset",
	Reload:        "reload",
	CyclePart:     "cycle_part",
	OpenModel:     "open_model",
	FreeView:      "free_view",
	Screenshot:    "screenshot",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// IsFlight reports whether a is a held flight control.
func (a Action) IsFlight() bool {
	return a >= ThrustUp && a <= StrafeRight
}

// FlightActions lists every held flight control.
func FlightActions() []Action {
	out := make([]Action, 0, StrafeRight-ThrustUp+1)
	for a := ThrustUp; a <= StrafeRight; a++ {
		out = append(out, a)
	}
	return out
}

// Bindings maps normalized key names to actions.
type Bindings map[string]Action

// normalize makes key names case- and spacing-insensitive.
func normalize(key string) string {
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}

// FromConfig builds bindings from the controls config. Empty entries are
// unbound. A key bound to two actions is an error.
func FromConfig(cfg config.ControlsConfig) (Bindings, error) {
	entries := []struct {
		key    string
		action Action
	}{
		{cfg.ThrustUp, ThrustUp},
		{cfg.ThrustDown, ThrustDown},
		{cfg.YawLeft, YawLeft},
		{cfg.YawRight, YawRight},
		{cfg.PitchUp, PitchUp},
		{cfg.PitchDown, PitchDown},
		{cfg.StrafeForward, StrafeForward},
		{cfg.StrafeBack, StrafeBack},
		{cfg.StrafeLeft, StrafeLeft},
		{cfg.StrafeRight, StrafeRight},
		{cfg.StartStop, StartStop},
		{cfg.Reset, Reset},
		{cfg.Reload, Reload},
		{cfg.CyclePart, CyclePart},
		{cfg.OpenModel, OpenModel},
		{cfg.FreeView, FreeView},
		{cfg.Screenshot, Screenshot},
	}

	b := make(Bindings, len(entries))
	var err error
	for _, e := range entries {
		if e.key == "" {
			continue
		}
		k := normalize(e.key)
		if prev, dup := b[k]; dup {
			err = multierr.Append(err, fmt.Errorf("key %q bound to both %s and %s", e.key, prev, e.action))
			continue
		}
		b[k] = e.action
	}
	return b, err
}

// Lookup returns the action bound to key, or None. Unmapped keys are
// ignored by callers.
func (b Bindings) Lookup(key string) Action {
	return b[normalize(key)]
}

// Keys returns the keys bound to a, sorted.
func (b Bindings) Keys(a Action) []string {
	var keys []string
	for k, v := range b {
		if v == a {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
