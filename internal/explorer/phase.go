package explorer

import "fmt"

// Phase is the coarse lifecycle of the explorer.
type Phase int

const (
	// PhaseIdle means no model has been requested yet.
	PhaseIdle Phase = iota
	// PhaseLoading means a pipeline is in flight. Camera and flight are
	// not ticked.
	PhaseLoading
	// PhaseReady means the last load has been assembled, possibly degraded.
	PhaseReady
	// PhaseHalted means an unexpected frame error stopped the simulation.
	// Only a reload leaves it.
	PhaseHalted
)

var phaseNames = [...]string{
	PhaseIdle:    "idle",
	PhaseLoading: "loading",
	PhaseReady:   "ready",
	PhaseHalted:  "halted",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Ticking reports whether camera and flight updates run in this phase.
func (p Phase) Ticking() bool { return p == PhaseReady }
