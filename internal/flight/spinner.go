package flight

import (
	"regexp"
	"strconv"

	"github.com/Faultbox/drone-explorer/internal/assembly"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

var numberedPropeller = regexp.MustCompile(`^GEO_Propeller_(\d+)$`)

// SpinDirection returns +1 or -1. Numbered propellers alternate so adjacent
// rotors counter-rotate: even numbers spin +1, odd numbers -1. Anything else
// spins +1.
func SpinDirection(name string) float32 {
	m := numberedPropeller.FindStringSubmatch(name)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n%2 == 0 {
		return 1
	}
	return -1
}

type rotor struct {
	part  *assembly.PartNode
	dir   float32
	angle float32
}

// Spinner turns propeller leaves about their local Y axis while the
// simulation runs.
type Spinner struct {
	rotors []*rotor
	byName map[string]*rotor
	rate   float32
}

// NewSpinner spins props at rate radians per second.
func NewSpinner(props []*assembly.PartNode, rate float32) *Spinner {
	s := &Spinner{byName: make(map[string]*rotor, len(props)), rate: rate}
	for _, p := range props {
		r := &rotor{part: p, dir: SpinDirection(p.Name)}
		s.rotors = append(s.rotors, r)
		s.byName[p.Name] = r
	}
	return s
}

// Update rotates every propeller by its share of dt. Nothing turns while
// stopped.
func (s *Spinner) Update(dt float32, started bool) {
	if !started || dt <= 0 {
		return
	}
	for _, r := range s.rotors {
		delta := r.dir * s.rate * dt
		r.angle += delta
		n := r.part.Node
		n.Rotation = n.Rotation.Mul(math.QuatFromAxisAngle(math.UnitY, delta)).Normalize()
	}
}

// Angle returns the total signed rotation applied to a propeller.
func (s *Spinner) Angle(name string) (float32, bool) {
	r, ok := s.byName[name]
	if !ok {
		return 0, false
	}
	return r.angle, true
}

// Has reports whether name is a spinning propeller.
func (s *Spinner) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Len returns the number of propellers.
func (s *Spinner) Len() int { return len(s.rotors) }
