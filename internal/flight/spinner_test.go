package flight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/drone-explorer/internal/assembly"
	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

func propellers(names ...string) []*assembly.PartNode {
	out := make([]*assembly.PartNode, len(names))
	for i, n := range names {
		out[i] = &assembly.PartNode{Name: n, IsPropeller: true, Node: scene.NewMesh(n, &scene.Geometry{}, scene.NewMaterial(n))}
	}
	return out
}

func TestSpinDirection(t *testing.T) {
	assert.Equal(t, float32(-1), SpinDirection("GEO_Propeller_01"))
	assert.Equal(t, float32(1), SpinDirection("GEO_Propeller_02"))
	assert.Equal(t, float32(-1), SpinDirection("GEO_Propeller_03"))
	assert.Equal(t, float32(1), SpinDirection("GEO_Propeller_04"))
	assert.Equal(t, float32(1), SpinDirection("Propeller_Spare"))
}

func TestSpinnerStoppedDoesNotRotate(t *testing.T) {
	props := propellers("GEO_Propeller_02")
	s := NewSpinner(props, 12)
	before := props[0].Node.Rotation

	for i := 0; i < 100; i++ {
		s.Update(dt, false)
	}
	assert.Equal(t, before, props[0].Node.Rotation)
	angle, ok := s.Angle("GEO_Propeller_02")
	require.True(t, ok)
	assert.Zero(t, angle)
}

func TestSpinnerStartedRotatesEveryTick(t *testing.T) {
	props := propellers("GEO_Propeller_01", "GEO_Propeller_02")
	s := NewSpinner(props, 12)
	require.Equal(t, 2, s.Len())

	prev01, _ := s.Angle("GEO_Propeller_01")
	prev02, _ := s.Angle("GEO_Propeller_02")
	for i := 0; i < 100; i++ {
		s.Update(dt, true)

		a01, _ := s.Angle("GEO_Propeller_01")
		a02, _ := s.Angle("GEO_Propeller_02")
		assert.Less(t, a01, prev01, "odd rotor turns negative")
		assert.Greater(t, a02, prev02, "even rotor turns positive")
		prev01, prev02 = a01, a02
	}
	assert.InDelta(t, 12*100*dt, prev02, 1e-3)

	// Rotation is about the local Y axis only.
	n := props[1].Node
	assert.True(t, n.Rotation.Rotate(math.UnitY).ApproxEqual(math.UnitY, 1e-5))
	assert.False(t, n.Rotation.Rotate(math.UnitX).ApproxEqual(math.UnitX, 1e-3))
}

func TestSpinnerKeepsExistingOrientation(t *testing.T) {
	props := propellers("GEO_Propeller_04")
	tilt := math.QuatFromAxisAngle(math.UnitX, 0.5)
	props[0].Node.Rotation = tilt
	s := NewSpinner(props, 12)

	s.Update(dt, true)
	// The local Y axis stays where the tilt put it.
	want := tilt.Rotate(math.UnitY)
	assert.True(t, props[0].Node.Rotation.Rotate(math.UnitY).ApproxEqual(want, 1e-5))
}

func TestSpinnerLookup(t *testing.T) {
	s := NewSpinner(propellers("GEO_Propeller_01"), 1)
	assert.True(t, s.Has("GEO_Propeller_01"))
	assert.False(t, s.Has("GEO_Frame"))
	_, ok := s.Angle("GEO_Frame")
	assert.False(t, ok)
}
