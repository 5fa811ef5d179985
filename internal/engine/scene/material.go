package scene

import (
	"github.com/Faultbox/drone-explorer/internal/engine/texture"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

// Material is a metallic-roughness surface description. Texture maps are
// shared between clones; scalar fields are per instance.
type Material struct {
	Name string

	Color    math.Vec3
	Emissive math.Vec3

	Metalness         float32
	Roughness         float32
	DisplacementScale float32
	EnvMapIntensity   float32
	Opacity           float32

	Map             *texture.Image
	NormalMap       *texture.Image
	MetalnessMap    *texture.Image
	RoughnessMap    *texture.Image
	DisplacementMap *texture.Image
}

// NewMaterial returns an opaque white material with no maps.
func NewMaterial(name string) *Material {
	return &Material{
		Name:            name,
		Color:           math.Vec3{X: 1, Y: 1, Z: 1},
		Roughness:       1,
		EnvMapIntensity: 1,
		Opacity:         1,
	}
}

// Clone returns an independent copy. Changing the clone's color or emissive
// does not affect m.
func (m *Material) Clone() *Material {
	c := *m
	return &c
}

// Tint is the part of a material that highlighting overrides.
type Tint struct {
	Color    math.Vec3
	Emissive math.Vec3
}

// Tint returns the current color and emissive.
func (m *Material) Tint() Tint {
	return Tint{Color: m.Color, Emissive: m.Emissive}
}

// SetTint replaces color and emissive.
func (m *Material) SetTint(t Tint) {
	m.Color = t.Color
	m.Emissive = t.Emissive
}

// SetMap assigns a texture to the slot for a channel name. Unknown channels
// are ignored.
func (m *Material) SetMap(channel string, img *texture.Image) {
	switch channel {
	case texture.ChannelDiffuse:
		m.Map = img
	case texture.ChannelNormal:
		m.NormalMap = img
	case texture.ChannelMetalness:
		m.MetalnessMap = img
	case texture.ChannelRoughness:
		m.RoughnessMap = img
	case texture.ChannelHeight:
		m.DisplacementMap = img
	}
}
