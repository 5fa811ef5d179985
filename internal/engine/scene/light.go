package scene

import "github.com/Faultbox/drone-explorer/pkg/math"

// LightType distinguishes light sources.
type LightType int

const (
	AmbientLight LightType = iota
	PointLight
)

// Light is a light source declaration for the renderer.
type Light struct {
	Type      LightType
	Position  math.Vec3 // ignored for ambient lights
	Color     math.Vec3
	Intensity float32
	// Range is the falloff distance of a point light; 0 means unlimited.
	Range float32
}

// MaxPointLights is the maximum number of point lights the renderer uploads.
const MaxPointLights = 8

// NewAmbient returns a white ambient light.
func NewAmbient(intensity float32) Light {
	return Light{Type: AmbientLight, Color: math.Vec3{X: 1, Y: 1, Z: 1}, Intensity: intensity}
}

// NewPoint returns a white point light at pos.
func NewPoint(pos math.Vec3, intensity float32) Light {
	return Light{Type: PointLight, Position: pos, Color: math.Vec3{X: 1, Y: 1, Z: 1}, Intensity: intensity}
}

// CollectLights returns world-space copies of every light under root.
func CollectLights(root *Node) []Light {
	var out []Light
	root.Traverse(func(n *Node) {
		if n.kind != KindLight || !n.Visible {
			return
		}
		l := *n.light
		if l.Type == PointLight {
			l.Position = n.WorldMatrix().Translation()
		}
		out = append(out, l)
	})
	return out
}
