// Package selection resolves which part the user points at, highlights it
// and tells interested parties about the change.
package selection

import (
	"github.com/Faultbox/drone-explorer/internal/assembly"
	"github.com/Faultbox/drone-explorer/internal/engine/picking"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

// Hit is the nearest part under a ray.
type Hit struct {
	Part     *assembly.PartNode
	Distance float32
	Point    math.Vec3
}

// Picker casts rays against every part of an index.
type Picker struct {
	index *assembly.PartIndex
}

// NewPicker returns a picker over index.
func NewPicker(index *assembly.PartIndex) *Picker {
	return &Picker{index: index}
}

// SetIndex swaps the index after a reload.
func (p *Picker) SetIndex(index *assembly.PartIndex) { p.index = index }

// Pick returns the visible part nearest to the ray origin, if any.
func (p *Picker) Pick(r picking.Ray) (Hit, bool) {
	var best Hit
	found := false
	for _, part := range p.index.Parts() {
		if !visible(part) {
			continue
		}
		mesh := part.Node.Mesh()
		if mesh == nil {
			continue
		}
		d, ok := picking.IntersectGeometry(r, mesh.Geometry, part.Node.WorldMatrix())
		if !ok || (found && d >= best.Distance) {
			continue
		}
		best = Hit{Part: part, Distance: d}
		found = true
	}
	if found {
		best.Point = r.At(best.Distance)
	}
	return best, found
}

// visible reports whether the part and all its ancestors are shown.
func visible(part *assembly.PartNode) bool {
	for n := part.Node; n != nil; n = n.Parent() {
		if !n.Visible {
			return false
		}
	}
	return true
}
