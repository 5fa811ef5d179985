package loader

import (
	"fmt"

	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/pkg/formats"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

// BuildGraph turns a parsed OBJ into a scene group with one mesh leaf per
// object. Materials are looked up in lib when present; objects without a
// known material get a default white one.
func BuildGraph(name string, obj *formats.OBJ, lib *formats.MTL) (*scene.Node, error) {
	if obj == nil || len(obj.Objects) == 0 {
		return nil, formats.ErrNoGeometry
	}

	root := scene.NewGroup(name)
	for _, o := range obj.Objects {
		if o.TriangleCount() == 0 {
			continue
		}
		geom := &scene.Geometry{Positions: make([]math.Vec3, len(o.Positions))}
		for i, p := range o.Positions {
			geom.Positions[i] = math.FromArray(p)
		}
		if len(o.Normals) == len(o.Positions) {
			geom.Normals = make([]math.Vec3, len(o.Normals))
			for i, n := range o.Normals {
				geom.Normals[i] = math.FromArray(n)
			}
		} else {
			geom.ComputeFlatNormals()
		}
		if o.HasUVs() {
			geom.UVs = append([][2]float32(nil), o.UVs...)
		}

		root.Add(scene.NewMesh(o.Name, geom, materialFor(o.Material, lib)))
	}
	if len(root.Children()) == 0 {
		return nil, fmt.Errorf("%s: %w", name, formats.ErrNoGeometry)
	}
	return root, nil
}

func materialFor(name string, lib *formats.MTL) *scene.Material {
	mat := scene.NewMaterial(name)
	src := lib.Get(name)
	if src == nil {
		return mat
	}
	mat.Color = math.FromArray(src.Diffuse)
	mat.Emissive = math.FromArray(src.Emissive)
	mat.Opacity = src.Opacity
	return mat
}
