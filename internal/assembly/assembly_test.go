package assembly

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/internal/engine/texture"
	"github.com/Faultbox/drone-explorer/internal/loader"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

// box returns a leaf whose geometry spans [min, min+1] on every axis.
func box(name string, min math.Vec3, withUVs bool) *scene.Node {
	geom := &scene.Geometry{Positions: []math.Vec3{
		min,
		min.Add(math.Vec3{X: 1}),
		min.Add(math.Vec3{X: 1, Y: 1, Z: 1}),
	}}
	if withUVs {
		geom.UVs = [][2]float32{{0, 0}, {1, 0}, {1, 1}}
	}
	return scene.NewMesh(name, geom, scene.NewMaterial("src"))
}

func droneGraph() *scene.Node {
	root := scene.NewGroup("drone.obj")
	root.Add(box("GEO_Frame", math.Vec3{X: -2}, true))
	root.Add(box("GEO_Propeller_01", math.Vec3{X: 3, Y: 1}, true))
	root.Add(box("GEO_Propeller_02", math.Vec3{X: -3, Y: 1}, true))
	arms := scene.NewGroup("arms")
	arms.Add(box("GEO_Arm", math.Vec3{Z: 5}, true))
	arms.Add(box("Body_Shell", math.Vec3{Z: -5}, true))
	root.Add(arms)
	return root
}

func testTextures() *loader.TextureSet {
	set := loader.NewTextureSet()
	img := func(name string) *texture.Image {
		return &texture.Image{Name: name, RGBA: image.NewRGBA(image.Rect(0, 0, 1, 1))}
	}
	set.Put(loader.CategoryFrame, texture.ChannelDiffuse, img("frame_diffuse"))
	set.Put(loader.CategoryParts, texture.ChannelDiffuse, img("parts_diffuse"))
	set.Put(loader.CategoryParts, texture.ChannelHeight, img("parts_height"))
	return set
}

func TestAssembleClassifiesParts(t *testing.T) {
	group := scene.NewGroup("explorer")
	a := New(group, Options{})
	idx := a.Assemble(droneGraph(), testTextures())

	require.Equal(t, 5, idx.Len())
	assert.Equal(t, []string{"GEO_Frame", "GEO_Propeller_01", "GEO_Propeller_02", "GEO_Arm", "Body_Shell"}, idx.Names())
	assert.Same(t, idx, a.Index())

	frame, ok := idx.Lookup("GEO_Frame")
	require.True(t, ok)
	assert.True(t, frame.IsFrameLike)
	assert.False(t, frame.IsPropeller)

	shell, _ := idx.Lookup("Body_Shell")
	assert.True(t, shell.IsFrameLike, "body matches case-insensitively")

	arm, _ := idx.Lookup("GEO_Arm")
	assert.False(t, arm.IsFrameLike)

	props := idx.Propellers()
	require.Len(t, props, 2)
	assert.Equal(t, "GEO_Propeller_01", props[0].Name)
	_, ok = idx.Propeller("GEO_Propeller_02")
	assert.True(t, ok)
	_, ok = idx.Propeller("GEO_Frame")
	assert.False(t, ok)

	p, ok := idx.PartFor(arm.Node)
	require.True(t, ok)
	assert.Same(t, arm, p)
}

func TestAssembleMaterials(t *testing.T) {
	a := New(scene.NewGroup("explorer"), Options{})
	idx := a.Assemble(droneGraph(), testTextures())

	frame, _ := idx.Lookup("GEO_Frame")
	arm, _ := idx.Lookup("GEO_Arm")
	prop, _ := idx.Lookup("GEO_Propeller_01")

	fm := frame.Node.Mesh().Material
	assert.Equal(t, float32(0), fm.Metalness)
	assert.Equal(t, float32(0), fm.Roughness)
	require.NotNil(t, fm.Map)
	assert.Equal(t, "frame_diffuse", fm.Map.Name)
	assert.Nil(t, fm.DisplacementMap)

	am := arm.Node.Mesh().Material
	assert.Equal(t, float32(1), am.Metalness)
	assert.Equal(t, float32(1), am.Roughness)
	assert.InDelta(t, DisplacementScale, am.DisplacementScale, 1e-9)
	assert.Equal(t, "parts_height", am.DisplacementMap.Name)
	assert.True(t, arm.Node.Mesh().CastShadow)
	assert.True(t, arm.Node.Mesh().ReceiveShadow)

	// Each leaf owns its material.
	pm := prop.Node.Mesh().Material
	assert.NotSame(t, am, pm)
	pm.SetTint(scene.Tint{Color: math.Vec3{X: 1}, Emissive: math.Vec3{X: 1}})
	assert.Equal(t, math.Vec3{X: 1, Y: 1, Z: 1}, am.Color)
	assert.Equal(t, math.Vec3{}, am.Emissive)

	assert.Equal(t, scene.Tint{Color: math.Vec3{X: 1, Y: 1, Z: 1}}, arm.Original)
}

func TestAssembleSynthesizesNames(t *testing.T) {
	root := scene.NewGroup("anon")
	root.Add(box("", math.Vec3{}, true))
	root.Add(box("named", math.Vec3{}, true))
	root.Add(box("", math.Vec3{}, true))
	root.Add(box("unnamed_part_3", math.Vec3{}, true))
	root.Add(box("", math.Vec3{}, true))

	a := New(scene.NewGroup("explorer"), Options{NoLights: true})
	idx := a.Assemble(root, nil)

	names := idx.Names()
	assert.Equal(t, []string{"unnamed_part_0", "named", "unnamed_part_2", "unnamed_part_3", "unnamed_part_4"}, names)
	seen := map[string]bool{}
	for _, p := range idx.Parts() {
		assert.False(t, seen[p.Name], "duplicate %s", p.Name)
		seen[p.Name] = true
		assert.Equal(t, p.Name, p.Node.Name, "name stays on the leaf")
	}
	assert.Equal(t, names, idx.Names(), "stable across reads")
}

func TestAssembleAvoidsTakenSynthesizedName(t *testing.T) {
	root := scene.NewGroup("anon")
	root.Add(box("", math.Vec3{}, true))
	root.Add(box("unnamed_part_0", math.Vec3{}, true))

	idx := New(scene.NewGroup("explorer"), Options{NoLights: true}).Assemble(root, nil)
	assert.Equal(t, []string{"unnamed_part_0_1", "unnamed_part_0"}, idx.Names())
}

func TestAssembleRenamesDuplicateNames(t *testing.T) {
	root := scene.NewGroup("twins")
	first := box("GEO_Arm", math.Vec3{}, true)
	second := box("GEO_Arm", math.Vec3{Z: 5}, true)
	third := box("GEO_Arm", math.Vec3{Z: 10}, true)
	root.Add(first)
	root.Add(second)
	root.Add(box("GEO_Arm_2", math.Vec3{X: 5}, true))
	root.Add(third)

	idx := New(scene.NewGroup("explorer"), Options{NoLights: true}).Assemble(root, nil)
	assert.Equal(t, []string{"GEO_Arm", "GEO_Arm_3", "GEO_Arm_2", "GEO_Arm_4"}, idx.Names())
	assert.Equal(t, idx.Len(), len(idx.Names()), "every leaf is addressable")

	for _, leaf := range []*scene.Node{first, second, third} {
		p, ok := idx.Lookup(leaf.Name)
		require.True(t, ok, leaf.Name)
		assert.Same(t, leaf, p.Node)
		assert.Equal(t, leaf.Name, p.Node.Mesh().Material.Name)
	}
}

func TestRecenterPreservesWorldPosition(t *testing.T) {
	root := scene.NewGroup("tilted")
	root.Position = math.Vec3{X: 4, Y: -1, Z: 2}
	root.Rotation = math.QuatFromAxisAngle(math.UnitZ, 0.7)

	leaves := []*scene.Node{
		box("a", math.Vec3{X: 10, Y: 3, Z: -7}, true),
		box("b", math.Vec3{X: -0.25, Y: 100, Z: 0.5}, true),
		box("c", math.Vec3{}, true),
	}
	leaves[0].Position = math.Vec3{X: 1, Y: 2, Z: 3}
	leaves[0].Rotation = math.QuatFromAxisAngle(math.Vec3{X: 1, Y: 1}.Normalize(), 1.1)
	leaves[1].Scale = math.Vec3{X: 2, Y: 0.5, Z: 3}

	before := make([]math.Vec3, len(leaves))
	for i, leaf := range leaves {
		root.Add(leaf)
		before[i] = leaf.WorldBounds().Center()
	}

	New(scene.NewGroup("explorer"), Options{NoLights: true}).Assemble(root, nil)

	for i, leaf := range leaves {
		after := leaf.WorldBounds().Center()
		assert.InDelta(t, 0, after.Distance(before[i]), 1e-4, "leaf %s moved", leaf.Name)
		local := leaf.Mesh().Geometry.Bounds().Center()
		assert.True(t, local.ApproxEqual(math.Vec3{}, 1e-5), "leaf %s pivot not centered", leaf.Name)
	}
}

func TestAssembleReplacesLeavesWithoutUVs(t *testing.T) {
	root := scene.NewGroup("m")
	root.Add(box("GEO_Bare", math.Vec3{X: 6}, false))

	idx := New(scene.NewGroup("explorer"), Options{NoLights: true}).Assemble(root, nil)
	bare, ok := idx.Lookup("GEO_Bare")
	require.True(t, ok)

	geom := bare.Node.Mesh().Geometry
	assert.True(t, geom.HasUVs())
	assert.Greater(t, geom.TriangleCount(), 100)
	assert.InDelta(t, 1, geom.Bounds().Size().MaxComponent()/2, 1e-4, "unit sphere")
	assert.InDelta(t, 6.5, bare.Node.Position.X, 1e-5, "original pivot kept")
}

func TestReassembleSupersedesPrevious(t *testing.T) {
	group := scene.NewGroup("explorer")
	a := New(group, Options{})
	first := droneGraph()
	old := a.Assemble(first, nil)
	require.Equal(t, 5, old.Len())

	second := scene.NewGroup("v2")
	second.Add(box("GEO_Propeller_09", math.Vec3{}, true))
	idx := a.Assemble(second, nil)

	assert.Nil(t, first.Parent(), "previous model detached")
	assert.Same(t, second, a.Model())
	assert.Equal(t, 1, idx.Len())
	_, ok := idx.Propeller("GEO_Propeller_01")
	assert.False(t, ok, "no stale propeller references")
	assert.Len(t, idx.Propellers(), 1)

	// Old index is untouched.
	assert.Equal(t, 5, old.Len())

	meshes := 0
	lights := 0
	for _, c := range group.Children() {
		switch c.Kind() {
		case scene.KindLight:
			lights++
		case scene.KindGroup:
			meshes += len(c.MeshLeaves())
		}
	}
	assert.Equal(t, 3, lights)
	assert.Equal(t, 1, meshes)
}

func TestAssembleNilGraph(t *testing.T) {
	group := scene.NewGroup("explorer")
	a := New(group, Options{})
	a.Assemble(droneGraph(), nil)

	idx := a.Assemble(nil, nil)
	assert.Equal(t, 0, idx.Len())
	assert.Nil(t, a.Model())
	assert.Len(t, group.Children(), 3, "only lights remain")
	assert.Empty(t, idx.DisplayNames())
}

func TestLightRig(t *testing.T) {
	group := scene.NewGroup("explorer")
	New(group, Options{})

	lights := scene.CollectLights(group)
	require.Len(t, lights, 3)
	assert.Equal(t, scene.AmbientLight, lights[0].Type)
	assert.Equal(t, float32(0.5), lights[0].Intensity)
	assert.Equal(t, math.Vec3{X: 10, Y: 10, Z: 10}, lights[1].Position)
	assert.Equal(t, float32(1.5), lights[1].Intensity)
	assert.Equal(t, math.Vec3{X: -10, Y: -10, Z: -10}, lights[2].Position)
}

func TestDisplayNames(t *testing.T) {
	root := scene.NewGroup("m")
	for _, n := range []string{"GEO_Propeller_02", "undefined", "GEO_Arm", "Antenna", "GEO_Arm"} {
		root.Add(box(n, math.Vec3{}, true))
	}
	idx := New(scene.NewGroup("explorer"), Options{NoLights: true}).Assemble(root, nil)

	assert.Equal(t, []Entry{
		{Name: "Antenna", Label: "Antenna"},
		{Name: "GEO_Arm", Label: "Arm"},
		{Name: "GEO_Propeller_02", Label: "Propeller_02"},
	}, idx.DisplayNames())
	assert.Equal(t, 5, idx.Len())
}

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name      string
		frame     bool
		propeller bool
	}{
		{"GEO_Frame", true, false},
		{"FUSELAGE", true, false},
		{"carbon_body_plate", true, false},
		{"GEO_Propeller_03", false, true},
		{"propeller_guard", false, false},
		{"GEO_Motor", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.frame, IsFrameLike(tt.name), tt.name)
		assert.Equal(t, tt.propeller, IsPropeller(tt.name), tt.name)
	}
}

func TestNilIndexIsSafe(t *testing.T) {
	var idx *PartIndex
	assert.Equal(t, 0, idx.Len())
	assert.Nil(t, idx.Parts())
	_, ok := idx.Lookup("x")
	assert.False(t, ok)
	assert.Empty(t, idx.DisplayNames())
}
