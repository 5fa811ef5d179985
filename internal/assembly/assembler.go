// Package assembly turns a loaded mesh graph into the explorer's part
// model: every mesh leaf is recentered, classified, given its own material
// and indexed by name.
package assembly

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/internal/engine/texture"
	"github.com/Faultbox/drone-explorer/internal/loader"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

var frameLike = regexp.MustCompile(`(?i)frame|body|fuselage`)

// IsFrameLike reports whether a leaf name denotes structural chassis.
func IsFrameLike(name string) bool {
	return frameLike.MatchString(name)
}

// IsPropeller reports whether a leaf name denotes a rotor.
func IsPropeller(name string) bool {
	return strings.Contains(name, "Propeller")
}

// Template material parameters.
const (
	DisplacementScale = 0.02
	EnvMapIntensity   = 1.0
)

// FrameTemplate returns the material frame-like parts are cloned from.
func FrameTemplate(textures *loader.TextureSet) *scene.Material {
	m := templateMaterial("frame", textures.Category(loader.CategoryFrame))
	m.Metalness = 0
	m.Roughness = 0
	return m
}

// PartTemplate returns the material every other part is cloned from.
func PartTemplate(textures *loader.TextureSet) *scene.Material {
	m := templateMaterial("part", textures.Category(loader.CategoryParts))
	m.Metalness = 1
	m.Roughness = 1
	return m
}

func templateMaterial(name string, maps map[string]*texture.Image) *scene.Material {
	m := scene.NewMaterial(name)
	m.DisplacementScale = DisplacementScale
	m.EnvMapIntensity = EnvMapIntensity
	for channel, img := range maps {
		m.SetMap(channel, img)
	}
	return m
}

// Fallback sphere used for leaves without texture coordinates.
const (
	fallbackRadius   = 1
	fallbackSegments = 32
)

// Options configures an Assembler.
type Options struct {
	Logger *zap.Logger
	// NoLights skips adding the default light rig to the group.
	NoLights bool
}

// Assembler owns a group node and everything attached under it.
type Assembler struct {
	group *scene.Node
	model *scene.Node
	index *PartIndex
	log   *zap.Logger
}

// New returns an assembler that attaches models under group. Unless
// disabled, the group also receives the light rig: one ambient light and
// two opposing point lights.
func New(group *scene.Node, opts Options) *Assembler {
	a := &Assembler{group: group, index: newPartIndex(), log: opts.Logger}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if !opts.NoLights {
		group.Add(scene.NewLight("ambient", scene.NewAmbient(0.5)))
		group.Add(scene.NewLight("key", scene.NewPoint(math.Vec3{X: 10, Y: 10, Z: 10}, 1.5)))
		group.Add(scene.NewLight("fill", scene.NewPoint(math.Vec3{X: -10, Y: -10, Z: -10}, 0.5)))
	}
	return a
}

// Group returns the owning group node.
func (a *Assembler) Group() *scene.Node { return a.group }

// Model returns the attached model graph, or nil.
func (a *Assembler) Model() *scene.Node { return a.model }

// Index returns the current part index. It is never nil.
func (a *Assembler) Index() *PartIndex { return a.index }

// Assemble replaces the previous model with graph and returns the new index.
// A nil graph clears the group and yields an empty index. The new index
// replaces the old one only when the pass is complete.
func (a *Assembler) Assemble(graph *scene.Node, textures *loader.TextureSet) *PartIndex {
	if a.model != nil {
		a.group.Remove(a.model)
		a.model = nil
	}

	idx := newPartIndex()
	if graph == nil {
		a.index = idx
		a.log.Warn("no model to assemble")
		return idx
	}
	a.group.Add(graph)
	a.model = graph

	frame := FrameTemplate(textures)
	part := PartTemplate(textures)
	taken := make(map[string]bool)
	for _, leaf := range graph.MeshLeaves() {
		if leaf.Name != "" {
			taken[leaf.Name] = true
		}
	}

	assigned := make(map[string]bool)
	for i, leaf := range graph.MeshLeaves() {
		switch {
		case leaf.Name == "":
			leaf.Name = unnamed(i, taken)
		case assigned[leaf.Name]:
			renamed := suffixed(leaf.Name, taken)
			a.log.Warn("duplicate part name, renaming",
				zap.String("part", leaf.Name), zap.String("as", renamed))
			leaf.Name = renamed
		}
		assigned[leaf.Name] = true
		mesh := leaf.Mesh()

		recenter(leaf)
		if mesh.Geometry == nil || !mesh.Geometry.HasUVs() {
			a.log.Debug("leaf has no texture coordinates, using fallback sphere",
				zap.String("part", leaf.Name))
			mesh.Geometry = scene.NewSphere(fallbackRadius, fallbackSegments, fallbackSegments)
		}

		p := &PartNode{
			Name:        leaf.Name,
			Node:        leaf,
			IsPropeller: IsPropeller(leaf.Name),
			IsFrameLike: IsFrameLike(leaf.Name),
		}
		if p.IsFrameLike {
			mesh.Material = frame.Clone()
		} else {
			mesh.Material = part.Clone()
		}
		mesh.Material.Name = leaf.Name
		mesh.CastShadow = true
		mesh.ReceiveShadow = true
		p.Original = mesh.Material.Tint()

		idx.add(p)
	}

	a.index = idx
	a.log.Info("model assembled",
		zap.Int("parts", idx.Len()),
		zap.Int("propellers", len(idx.propOrder)))
	return idx
}

// recenter moves the leaf's geometry so its pivot is its own bounding box
// center, shifting the leaf's transform so nothing moves in world space.
func recenter(leaf *scene.Node) {
	geom := leaf.Mesh().Geometry
	if geom == nil || len(geom.Positions) == 0 {
		return
	}
	c := geom.Center()
	scaled := math.Vec3{X: c.X * leaf.Scale.X, Y: c.Y * leaf.Scale.Y, Z: c.Z * leaf.Scale.Z}
	leaf.Position = leaf.Position.Add(leaf.Rotation.Rotate(scaled))
}

// suffixed returns name_2, name_3, ... whichever is free first.
func suffixed(name string, taken map[string]bool) string {
	n := 2
	next := fmt.Sprintf("%s_%d", name, n)
	for taken[next] {
		n++
		next = fmt.Sprintf("%s_%d", name, n)
	}
	taken[next] = true
	return next
}

func unnamed(i int, taken map[string]bool) string {
	name := fmt.Sprintf("unnamed_part_%d", i)
	for n := 1; taken[name]; n++ {
		name = fmt.Sprintf("unnamed_part_%d_%d", i, n)
	}
	taken[name] = true
	return name
}
