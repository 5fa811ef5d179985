// Package scene provides the scene graph shared by loading, assembly,
// camera, physics and selection code. A node is exactly one of a group, a
// mesh leaf or a light.
package scene

import (
	"fmt"

	"github.com/Faultbox/drone-explorer/pkg/math"
)

// Kind tags the variant a Node holds.
type Kind int

const (
	KindGroup Kind = iota
	KindMesh
	KindLight
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindMesh:
		return "mesh"
	case KindLight:
		return "light"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Transform is a node's position, orientation and scale relative to its
// parent.
type Transform struct {
	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3
}

// IdentityTransform returns a transform that leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{Rotation: math.QuatIdentity(), Scale: math.Vec3{X: 1, Y: 1, Z: 1}}
}

// Matrix returns the transform as a 4x4 matrix.
func (t Transform) Matrix() math.Mat4 {
	return math.Compose(t.Position, t.Rotation, t.Scale)
}

// Mesh is the payload of a mesh leaf.
type Mesh struct {
	Geometry      *Geometry
	Material      *Material
	CastShadow    bool
	ReceiveShadow bool
}

// Node is a scene graph node. Only groups may have children.
type Node struct {
	Name string
	Transform
	Visible bool

	kind     Kind
	mesh     *Mesh
	light    *Light
	parent   *Node
	children []*Node
}

// NewGroup creates an empty group node.
func NewGroup(name string) *Node {
	return &Node{Name: name, Transform: IdentityTransform(), Visible: true, kind: KindGroup}
}

// NewMesh creates a mesh leaf.
func NewMesh(name string, geom *Geometry, mat *Material) *Node {
	return &Node{
		Name:      name,
		Transform: IdentityTransform(),
		Visible:   true,
		kind:      KindMesh,
		mesh:      &Mesh{Geometry: geom, Material: mat},
	}
}

// NewLight creates a light leaf.
func NewLight(name string, l Light) *Node {
	n := &Node{Name: name, Transform: IdentityTransform(), Visible: true, kind: KindLight, light: &l}
	n.Position = l.Position
	return n
}

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// Mesh returns the mesh payload, or nil for non-mesh nodes.
func (n *Node) Mesh() *Mesh { return n.mesh }

// Light returns the light payload, or nil for non-light nodes.
func (n *Node) Light() *Light { return n.light }

// IsMesh reports whether n is a mesh leaf.
func (n *Node) IsMesh() bool { return n.kind == KindMesh }

// Parent returns the parent node, or nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child list. Callers must not modify it.
func (n *Node) Children() []*Node { return n.children }

// Add attaches child to n, detaching it from any previous parent. Adding to
// a non-group node panics since it is a programming error.
func (n *Node) Add(child *Node) {
	if n.kind != KindGroup {
		panic(fmt.Sprintf("scene: cannot add child to %s node %q", n.kind, n.Name))
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child from n. It reports whether child was found.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Clear detaches every child.
func (n *Node) Clear() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

// Traverse visits n and its descendants depth-first, parents before children.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Traverse(fn)
	}
}

// MeshLeaves returns every mesh leaf under n in traversal order.
func (n *Node) MeshLeaves() []*Node {
	var out []*Node
	n.Traverse(func(c *Node) {
		if c.kind == KindMesh {
			out = append(out, c)
		}
	})
	return out
}

// WorldMatrix returns the transform from n's local space to world space.
func (n *Node) WorldMatrix() math.Mat4 {
	m := n.Matrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Matrix().Mul(m)
	}
	return m
}

// WorldBounds returns the world-space box around every mesh under n.
func (n *Node) WorldBounds() math.Box3 {
	box := math.EmptyBox()
	n.Traverse(func(c *Node) {
		if c.kind == KindMesh && c.mesh.Geometry != nil {
			box = box.Union(c.mesh.Geometry.Bounds().Transform(c.WorldMatrix()))
		}
	})
	return box
}

// Find returns the first node named name under n, or nil.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Traverse(func(*Node) { count++ })
	return count
}
