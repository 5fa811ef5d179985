package scene

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/drone-explorer/pkg/math"
)

// Geometry is a non-indexed triangle list. Every three consecutive
// positions form one triangle.
type Geometry struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	UVs       [][2]float32

	// Handle is owned by the renderer. Version changes whenever the vertex
	// data changes so the renderer knows to re-upload.
	Handle  uint32
	Version int
}

// HasUVs reports whether every vertex carries a texture coordinate.
func (g *Geometry) HasUVs() bool {
	return len(g.UVs) > 0 && len(g.UVs) == len(g.Positions)
}

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int {
	return len(g.Positions) / 3
}

// Triangle returns the corners of triangle i.
func (g *Geometry) Triangle(i int) (a, b, c math.Vec3) {
	return g.Positions[3*i], g.Positions[3*i+1], g.Positions[3*i+2]
}

// Bounds returns the local-space bounding box.
func (g *Geometry) Bounds() math.Box3 {
	box := math.EmptyBox()
	for _, p := range g.Positions {
		box = box.ExpandByPoint(p)
	}
	return box
}

// Translate moves every vertex by offset.
func (g *Geometry) Translate(offset math.Vec3) {
	for i := range g.Positions {
		g.Positions[i] = g.Positions[i].Add(offset)
	}
	g.Version++
}

// Center moves the geometry so its bounding box is centered on the origin
// and returns the previous center.
func (g *Geometry) Center() math.Vec3 {
	c := g.Bounds().Center()
	if c != (math.Vec3{}) {
		g.Translate(c.Negate())
	}
	return c
}

// ComputeFlatNormals fills Normals with per-face normals.
func (g *Geometry) ComputeFlatNormals() {
	g.Normals = make([]math.Vec3, len(g.Positions))
	for i := 0; i < g.TriangleCount(); i++ {
		a, b, c := g.Triangle(i)
		n := b.Sub(a).Cross(c.Sub(a)).Normalize()
		g.Normals[3*i], g.Normals[3*i+1], g.Normals[3*i+2] = n, n, n
	}
	g.Version++
}

// NewSphere builds a UV sphere. Used as a stand-in for parts whose geometry
// has no texture coordinates.
func NewSphere(radius float32, widthSegments, heightSegments int) *Geometry {
	if widthSegments < 3 {
		widthSegments = 3
	}
	if heightSegments < 2 {
		heightSegments = 2
	}

	cols := widthSegments + 1
	grid := make([]math.Vec3, 0, cols*(heightSegments+1))
	uvs := make([][2]float32, 0, cap(grid))
	for y := 0; y <= heightSegments; y++ {
		v := float32(y) / float32(heightSegments)
		theta := v * math32.Pi
		for x := 0; x <= widthSegments; x++ {
			u := float32(x) / float32(widthSegments)
			phi := u * 2 * math32.Pi
			grid = append(grid, math.Vec3{
				X: -radius * math32.Cos(phi) * math32.Sin(theta),
				Y: radius * math32.Cos(theta),
				Z: radius * math32.Sin(phi) * math32.Sin(theta),
			})
			uvs = append(uvs, [2]float32{u, 1 - v})
		}
	}

	g := &Geometry{}
	put := func(i int) {
		g.Positions = append(g.Positions, grid[i])
		g.Normals = append(g.Normals, grid[i].Normalize())
		g.UVs = append(g.UVs, uvs[i])
	}
	for y := 0; y < heightSegments; y++ {
		for x := 0; x < widthSegments; x++ {
			a := y*cols + x + 1
			b := y*cols + x
			c := (y+1)*cols + x
			d := (y+1)*cols + x + 1
			// The pole rows collapse to a single triangle.
			if y != 0 {
				put(a)
				put(b)
				put(d)
			}
			if y != heightSegments-1 {
				put(b)
				put(c)
				put(d)
			}
		}
	}
	return g
}
