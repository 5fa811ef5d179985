package math

import "github.com/chewxy/math32"

// Box3 is an axis-aligned bounding box.
type Box3 struct {
	Min Vec3
	Max Vec3
}

// EmptyBox returns a box that contains nothing; expanding it by any point
// yields a box around that point.
func EmptyBox() Box3 {
	inf := math32.Inf(1)
	return Box3{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// IsEmpty reports whether max < min on any axis.
func (b Box3) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// ExpandByPoint grows the box to include p.
func (b Box3) ExpandByPoint(p Vec3) Box3 {
	return Box3{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the smallest box containing both boxes.
func (b Box3) Union(other Box3) Box3 {
	if other.IsEmpty() {
		return b
	}
	return b.ExpandByPoint(other.Min).ExpandByPoint(other.Max)
}

// Center returns the box midpoint. An empty box has a zero center.
func (b Box3) Center() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the box extent along each axis.
func (b Box3) Size() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Translate returns the box moved by offset.
func (b Box3) Translate(offset Vec3) Box3 {
	return Box3{Min: b.Min.Add(offset), Max: b.Max.Add(offset)}
}

// Transform returns the axis-aligned box enclosing all eight corners of b
// after applying m.
func (b Box3) Transform(m Mat4) Box3 {
	if b.IsEmpty() {
		return b
	}
	out := EmptyBox()
	for i := 0; i < 8; i++ {
		corner := Vec3{b.Min.X, b.Min.Y, b.Min.Z}
		if i&1 != 0 {
			corner.X = b.Max.X
		}
		if i&2 != 0 {
			corner.Y = b.Max.Y
		}
		if i&4 != 0 {
			corner.Z = b.Max.Z
		}
		out = out.ExpandByPoint(m.TransformPoint(corner))
	}
	return out
}
