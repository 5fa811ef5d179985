// Package picking provides ray casting against boxes, triangles and scene
// geometry.
package picking

import (
	gomath "math"

	"github.com/chewxy/math32"

	"github.com/Faultbox/drone-explorer/internal/engine/scene"
	"github.com/Faultbox/drone-explorer/pkg/math"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3 // Normalized direction
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// ScreenToRay converts screen coordinates to a world-space ray.
// screenX, screenY are pixel coordinates, viewportW/H are viewport dimensions.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj math.Mat4) Ray {
	ndcX := 2*screenX/viewportW - 1
	ndcY := 1 - 2*screenY/viewportH // Flip Y

	near := unproject(invViewProj, math.Vec4{ndcX, ndcY, -1, 1})
	far := unproject(invViewProj, math.Vec4{ndcX, ndcY, 1, 1})

	return Ray{Origin: near, Direction: far.Sub(near).Normalize()}
}

func unproject(inv math.Mat4, clip math.Vec4) math.Vec3 {
	p := inv.MulVec4(clip)
	if p[3] != 0 {
		p[0] /= p[3]
		p[1] /= p[3]
		p[2] /= p[3]
	}
	return math.Vec3{X: p[0], Y: p[1], Z: p[2]}
}

// Transform returns the ray mapped through m. The direction is renormalized,
// so distances along the result are in the target space.
func (r Ray) Transform(m math.Mat4) Ray {
	return Ray{
		Origin:    m.TransformPoint(r.Origin),
		Direction: m.TransformDirection(r.Direction).Normalize(),
	}
}

// IntersectBox tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectBox(box math.Box3) (t float32, hit bool) {
	if box.IsEmpty() {
		return 0, false
	}
	tmin := float32(-gomath.MaxFloat32)
	tmax := float32(gomath.MaxFloat32)

	origin := r.Origin.Array()
	dir := r.Direction.Array()
	lo := box.Min.Array()
	hi := box.Max.Array()

	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			if origin[axis] < lo[axis] || origin[axis] > hi[axis] {
				return 0, false
			}
			continue
		}
		t1 := (lo[axis] - origin[axis]) / dir[axis]
		t2 := (hi[axis] - origin[axis]) / dir[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math32.Max(tmin, t1)
		tmax = math32.Min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// IntersectTriangle returns the distance to the triangle abc using the
// Möller-Trumbore test. Both faces are hittable.
func (r Ray) IntersectTriangle(a, b, c math.Vec3) (t float32, hit bool) {
	const eps = 1e-7

	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < eps {
		return 0, false // Parallel to the triangle plane
	}
	inv := 1 / det

	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t = e2.Dot(q) * inv
	if t < eps {
		return 0, false
	}
	return t, true
}

// IntersectGeometry casts a world-space ray against geometry placed by
// world and returns the nearest world-space hit distance.
func IntersectGeometry(r Ray, geom *scene.Geometry, world math.Mat4) (float32, bool) {
	if geom == nil || geom.TriangleCount() == 0 {
		return 0, false
	}
	local := r.Transform(world.Inverse())
	if _, ok := local.IntersectBox(geom.Bounds()); !ok {
		return 0, false
	}

	best := float32(gomath.MaxFloat32)
	found := false
	for i := 0; i < geom.TriangleCount(); i++ {
		a, b, c := geom.Triangle(i)
		t, ok := local.IntersectTriangle(a, b, c)
		if !ok {
			continue
		}
		// Measure in world space so hits on differently scaled nodes compare.
		d := world.TransformPoint(local.At(t)).Distance(r.Origin)
		if d < best {
			best = d
			found = true
		}
	}
	return best, found
}
