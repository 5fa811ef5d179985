package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	n := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()

	length := math.Sqrt(float64(n.Dot(n)))
	if math.Abs(length-1.0) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatRotate(t *testing.T) {
	// 90 degrees around Y takes +X to -Z.
	q := QuatFromAxisAngle(UnitY, float32(math.Pi/2))
	got := q.Rotate(UnitX)
	if !got.ApproxEqual(Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("Rotate(+X) = %v, want (0, 0, -1)", got)
	}
}

func TestQuatRotateMatchesMat4(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{1, 1, 0}.Normalize(), 0.7)
	v := Vec3{0.3, -2, 5}

	byQuat := q.Rotate(v)
	byMat := q.ToMat4().TransformDirection(v)
	if !byQuat.ApproxEqual(byMat, 1e-4) {
		t.Errorf("quat rotate %v != matrix rotate %v", byQuat, byMat)
	}
}

func TestQuatConjugateUndoes(t *testing.T) {
	q := QuatFromAxisAngle(UnitZ, 1.2)
	v := Vec3{1, 2, 3}
	back := q.Conjugate().Rotate(q.Rotate(v))
	if !back.ApproxEqual(v, 1e-5) {
		t.Errorf("conjugate should undo rotation, got %v", back)
	}
}

func TestQuatIntegrate(t *testing.T) {
	// Spinning at π/2 rad/s about Y for one second is a quarter turn.
	q := QuatIdentity().Integrate(Vec3{0, float32(math.Pi / 2), 0}, 1)
	want := QuatFromAxisAngle(UnitY, float32(math.Pi/2))
	if math.Abs(float64(q.Dot(want))) < 0.9999 {
		t.Errorf("Integrate = %v, want %v", q, want)
	}

	if same := want.Integrate(Vec3{}, 1); same != want {
		t.Errorf("zero angular velocity should not change orientation")
	}
}

func TestQuatSlerp(t *testing.T) {
	q1 := QuatIdentity()
	q2 := QuatFromAxisAngle(UnitY, float32(math.Pi/2))

	if r := q1.Slerp(q2, 0); math.Abs(float64(r.W-q1.W)) > 0.001 {
		t.Errorf("Slerp at t=0 should equal q1")
	}
	if r := q1.Slerp(q2, 1); math.Abs(float64(r.W-q2.W)) > 0.001 {
		t.Errorf("Slerp at t=1 should equal q2")
	}

	// Halfway through a 90 degree turn is 45 degrees.
	half := q1.Slerp(q2, 0.5)
	expectedW := float32(math.Cos(math.Pi / 8))
	if math.Abs(float64(half.W-expectedW)) > 0.01 {
		t.Errorf("Slerp at t=0.5: expected W ~%v, got %v", expectedW, half.W)
	}
}

func TestQuatAngle(t *testing.T) {
	q := QuatFromAxisAngle(UnitX, 1.0)
	if got := q.Angle(); math.Abs(float64(got-1.0)) > 1e-4 {
		t.Errorf("Angle = %v, want 1.0", got)
	}
}
