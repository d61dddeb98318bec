// Package quat implements the unit-quaternion math kernel shared by the
// pose pipeline: normalization, composition, rotation-vector conversion,
// vector rotation, and Euler extraction. All rotations use the
// scalar-last convention (x, y, z, w).
//
// No third-party quaternion library appears anywhere in the retrieval
// pack used to build this module (the closest candidate, golang/geo, is
// a spherical-geometry library with no rotation type), so this package
// is built directly on the standard math package.
package quat

import "math"

// Quat is a unit quaternion in scalar-last (x, y, z, w) form.
type Quat struct {
	X, Y, Z, W float64
}

// Identity is the no-rotation quaternion.
var Identity = Quat{0, 0, 0, 1}

// Vec3 is a plain 3-vector.
type Vec3 struct {
	X, Y, Z float64
}

// Euler holds XYZ-intrinsic Euler angles in radians.
type Euler struct {
	Roll, Pitch, Yaw float64
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Normalize divides q by its Euclidean norm. A zero or negative norm
// (defensive: norm can't truly be negative) returns Identity.
func Normalize(q Quat) Quat {
	n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if n <= 0 {
		return Identity
	}
	return Quat{q.X / n, q.Y / n, q.Z / n, q.W / n}
}

// Conjugate returns (-x, -y, -z, w), the inverse for unit quaternions.
func Conjugate(q Quat) Quat {
	return Quat{-q.X, -q.Y, -q.Z, q.W}
}

// Multiply computes the Hamilton product a*b. Non-commutative.
func Multiply(a, b Quat) Quat {
	return Quat{
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
	}
}

// ToRotVec converts q to a rotation vector (axis * angle), always choosing
// the shorter-rotation hemisphere (w >= 0). Returns the zero vector for
// near-identity rotations.
func ToRotVec(q Quat) Vec3 {
	if q.W < 0 {
		q = Quat{-q.X, -q.Y, -q.Z, -q.W}
	}
	w := clamp(q.W, -1, 1)
	angle := 2 * math.Acos(w)
	s := math.Sin(angle / 2)
	if math.Abs(s) < 1e-8 || angle < 1e-8 {
		return Vec3{}
	}
	return Vec3{q.X / s * angle, q.Y / s * angle, q.Z / s * angle}
}

// FromRotVec builds a unit quaternion from a rotation vector.
func FromRotVec(r Vec3) Quat {
	angle := math.Sqrt(r.X*r.X + r.Y*r.Y + r.Z*r.Z)
	if angle < 1e-12 {
		return Identity
	}
	half := angle / 2
	s := math.Sin(half) / angle
	return Quat{r.X * s, r.Y * s, r.Z * s, math.Cos(half)}
}

// Delta computes the rotation from q_from to q_to, expressed either in the
// base frame ("base": q_to * q_from^-1) or the tool frame
// ("tool": q_from^-1 * q_to).
func Delta(from, to Quat, frame string) Quat {
	if frame == "tool" {
		return Multiply(Conjugate(from), to)
	}
	return Multiply(to, Conjugate(from))
}

// RotateVector applies q to v (the standard q v q* sandwich), implemented
// with one cross-product pair instead of two full quaternion multiplies.
func RotateVector(v Vec3, q Quat) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	uDotV := u.X*v.X + u.Y*v.Y + u.Z*v.Z
	uDotU := u.X*u.X + u.Y*u.Y + u.Z*u.Z
	cross := Vec3{
		X: u.Y*v.Z - u.Z*v.Y,
		Y: u.Z*v.X - u.X*v.Z,
		Z: u.X*v.Y - u.Y*v.X,
	}
	s := q.W
	return Vec3{
		X: 2*uDotV*u.X + (s*s-uDotU)*v.X + 2*s*cross.X,
		Y: 2*uDotV*u.Y + (s*s-uDotU)*v.Y + 2*s*cross.Y,
		Z: 2*uDotV*u.Z + (s*s-uDotU)*v.Z + 2*s*cross.Z,
	}
}

// ToEulerXYZ extracts XYZ-intrinsic Euler angles (radians) from q.
func ToEulerXYZ(q Quat) Euler {
	roll := math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))
	pitch := math.Asin(clamp(2*(q.W*q.Y-q.Z*q.X), -1, 1))
	yaw := math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return Euler{Roll: roll, Pitch: pitch, Yaw: yaw}
}

// FromEulerXYZIntrinsic builds the unit quaternion for the given Euler
// angles (radians) as Rz(yaw) * Ry(pitch) * Rx(roll), the composition whose
// angles ToEulerXYZ extracts, so the two functions invert each other.
func FromEulerXYZIntrinsic(e Euler) Quat {
	cx, sx := math.Cos(e.Roll/2), math.Sin(e.Roll/2)
	cy, sy := math.Cos(e.Pitch/2), math.Sin(e.Pitch/2)
	cz, sz := math.Cos(e.Yaw/2), math.Sin(e.Yaw/2)

	qx := Quat{X: sx, Y: 0, Z: 0, W: cx}
	qy := Quat{X: 0, Y: sy, Z: 0, W: cy}
	qz := Quat{X: 0, Y: 0, Z: sz, W: cz}
	return Normalize(Multiply(Multiply(qz, qy), qx))
}

// AddScaled returns a + b*scale, a plain vector helper used by the
// resampler's linear extrapolation.
func (a Vec3) AddScaled(b Vec3, scale float64) Vec3 {
	return Vec3{a.X + b.X*scale, a.Y + b.Y*scale, a.Z + b.Z*scale}
}

// Sub returns a - b.
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

// Scale returns a * s.
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a.X * s, a.Y * s, a.Z * s}
}

// Norm returns the Euclidean length of a.
func (a Vec3) Norm() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}
