// Package quat provides the quaternion operations used by pose interpolation
// and reward scoring, built on mathgl's mgl64.Quat.
//
// Keyframe records and action vectors store quaternions scalar-first
// (w, x, y, z), which is also mgl64's field order.
package quat

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// axisEpsilon is the squared sine below which a rotation is treated as the
// identity and given an arbitrary X axis.
const axisEpsilon = 1e-12

// Identity returns the identity rotation.
func Identity() mgl64.Quat {
	return mgl64.QuatIdent()
}

// FromWXYZ builds a quaternion from scalar-first components.
func FromWXYZ(w, x, y, z float64) mgl64.Quat {
	return mgl64.Quat{W: w, V: mgl64.Vec3{x, y, z}}
}

// WXYZ returns the scalar-first components of q.
func WXYZ(q mgl64.Quat) [4]float64 {
	return [4]float64{q.W, q.V[0], q.V[1], q.V[2]}
}

// Nearest returns b or -b, whichever lies on the same hemisphere as a.
func Nearest(a, b mgl64.Quat) mgl64.Quat {
	if a.Dot(b) < 0 {
		return b.Scale(-1)
	}
	return b
}

// Canonical flips q so that its scalar part is non-negative.
func Canonical(q mgl64.Quat) mgl64.Quat {
	if q.W < 0 {
		return q.Scale(-1)
	}
	return q
}

// Difference returns the shortest-arc rotation taking a to b, expressed in
// the world frame (b = Difference(a, b) * a).
func Difference(a, b mgl64.Quat) mgl64.Quat {
	return Nearest(a, b).Mul(a.Inverse()).Normalize()
}

// AxisAngle decomposes q into a unit axis and an angle in [0, 2π].
// Near-identity rotations report the X axis and an angle of 0 (or 2π for -1).
func AxisAngle(q mgl64.Quat) (mgl64.Vec3, float64) {
	if q.Len() == 0 {
		return mgl64.Vec3{1, 0, 0}, 0
	}
	q = q.Normalize()

	w := mgl64.Clamp(q.W, -1, 1)
	s2 := 1 - w*w
	if s2 < axisEpsilon {
		if w < 0 {
			return mgl64.Vec3{1, 0, 0}, 2 * math.Pi
		}
		return mgl64.Vec3{1, 0, 0}, 0
	}
	return q.V.Mul(1 / math.Sqrt(s2)), 2 * math.Acos(w)
}

// FromAxisAngle builds a rotation of angle radians about axis.
// A zero-length axis yields the identity.
func FromAxisAngle(axis mgl64.Vec3, angle float64) mgl64.Quat {
	if axis.Len() < 1e-12 {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatRotate(angle, axis.Normalize())
}

// Angle returns the rotation angle of the shortest-arc difference between a and b.
func Angle(a, b mgl64.Quat) float64 {
	_, angle := AxisAngle(Difference(a, b))
	return angle
}

// Slerp interpolates along the shortest arc from a to b.
func Slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	return mgl64.QuatSlerp(a.Normalize(), Nearest(a, b).Normalize(), t)
}

// AngularVelocity returns the constant angular velocity (axis * angle / dt)
// that rotates a into b over dt seconds.
func AngularVelocity(a, b mgl64.Quat, dt float64) mgl64.Vec3 {
	axis, angle := AxisAngle(Difference(a, b))
	return axis.Mul(angle / dt)
}

// Heading returns the yaw of q about the vertical (Y) axis, measured from
// the world X axis.
func Heading(q mgl64.Quat) float64 {
	dir := q.Rotate(mgl64.Vec3{1, 0, 0})
	return math.Atan2(-dir[2], dir[0])
}

// HeadingRotation returns the rotation about Y that cancels q's heading.
func HeadingRotation(q mgl64.Quat) mgl64.Quat {
	return FromAxisAngle(mgl64.Vec3{0, 1, 0}, -Heading(q))
}

// SameRotation reports whether a and b describe the same rotation within tol,
// treating q and -q as equal.
func SameRotation(a, b mgl64.Quat, tol float64) bool {
	a, b = a.Normalize(), b.Normalize()
	return math.Abs(math.Abs(a.Dot(b))-1) <= tol
}

// OriginFrame returns the transform into a root's heading-aligned frame: it
// moves the root's horizontal position to the origin and turns its forward
// direction onto +X. The root height is left untouched.
func OriginFrame(rootPos mgl64.Vec3, rootOrn mgl64.Quat) (mgl64.Vec3, mgl64.Quat) {
	heading := HeadingRotation(rootOrn)
	inv := mgl64.Vec3{-rootPos[0], 0, -rootPos[2]}
	return heading.Rotate(inv), heading
}

// Transform applies the rigid transform (pos, orn) to a point.
func Transform(pos mgl64.Vec3, orn mgl64.Quat, p mgl64.Vec3) mgl64.Vec3 {
	return pos.Add(orn.Rotate(p))
}
