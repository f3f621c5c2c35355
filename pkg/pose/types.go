// Package pose defines character poses and velocities, interpolates them
// between keyframes, and encodes them to and from flat vectors.
//
// Joint values are tagged by their DoF class once, at decode time, so the
// rest of the pipeline never has to guess a joint's arity from a slice length.
package pose

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/quat"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// JointValue is a joint rotation: a scalar angle for Hinge joints or a unit
// quaternion for Ball joints.
type JointValue struct {
	dof   skeleton.DoF
	angle float64
	rot   mgl64.Quat
}

// HingeValue returns a Hinge joint rotation.
func HingeValue(angle float64) JointValue {
	return JointValue{dof: skeleton.Hinge, angle: angle}
}

// BallValue returns a Ball joint rotation.
func BallValue(q mgl64.Quat) JointValue {
	return JointValue{dof: skeleton.Ball, rot: q}
}

// DoF returns the value's DoF class.
func (v JointValue) DoF() skeleton.DoF {
	return v.dof
}

// Angle returns the Hinge angle. It is zero for Ball values.
func (v JointValue) Angle() float64 {
	return v.angle
}

// Quat returns the Ball rotation. It is the identity for Hinge values.
func (v JointValue) Quat() mgl64.Quat {
	if v.dof != skeleton.Ball {
		return mgl64.QuatIdent()
	}
	return v.rot
}

// Components returns the value as a flat slice: [angle] for Hinge or
// [w, x, y, z] for Ball.
func (v JointValue) Components() []float64 {
	if v.dof == skeleton.Ball {
		c := quat.WXYZ(v.rot)
		return c[:]
	}
	return []float64{v.angle}
}

// ValueFromComponents builds a JointValue from a flat slice laid out as
// Components returns it.
func ValueFromComponents(dof skeleton.DoF, c []float64) (JointValue, error) {
	if len(c) != dof.PositionSize() {
		return JointValue{}, &DimensionError{What: dof.String() + " joint position", Want: dof.PositionSize(), Got: len(c)}
	}
	if dof == skeleton.Ball {
		return BallValue(quat.FromWXYZ(c[0], c[1], c[2], c[3])), nil
	}
	return HingeValue(c[0]), nil
}

// String implements fmt.Stringer.
func (v JointValue) String() string {
	if v.dof == skeleton.Ball {
		return fmt.Sprintf("ball%v", quat.WXYZ(v.rot))
	}
	return fmt.Sprintf("hinge(%g)", v.angle)
}

// JointRate is a joint velocity: a scalar rate for Hinge joints or an
// axis-angle rate vector for Ball joints.
type JointRate struct {
	dof  skeleton.DoF
	rate float64
	vec  mgl64.Vec3
}

// HingeRate returns a Hinge joint velocity.
func HingeRate(rate float64) JointRate {
	return JointRate{dof: skeleton.Hinge, rate: rate}
}

// BallRate returns a Ball joint velocity.
func BallRate(v mgl64.Vec3) JointRate {
	return JointRate{dof: skeleton.Ball, vec: v}
}

// ZeroRate returns a zero velocity for the given DoF class.
func ZeroRate(dof skeleton.DoF) JointRate {
	if dof == skeleton.Ball {
		return BallRate(mgl64.Vec3{})
	}
	return HingeRate(0)
}

// DoF returns the rate's DoF class.
func (r JointRate) DoF() skeleton.DoF {
	return r.dof
}

// Scalar returns the Hinge rate. It is zero for Ball rates.
func (r JointRate) Scalar() float64 {
	return r.rate
}

// Vec returns the Ball rate vector. It is zero for Hinge rates.
func (r JointRate) Vec() mgl64.Vec3 {
	return r.vec
}

// Components returns the rate as [rate] or [x, y, z].
func (r JointRate) Components() []float64 {
	if r.dof == skeleton.Ball {
		return []float64{r.vec[0], r.vec[1], r.vec[2]}
	}
	return []float64{r.rate}
}

// RateFromComponents builds a JointRate from a flat slice.
func RateFromComponents(dof skeleton.DoF, c []float64) (JointRate, error) {
	if len(c) != dof.RateSize() {
		return JointRate{}, &DimensionError{What: dof.String() + " joint velocity", Want: dof.RateSize(), Got: len(c)}
	}
	if dof == skeleton.Ball {
		return BallRate(mgl64.Vec3{c[0], c[1], c[2]}), nil
	}
	return HingeRate(c[0]), nil
}

// Pose is the root transform plus one rotation per joint slot.
type Pose struct {
	RootPos mgl64.Vec3
	RootRot mgl64.Quat
	Joints  []JointValue
}

// Clone returns a deep copy of p.
func (p Pose) Clone() Pose {
	p.Joints = append([]JointValue(nil), p.Joints...)
	return p
}

// Velocity pairs with a Pose: root linear and angular velocity plus one rate
// per joint slot.
type Velocity struct {
	RootLinear  mgl64.Vec3
	RootAngular mgl64.Vec3
	Joints      []JointRate
}

// Clone returns a deep copy of v.
func (v Velocity) Clone() Velocity {
	v.Joints = append([]JointRate(nil), v.Joints...)
	return v
}

// ZeroVelocity returns a zero velocity laid out for joints.
func ZeroVelocity(joints *skeleton.JointSet) Velocity {
	v := Velocity{Joints: make([]JointRate, joints.Len())}
	for i := range v.Joints {
		v.Joints[i] = ZeroRate(joints.At(i).DoF)
	}
	return v
}

// Frame is a decoded keyframe record.
type Frame struct {
	// Duration is the record's dt field.
	Duration float64

	RootPos mgl64.Vec3
	RootRot mgl64.Quat
	Joints  []JointValue
}

// Pose returns the frame's pose, sharing no memory with the frame.
func (f Frame) Pose() Pose {
	return Pose{RootPos: f.RootPos, RootRot: f.RootRot, Joints: append([]JointValue(nil), f.Joints...)}
}
