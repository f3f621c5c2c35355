package pose

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/quat"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// lerp performs linear interpolation between two values.
func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// Interpolate blends keyframe a towards keyframe b by fraction in [0, 1].
//
// Positions and rotations are blended at fraction (slerp along the shortest
// arc for quaternions). Velocities are the constant segment rates implied by
// the full a-to-b displacement over a.Duration, so they do not depend on
// fraction. When a and b are the same frame the velocities are zero.
func Interpolate(a, b Frame, fraction float64) (Pose, Velocity, error) {
	if len(a.Joints) != len(b.Joints) {
		return Pose{}, Velocity{}, &DimensionError{What: "keyframe joints", Want: len(a.Joints), Got: len(b.Joints)}
	}
	dt := a.Duration

	p := Pose{
		RootPos: a.RootPos.Add(b.RootPos.Sub(a.RootPos).Mul(fraction)),
		RootRot: quat.Slerp(a.RootRot, b.RootRot, fraction),
		Joints:  make([]JointValue, len(a.Joints)),
	}
	v := Velocity{
		RootLinear:  b.RootPos.Sub(a.RootPos).Mul(1 / dt),
		RootAngular: quat.AngularVelocity(a.RootRot, b.RootRot, dt),
		Joints:      make([]JointRate, len(a.Joints)),
	}

	for i := range a.Joints {
		ja, jb := a.Joints[i], b.Joints[i]
		if ja.DoF() != jb.DoF() {
			return Pose{}, Velocity{}, &DimensionError{What: "keyframe joint " + ja.DoF().String(), Want: ja.DoF().PositionSize(), Got: jb.DoF().PositionSize()}
		}

		switch ja.DoF() {
		case skeleton.Ball:
			p.Joints[i] = BallValue(quat.Slerp(ja.Quat(), jb.Quat(), fraction))
			v.Joints[i] = BallRate(quat.AngularVelocity(ja.Quat(), jb.Quat(), dt))
		default:
			p.Joints[i] = HingeValue(lerp(ja.Angle(), jb.Angle(), fraction))
			v.Joints[i] = HingeRate((jb.Angle() - ja.Angle()) / dt)
		}
	}

	return p, v, nil
}

// vec3 is a small helper for reading three consecutive record values.
func vec3(r []float64, at int) mgl64.Vec3 {
	return mgl64.Vec3{r[at], r[at+1], r[at+2]}
}
