package pose

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/quat"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// Codec converts between structured poses and the flat keyframe and action
// layouts defined by a joint set.
type Codec struct {
	joints *skeleton.JointSet
}

// NewCodec returns a codec for joints.
func NewCodec(joints *skeleton.JointSet) *Codec {
	return &Codec{joints: joints}
}

// Joints returns the joint set the codec is bound to.
func (c *Codec) Joints() *skeleton.JointSet {
	return c.joints
}

// ActionSize returns the expected action vector length.
func (c *Codec) ActionSize() int {
	return c.joints.ActionSize()
}

// DecodeKeyframe extracts the frame duration, root transform and joint
// rotations from a keyframe record. Values past the joint set's layout are
// ignored.
func (c *Codec) DecodeKeyframe(record []float64) (Frame, error) {
	if len(record) < c.joints.RecordSize() {
		return Frame{}, &DimensionError{What: "keyframe record", Want: c.joints.RecordSize(), Got: len(record)}
	}

	f := Frame{
		Duration: record[0],
		RootPos:  vec3(record, 1),
		RootRot:  quat.FromWXYZ(record[4], record[5], record[6], record[7]),
		Joints:   make([]JointValue, c.joints.Len()),
	}

	at := skeleton.RootRecordSize
	for i := 0; i < c.joints.Len(); i++ {
		dof := c.joints.At(i).DoF
		n := dof.PositionSize()
		v, err := ValueFromComponents(dof, record[at:at+n])
		if err != nil {
			return Frame{}, err
		}
		f.Joints[i] = v
		at += n
	}
	return f, nil
}

// ToAction flattens the joint rotations of p into an action vector. Ball
// joints are written as (angle, axisX, axisY, axisZ). The root is not part
// of an action. A pose whose joints do not match the joint set fails with
// a DimensionError.
func (c *Codec) ToAction(p Pose) ([]float64, error) {
	if len(p.Joints) != c.joints.Len() {
		return nil, &DimensionError{What: "pose joints", Want: c.joints.Len(), Got: len(p.Joints)}
	}

	action := make([]float64, 0, c.joints.ActionSize())
	for i := 0; i < c.joints.Len(); i++ {
		spec := c.joints.At(i)
		if dof := p.Joints[i].DoF(); dof != spec.DoF {
			return nil, &DimensionError{What: "joint " + spec.Name, Want: spec.DoF.PositionSize(), Got: dof.PositionSize()}
		}
		if spec.DoF == skeleton.Ball {
			axis, angle := quat.AxisAngle(p.Joints[i].Quat())
			action = append(action, angle, axis[0], axis[1], axis[2])
			continue
		}
		action = append(action, p.Joints[i].Angle())
	}
	return action, nil
}

// FromAction rebuilds joint rotations from an action vector. The returned
// pose has a zero root position and identity root rotation. A zero-length
// Ball axis decodes to the identity rotation.
func (c *Codec) FromAction(action []float64) (Pose, error) {
	if len(action) != c.joints.ActionSize() {
		return Pose{}, &DimensionError{What: "action", Want: c.joints.ActionSize(), Got: len(action)}
	}

	p := Pose{
		RootRot: mgl64.QuatIdent(),
		Joints:  make([]JointValue, c.joints.Len()),
	}

	at := 0
	for i := 0; i < c.joints.Len(); i++ {
		if c.joints.At(i).DoF == skeleton.Ball {
			axis := vec3(action, at+1)
			p.Joints[i] = BallValue(quat.FromAxisAngle(axis, action[at]))
			at += 4
			continue
		}
		p.Joints[i] = HingeValue(action[at])
		at++
	}
	return p, nil
}
