package physics

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/quat"
)

var (
	// ErrLinkIndex is returned for a link or joint index outside the body.
	ErrLinkIndex = errors.New("physics: link index out of range")

	// ErrUnknownState is returned when restoring a snapshot that was never saved.
	ErrUnknownState = errors.New("physics: unknown state")
)

// KinematicBody is an in-memory Body with no dynamics. Base and joint state
// change only when written, and Step snaps every joint to its motor target.
//
// It serves as the reference ghost, as a test double and as the playback
// simulator. It is not safe for concurrent use.
type KinematicBody struct {
	id        int
	numJoints int

	basePos mgl64.Vec3
	baseOrn mgl64.Quat
	linVel  mgl64.Vec3
	angVel  mgl64.Vec3

	joints   map[int]JointState
	targets  map[int]MotorTarget
	offsets  map[int]mgl64.Vec3
	contacts []Contact

	snapshots []kinematicSnapshot
}

type kinematicSnapshot struct {
	basePos, linVel, angVel mgl64.Vec3
	baseOrn                 mgl64.Quat
	joints                  map[int]JointState
}

// NewKinematicBody returns a body with numJoints links, identity base
// orientation and every link at the base origin.
func NewKinematicBody(id, numJoints int) *KinematicBody {
	return &KinematicBody{
		id:        id,
		numJoints: numJoints,
		baseOrn:   mgl64.QuatIdent(),
		joints:    make(map[int]JointState),
		targets:   make(map[int]MotorTarget),
		offsets:   make(map[int]mgl64.Vec3),
	}
}

// ID implements ContactReporter.
func (b *KinematicBody) ID() int {
	return b.id
}

// NumJoints implements JointController.
func (b *KinematicBody) NumJoints() int {
	return b.numJoints
}

// BasePose implements BaseController.
func (b *KinematicBody) BasePose() (mgl64.Vec3, mgl64.Quat, error) {
	return b.basePos, b.baseOrn, nil
}

// ResetBasePose implements BaseController.
func (b *KinematicBody) ResetBasePose(pos mgl64.Vec3, orn mgl64.Quat) error {
	b.basePos = pos
	b.baseOrn = orn.Normalize()
	return nil
}

// BaseVelocity implements BaseController.
func (b *KinematicBody) BaseVelocity() (mgl64.Vec3, mgl64.Vec3, error) {
	return b.linVel, b.angVel, nil
}

// ResetBaseVelocity implements BaseController.
func (b *KinematicBody) ResetBaseVelocity(linear, angular mgl64.Vec3) error {
	b.linVel = linear
	b.angVel = angular
	return nil
}

func (b *KinematicBody) checkIndex(index int) error {
	if index < 0 || index >= b.numJoints {
		return fmt.Errorf("%w: %d (body has %d)", ErrLinkIndex, index, b.numJoints)
	}
	return nil
}

// JointState implements JointController. A joint that was never written
// reports empty position and velocity, like a fixed joint.
func (b *KinematicBody) JointState(index int) (JointState, error) {
	if err := b.checkIndex(index); err != nil {
		return JointState{}, err
	}
	js := b.joints[index]
	return JointState{
		Position: append([]float64(nil), js.Position...),
		Velocity: append([]float64(nil), js.Velocity...),
	}, nil
}

// ResetJointState implements JointController. A nil velocity zeroes the
// joint's velocity.
func (b *KinematicBody) ResetJointState(index int, position, velocity []float64) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	js := JointState{Position: append([]float64(nil), position...)}
	if velocity != nil {
		js.Velocity = append([]float64(nil), velocity...)
	} else {
		js.Velocity = make([]float64, rateSize(len(position)))
	}
	b.joints[index] = js
	return nil
}

// SetJointMotorTarget implements MotorController.
func (b *KinematicBody) SetJointMotorTarget(index int, target MotorTarget) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	target.Position = append([]float64(nil), target.Position...)
	b.targets[index] = target
	return nil
}

// MotorTarget returns the last motor command for a joint.
func (b *KinematicBody) MotorTarget(index int) (MotorTarget, bool) {
	t, ok := b.targets[index]
	return t, ok
}

// SetLinkOffset places a link at a fixed offset from the base, in the base frame.
func (b *KinematicBody) SetLinkOffset(index int, offset mgl64.Vec3) error {
	if err := b.checkIndex(index); err != nil {
		return err
	}
	b.offsets[index] = offset
	return nil
}

// LinkState implements LinkReader. Links move rigidly with the base; index -1
// is the base itself.
func (b *KinematicBody) LinkState(index int) (LinkState, error) {
	if index != -1 {
		if err := b.checkIndex(index); err != nil {
			return LinkState{}, err
		}
	}
	offset := b.offsets[index]
	return LinkState{
		Position:        b.basePos.Add(b.baseOrn.Rotate(offset)),
		Orientation:     b.baseOrn,
		LinearVelocity:  b.linVel.Add(b.angVel.Cross(b.baseOrn.Rotate(offset))),
		AngularVelocity: b.angVel,
	}, nil
}

// SetContacts replaces the contacts reported by ContactPoints.
func (b *KinematicBody) SetContacts(contacts []Contact) {
	b.contacts = append([]Contact(nil), contacts...)
}

// ContactPoints implements ContactReporter.
func (b *KinematicBody) ContactPoints() ([]Contact, error) {
	return append([]Contact(nil), b.contacts...), nil
}

// SaveState implements StateSaver.
func (b *KinematicBody) SaveState() (StateID, error) {
	b.snapshots = append(b.snapshots, kinematicSnapshot{
		basePos: b.basePos,
		baseOrn: b.baseOrn,
		linVel:  b.linVel,
		angVel:  b.angVel,
		joints:  cloneJoints(b.joints),
	})
	return StateID(len(b.snapshots) - 1), nil
}

// RestoreState implements StateSaver. Motor targets and contacts are cleared.
func (b *KinematicBody) RestoreState(id StateID) error {
	if id < 0 || int(id) >= len(b.snapshots) {
		return fmt.Errorf("%w: %d", ErrUnknownState, id)
	}
	s := b.snapshots[id]
	b.basePos, b.baseOrn = s.basePos, s.baseOrn
	b.linVel, b.angVel = s.linVel, s.angVel
	b.joints = cloneJoints(s.joints)
	b.targets = make(map[int]MotorTarget)
	b.contacts = nil
	return nil
}

// Step implements Stepper. The base is integrated at its current velocity and
// each driven joint jumps to its motor target, with its velocity set to the
// rate that covers the jump in dt.
func (b *KinematicBody) Step(dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("physics: invalid step %v", dt)
	}

	b.basePos = b.basePos.Add(b.linVel.Mul(dt))
	if w := b.angVel.Len(); w > 0 {
		b.baseOrn = quat.FromAxisAngle(b.angVel, w*dt).Mul(b.baseOrn).Normalize()
	}

	for index, target := range b.targets {
		prev := b.joints[index]
		next := JointState{Position: append([]float64(nil), target.Position...)}

		switch {
		case len(next.Position) == 4 && len(prev.Position) == 4:
			from := quat.FromWXYZ(prev.Position[0], prev.Position[1], prev.Position[2], prev.Position[3])
			to := quat.FromWXYZ(next.Position[0], next.Position[1], next.Position[2], next.Position[3])
			w := quat.AngularVelocity(from, to, dt)
			next.Velocity = []float64{w[0], w[1], w[2]}
		case len(next.Position) == 1 && len(prev.Position) == 1:
			next.Velocity = []float64{(next.Position[0] - prev.Position[0]) / dt}
		default:
			next.Velocity = make([]float64, rateSize(len(next.Position)))
		}
		b.joints[index] = next
	}
	return nil
}

// rateSize maps a joint position length to its velocity length.
func rateSize(positionLen int) int {
	if positionLen == 4 {
		return 3
	}
	return positionLen
}

func cloneJoints(in map[int]JointState) map[int]JointState {
	out := make(map[int]JointState, len(in))
	for k, v := range in {
		out[k] = JointState{
			Position: append([]float64(nil), v.Position...),
			Velocity: append([]float64(nil), v.Velocity...),
		}
	}
	return out
}
