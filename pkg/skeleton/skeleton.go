// Package skeleton describes the joint layout of the simulated character.
//
// A JointSet is built once at startup and shared read-only by every component
// that needs to walk the joints in their fixed order: keyframe decoding, the
// action codec, pose application and reward scoring.
package skeleton

import "fmt"

// DoF is the degrees-of-freedom class of a joint.
type DoF int

const (
	// Hinge joints rotate about a single axis and carry one scalar.
	Hinge DoF = iota + 1

	// Ball joints rotate freely and carry a unit quaternion.
	Ball
)

// String returns a human-readable DoF name.
func (d DoF) String() string {
	switch d {
	case Hinge:
		return "hinge"
	case Ball:
		return "ball"
	default:
		return "unknown"
	}
}

// PositionSize is the number of scalars a joint rotation occupies in a
// keyframe record (1 for Hinge, 4 for a w,x,y,z quaternion).
func (d DoF) PositionSize() int {
	if d == Ball {
		return 4
	}
	return 1
}

// RateSize is the number of scalars in a joint velocity.
func (d DoF) RateSize() int {
	if d == Ball {
		return 3
	}
	return 1
}

// ActionSize is the number of scalars a joint occupies in an action vector
// (1 for Hinge, angle plus axis for Ball).
func (d DoF) ActionSize() int {
	if d == Ball {
		return 4
	}
	return 1
}

// DefaultGain is the proportional gain used for joint motors when a JointSpec
// does not set one.
const DefaultGain = 0.03

// JointSpec is static metadata for one actuated joint.
type JointSpec struct {
	// Name identifies the joint in configuration and logs.
	Name string

	// Index is the joint's position in the physics body's kinematic chain.
	Index int

	// DoF selects the rotation representation.
	DoF DoF

	// MaxForce caps the motor force applied when tracking a target.
	MaxForce float64

	// Gain is the motor's proportional (position) gain.
	Gain float64

	// Weight is the joint's importance in the imitation reward.
	Weight float64
}

// JointSet is an ordered, immutable set of joints with a name to slot map.
type JointSet struct {
	joints     []JointSpec
	slots      map[string]int
	byIndex    map[int]int
	actionSize int
	recordSize int
}

// RootRecordSize is the number of scalars preceding the joint rotations in a
// keyframe record: dt, root position (3) and root rotation (4).
const RootRecordSize = 8

// NewJointSet validates specs and returns an immutable JointSet.
// Specs keep their given order; that order defines keyframe and action layouts.
func NewJointSet(specs []JointSpec) (*JointSet, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("skeleton: joint set is empty")
	}

	s := &JointSet{
		joints:     make([]JointSpec, len(specs)),
		slots:      make(map[string]int, len(specs)),
		byIndex:    make(map[int]int, len(specs)),
		recordSize: RootRecordSize,
	}

	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("skeleton: joint at slot %d has no name", i)
		}
		if spec.DoF != Hinge && spec.DoF != Ball {
			return nil, fmt.Errorf("skeleton: joint %q has invalid DoF %d", spec.Name, spec.DoF)
		}
		if _, dup := s.slots[spec.Name]; dup {
			return nil, fmt.Errorf("skeleton: duplicate joint %q", spec.Name)
		}
		if _, dup := s.byIndex[spec.Index]; dup {
			return nil, fmt.Errorf("skeleton: joint %q reuses chain index %d", spec.Name, spec.Index)
		}
		if spec.Gain == 0 {
			spec.Gain = DefaultGain
		}

		s.joints[i] = spec
		s.slots[spec.Name] = i
		s.byIndex[spec.Index] = i
		s.actionSize += spec.DoF.ActionSize()
		s.recordSize += spec.DoF.PositionSize()
	}

	return s, nil
}

// Len returns the number of joints.
func (s *JointSet) Len() int {
	return len(s.joints)
}

// At returns the joint in the given slot. It panics if slot is out of range.
func (s *JointSet) At(slot int) JointSpec {
	return s.joints[slot]
}

// All returns a copy of the joints in slot order.
func (s *JointSet) All() []JointSpec {
	out := make([]JointSpec, len(s.joints))
	copy(out, s.joints)
	return out
}

// Slot resolves a joint name to its slot.
func (s *JointSet) Slot(name string) (int, error) {
	slot, ok := s.slots[name]
	if !ok {
		return 0, &UnknownJointError{Name: name}
	}
	return slot, nil
}

// Lookup returns the spec for a joint name.
func (s *JointSet) Lookup(name string) (JointSpec, error) {
	slot, err := s.Slot(name)
	if err != nil {
		return JointSpec{}, err
	}
	return s.joints[slot], nil
}

// ByIndex returns the joint with the given kinematic chain index.
func (s *JointSet) ByIndex(index int) (JointSpec, bool) {
	slot, ok := s.byIndex[index]
	if !ok {
		return JointSpec{}, false
	}
	return s.joints[slot], true
}

// ActionSize is the length of an action vector for this joint set.
func (s *JointSet) ActionSize() int {
	return s.actionSize
}

// RecordSize is the length of a keyframe record for this joint set.
func (s *JointSet) RecordSize() int {
	return s.recordSize
}

// Override adjusts tunable fields of a named joint. Zero fields are left as-is.
type Override struct {
	MaxForce float64
	Gain     float64
	Weight   *float64
}

// With returns a new JointSet with overrides applied. Unknown joint names
// fail with UnknownJointError, so typos surface at configuration time.
func (s *JointSet) With(overrides map[string]Override) (*JointSet, error) {
	specs := s.All()
	for name, o := range overrides {
		slot, err := s.Slot(name)
		if err != nil {
			return nil, err
		}
		if o.MaxForce != 0 {
			specs[slot].MaxForce = o.MaxForce
		}
		if o.Gain != 0 {
			specs[slot].Gain = o.Gain
		}
		if o.Weight != nil {
			specs[slot].Weight = *o.Weight
		}
	}
	return NewJointSet(specs)
}
