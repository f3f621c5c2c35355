// Package physics defines the rigid-body simulator port used by the character
// controller and the imitation reward.
//
// The port is split into small interfaces so that consumers depend only on
// what they use: the reward reads joint and link state, the controller writes
// base and motor targets, and the environment steps the world. Body composes
// them for a full articulated character.
//
// Joint positions and velocities are flat slices laid out by the joint's DoF:
// a Hinge joint has one position and one velocity, a Ball joint has a w,x,y,z
// quaternion and a 3-vector angular velocity.
package physics

import "github.com/go-gl/mathgl/mgl64"

// BaseController reads and writes the floating base of a body.
type BaseController interface {
	BasePose() (pos mgl64.Vec3, orn mgl64.Quat, err error)
	ResetBasePose(pos mgl64.Vec3, orn mgl64.Quat) error
	BaseVelocity() (linear, angular mgl64.Vec3, err error)
	ResetBaseVelocity(linear, angular mgl64.Vec3) error
}

// JointState is the position and velocity of one joint.
type JointState struct {
	Position []float64
	Velocity []float64
}

// JointController reads and teleports joints by kinematic chain index.
type JointController interface {
	NumJoints() int
	JointState(index int) (JointState, error)

	// ResetJointState sets a joint's position, and its velocity when
	// velocity is non-nil.
	ResetJointState(index int, position, velocity []float64) error
}

// MotorTarget is a position-control command for one joint motor.
type MotorTarget struct {
	Position []float64
	Gain     float64
	MaxForce float64
}

// MotorController drives joint motors.
type MotorController interface {
	SetJointMotorTarget(index int, target MotorTarget) error
}

// LinkState is the world-frame state of one link.
type LinkState struct {
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// LinkReader reads link state by kinematic chain index.
type LinkReader interface {
	LinkState(index int) (LinkState, error)
}

// Contact is a contact point between two bodies. A link index of -1 is the
// body's base.
type Contact struct {
	BodyA int
	BodyB int
	LinkA int
	LinkB int
}

// ContactReporter lists the contacts found by the last simulation step.
type ContactReporter interface {
	// ID identifies the body in Contact records.
	ID() int
	ContactPoints() ([]Contact, error)
}

// StateID names a saved simulation snapshot.
type StateID int

// StateSaver snapshots and restores simulation state.
type StateSaver interface {
	SaveState() (StateID, error)
	RestoreState(id StateID) error
}

// Body is the composite interface for an articulated character.
type Body interface {
	BaseController
	JointController
	MotorController
	LinkReader
	ContactReporter
	StateSaver
}

// Stepper advances a simulation by dt seconds.
type Stepper interface {
	Step(dt float64) error
}

// Ensure KinematicBody implements Body and Stepper
var (
	_ Body    = (*KinematicBody)(nil)
	_ Stepper = (*KinematicBody)(nil)
)
