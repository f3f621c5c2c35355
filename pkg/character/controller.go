// Package character drives a simulated articulated body along a reference
// motion clip.
//
// A Controller owns the simulation time of one character. It resolves that
// time into a keyframe pair, interpolates the reference pose, and writes
// poses and actions to the body through the physics port. It also keeps a
// kinematic ghost that the imitation reward compares against.
//
// Controllers are not safe for concurrent use.
package character

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	mimiclog "github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/motion"
	"github.com/teslashibe/go-mimic/pkg/physics"
	"github.com/teslashibe/go-mimic/pkg/pose"
	"github.com/teslashibe/go-mimic/pkg/quat"
	"github.com/teslashibe/go-mimic/pkg/reward"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// GhostID is the body ID given to a ghost the controller creates itself.
const GhostID = -2

// Options configures a Controller.
type Options struct {
	// BaseShift offsets the root whenever a pose initializes the base.
	BaseShift mgl64.Vec3

	// AllowedContacts lists the chain indices that may touch the ground
	// without ending the episode.
	AllowedContacts []int

	// ObservationOrder lists the chain indices reported by State, in order.
	ObservationOrder []int

	// Ghost is the kinematic reference body. When nil a KinematicBody with
	// the simulated body's joint count is created.
	Ghost physics.Body

	Logger *slog.Logger
}

// DefaultOptions returns options for the reference humanoid.
func DefaultOptions() Options {
	return Options{
		AllowedContacts:  append([]int(nil), skeleton.HumanoidAllowedContacts...),
		ObservationOrder: append([]int(nil), skeleton.HumanoidObservationOrder...),
	}
}

// PoseTarget is the part of a body that ApplyPose writes to.
type PoseTarget interface {
	physics.BaseController
	physics.JointController
	physics.MotorController
}

// Controller tracks a reference clip with a simulated body.
type Controller struct {
	clip   *motion.Clip
	joints *skeleton.JointSet
	codec  *pose.Codec
	sim    physics.Body
	ghost  physics.Body
	opts   Options
	logger *slog.Logger

	allowed map[int]bool
	initial physics.StateID

	simTime float64
	cursor  motion.Cursor
}

// New binds clip and joints to a simulated body. The body's base is moved to
// BaseShift with identity orientation, that state is saved as the episode
// start, and the controller is Reset.
func New(clip *motion.Clip, joints *skeleton.JointSet, sim physics.Body, opts Options) (*Controller, error) {
	if clip.FrameLen() < joints.RecordSize() {
		return nil, &pose.DimensionError{What: "keyframe record", Want: joints.RecordSize(), Got: clip.FrameLen()}
	}
	if opts.Logger == nil {
		opts.Logger = mimiclog.L()
	}
	if opts.ObservationOrder == nil {
		opts.ObservationOrder = make([]int, sim.NumJoints())
		for i := range opts.ObservationOrder {
			opts.ObservationOrder[i] = i
		}
	}
	if opts.Ghost == nil {
		opts.Ghost = physics.NewKinematicBody(GhostID, sim.NumJoints())
	}

	c := &Controller{
		clip:    clip,
		joints:  joints,
		codec:   pose.NewCodec(joints),
		sim:     sim,
		ghost:   opts.Ghost,
		opts:    opts,
		logger:  opts.Logger.With("component", "character", "clip", clip.Name()),
		allowed: make(map[int]bool, len(opts.AllowedContacts)),
	}
	for _, part := range opts.AllowedContacts {
		c.allowed[part] = true
	}

	if err := sim.ResetBasePose(opts.BaseShift, mgl64.QuatIdent()); err != nil {
		return nil, fmt.Errorf("character: reset base: %w", err)
	}
	id, err := sim.SaveState()
	if err != nil {
		return nil, fmt.Errorf("character: save initial state: %w", err)
	}
	c.initial = id

	if err := c.Reset(); err != nil {
		return nil, err
	}

	c.logger.Info("controller ready",
		"frames", clip.FrameCount(),
		"cycle", clip.CycleDuration(),
		"joints", joints.Len())
	return c, nil
}

// Clip returns the reference clip.
func (c *Controller) Clip() *motion.Clip { return c.clip }

// Joints returns the joint set.
func (c *Controller) Joints() *skeleton.JointSet { return c.joints }

// Codec returns the action codec for the joint set.
func (c *Controller) Codec() *pose.Codec { return c.codec }

// Sim returns the simulated body.
func (c *Controller) Sim() physics.Body { return c.sim }

// Ghost returns the kinematic reference body.
func (c *Controller) Ghost() physics.Body { return c.ghost }

// Reset restores the initial simulation state, rewinds time to zero and
// places the body on the clip's first pose with matching velocities.
func (c *Controller) Reset() error {
	if err := c.sim.RestoreState(c.initial); err != nil {
		return fmt.Errorf("character: restore initial state: %w", err)
	}
	c.SetTime(0)

	p, v, err := c.CurrentReferencePose()
	if err != nil {
		return err
	}
	if err := c.ApplyPose(p, v, c.sim, true, true); err != nil {
		return err
	}

	c.logger.Debug("reset")
	return nil
}

// SetTime moves the controller to simulation time t. A NaN or infinite t
// is treated as zero.
func (c *Controller) SetTime(t float64) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		c.logger.Warn("non-finite time, rewinding to zero", "time", t)
		t = 0
	}
	c.simTime = t
	c.cursor = c.clip.Locate(t)
}

// Time returns the current simulation time.
func (c *Controller) Time() float64 {
	return c.simTime
}

// Cursor returns the keyframe pair and blend fraction for the current time.
func (c *Controller) Cursor() motion.Cursor {
	return c.cursor
}

// Phase returns the progress through the current clip cycle, in [0, 1).
func (c *Controller) Phase() float64 {
	return c.clip.Phase(c.simTime)
}

// CurrentReferencePose interpolates the clip at the current time.
func (c *Controller) CurrentReferencePose() (pose.Pose, pose.Velocity, error) {
	return Sample(c.clip, c.codec, c.cursor)
}

// ReferenceAction encodes the current reference pose as an action, which
// drives the motors straight at the reference.
func (c *Controller) ReferenceAction() ([]float64, error) {
	p, _, err := c.CurrentReferencePose()
	if err != nil {
		return nil, err
	}
	return c.codec.ToAction(p)
}

// ApplyPose writes p to target. When initializeBase is set the root is
// teleported to p's root plus BaseShift and every joint is reset to p; root
// and joint velocities are reset from v as well when initializeVelocities is
// set. Every joint motor is then aimed at p with the joint's gain and
// maximum force.
func (c *Controller) ApplyPose(p pose.Pose, v pose.Velocity, target PoseTarget, initializeBase, initializeVelocities bool) error {
	if len(p.Joints) != c.joints.Len() {
		return &pose.DimensionError{What: "pose joints", Want: c.joints.Len(), Got: len(p.Joints)}
	}
	if initializeVelocities && len(v.Joints) != c.joints.Len() {
		return &pose.DimensionError{What: "velocity joints", Want: c.joints.Len(), Got: len(v.Joints)}
	}

	if initializeBase {
		if err := target.ResetBasePose(p.RootPos.Add(c.opts.BaseShift), p.RootRot); err != nil {
			return fmt.Errorf("character: reset base pose: %w", err)
		}
		if initializeVelocities {
			if err := target.ResetBaseVelocity(v.RootLinear, v.RootAngular); err != nil {
				return fmt.Errorf("character: reset base velocity: %w", err)
			}
		}

		for i := 0; i < c.joints.Len(); i++ {
			spec := c.joints.At(i)
			var vel []float64
			if initializeVelocities {
				vel = v.Joints[i].Components()
			}
			if err := target.ResetJointState(spec.Index, p.Joints[i].Components(), vel); err != nil {
				return fmt.Errorf("character: reset joint %s: %w", spec.Name, err)
			}
		}
	}

	for i := 0; i < c.joints.Len(); i++ {
		spec := c.joints.At(i)
		err := target.SetJointMotorTarget(spec.Index, physics.MotorTarget{
			Position: p.Joints[i].Components(),
			Gain:     spec.Gain,
			MaxForce: spec.MaxForce,
		})
		if err != nil {
			return fmt.Errorf("character: set motor %s: %w", spec.Name, err)
		}
	}
	return nil
}

// ApplyAction decodes an action and drives the simulated body's motors with
// it. The root is never moved by an action.
func (c *Controller) ApplyAction(action []float64) error {
	p, err := c.codec.FromAction(action)
	if err != nil {
		return err
	}
	return c.ApplyPose(p, pose.ZeroVelocity(c.joints), c.sim, false, false)
}

// Terminates reports whether any part of the simulated body outside the
// allowed set is in contact.
func (c *Controller) Terminates() (bool, error) {
	contacts, err := c.sim.ContactPoints()
	if err != nil {
		return false, fmt.Errorf("character: contact points: %w", err)
	}

	id := c.sim.ID()
	for _, cp := range contacts {
		part := -1
		if cp.BodyA == id {
			part = cp.LinkA
		}
		if cp.BodyB == id {
			part = cp.LinkB
		}
		if part >= 0 && !c.allowed[part] {
			c.logger.Debug("disallowed contact", "part", part, "time", c.simTime)
			return true, nil
		}
	}
	return false, nil
}

// BuildOriginTransform returns the heading-aligned frame of the simulated
// root: its horizontal position maps to the origin and its forward direction
// to +X.
func (c *Controller) BuildOriginTransform() (mgl64.Vec3, mgl64.Quat, error) {
	pos, orn, err := c.sim.BasePose()
	if err != nil {
		return mgl64.Vec3{}, mgl64.Quat{}, fmt.Errorf("character: base pose: %w", err)
	}
	p, q := quat.OriginFrame(pos, orn)
	return p, q, nil
}

// Reward re-applies the current reference pose to the ghost and scores the
// simulated body against it.
func (c *Controller) Reward(r *reward.Reward) (reward.Breakdown, error) {
	p, v, err := c.CurrentReferencePose()
	if err != nil {
		return reward.Breakdown{}, err
	}
	if err := c.ApplyPose(p, v, c.ghost, true, true); err != nil {
		return reward.Breakdown{}, fmt.Errorf("character: drive ghost: %w", err)
	}
	return r.Evaluate(c.sim, c.ghost)
}

// Sample interpolates clip at cursor. A first frame whose dt is not positive,
// as happens on the last record of some clips, uses the clip's frame
// duration instead.
func Sample(clip *motion.Clip, codec *pose.Codec, cur motion.Cursor) (pose.Pose, pose.Velocity, error) {
	ra, rb := clip.Pair(cur)
	a, err := codec.DecodeKeyframe(ra)
	if err != nil {
		return pose.Pose{}, pose.Velocity{}, err
	}
	b, err := codec.DecodeKeyframe(rb)
	if err != nil {
		return pose.Pose{}, pose.Velocity{}, err
	}
	if !(a.Duration > 0) {
		a.Duration = clip.FrameDuration()
	}
	return pose.Interpolate(a, b, cur.Fraction)
}
