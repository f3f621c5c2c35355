// Package reward scores how closely a simulated character tracks a kinematic
// reference body.
//
// The score blends five sub-rewards of the form exp(-errScale*scale*err):
// pose, velocity, end-effector, root and center of mass. With the default
// weights only pose, velocity and center of mass contribute; the end-effector
// and root terms are still computed and reported in the Breakdown.
//
// The center-of-mass term is not a constant: without mass data it compares
// the root linear velocities of the two bodies, so any root velocity mismatch
// lowers the total.
package reward

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"

	"github.com/teslashibe/go-mimic/pkg/physics"
	"github.com/teslashibe/go-mimic/pkg/pose"
	"github.com/teslashibe/go-mimic/pkg/quat"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// ErrInvalidWeights is returned when weights are negative or sum to zero.
var ErrInvalidWeights = errors.New("reward: invalid weights")

// Body is what the reward reads from each character.
type Body interface {
	physics.BaseController
	physics.JointController
	physics.LinkReader
}

// Weights are the relative importance of each sub-reward.
type Weights struct {
	Pose        float64 `json:"pose" mapstructure:"pose"`
	Velocity    float64 `json:"velocity" mapstructure:"velocity"`
	EndEffector float64 `json:"end_effector" mapstructure:"end_effector"`
	Root        float64 `json:"root" mapstructure:"root"`
	COM         float64 `json:"com" mapstructure:"com"`
}

// DefaultWeights returns the imitation weighting: pose .5, velocity .05,
// center of mass .1, end-effector and root off.
func DefaultWeights() Weights {
	return Weights{Pose: 0.5, Velocity: 0.05, EndEffector: 0, Root: 0, COM: 0.1}
}

func (w Weights) slice() []float64 {
	return []float64{w.Pose, w.Velocity, w.EndEffector, w.Root, w.COM}
}

// Normalized returns w scaled to sum to 1.
func (w Weights) Normalized() (Weights, error) {
	s := w.slice()
	if floats.HasNaN(s) || floats.Min(s) < 0 {
		return Weights{}, fmt.Errorf("%w: %+v", ErrInvalidWeights, w)
	}
	total := floats.Sum(s)
	if !(total > 0) || math.IsInf(total, 0) {
		return Weights{}, fmt.Errorf("%w: sum is %v", ErrInvalidWeights, total)
	}
	floats.Scale(1/total, s)
	return Weights{Pose: s[0], Velocity: s[1], EndEffector: s[2], Root: s[3], COM: s[4]}, nil
}

// Scales sharpen each error term before the exponential. Error multiplies
// every term.
type Scales struct {
	Pose        float64 `json:"pose" mapstructure:"pose"`
	Velocity    float64 `json:"velocity" mapstructure:"velocity"`
	EndEffector float64 `json:"end_effector" mapstructure:"end_effector"`
	Root        float64 `json:"root" mapstructure:"root"`
	COM         float64 `json:"com" mapstructure:"com"`
	Error       float64 `json:"error" mapstructure:"error"`
}

// DefaultScales returns the imitation scales.
func DefaultScales() Scales {
	return Scales{Pose: 2, Velocity: 0.1, EndEffector: 40, Root: 5, COM: 10, Error: 1}
}

// Config holds the reward parameters.
type Config struct {
	Weights Weights
	Scales  Scales

	// EndEffectors lists the chain indices scored by the end-effector term.
	EndEffectors []int
}

// DefaultConfig returns the reference humanoid's reward configuration.
func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights(),
		Scales:       DefaultScales(),
		EndEffectors: append([]int(nil), skeleton.HumanoidEndEffectors...),
	}
}

// Breakdown reports every error, sub-reward and the blended total.
type Breakdown struct {
	PoseErr        float64 `json:"pose_err"`
	VelocityErr    float64 `json:"velocity_err"`
	EndEffectorErr float64 `json:"end_effector_err"`
	RootErr        float64 `json:"root_err"`
	COMErr         float64 `json:"com_err"`

	PoseReward        float64 `json:"pose_reward"`
	VelocityReward    float64 `json:"velocity_reward"`
	EndEffectorReward float64 `json:"end_effector_reward"`
	RootReward        float64 `json:"root_reward"`
	COMReward         float64 `json:"com_reward"`

	Total float64 `json:"total"`
}

// Reward computes imitation rewards for a joint set. It holds no mutable
// state and is safe for concurrent use; the bodies it reads are not.
type Reward struct {
	joints       *skeleton.JointSet
	weights      Weights
	scales       Scales
	endEffectors []int
}

// New returns a Reward with normalized weights.
func New(joints *skeleton.JointSet, cfg Config) (*Reward, error) {
	w, err := cfg.Weights.Normalized()
	if err != nil {
		return nil, err
	}
	return &Reward{
		joints:       joints,
		weights:      w,
		scales:       cfg.Scales,
		endEffectors: append([]int(nil), cfg.EndEffectors...),
	}, nil
}

// Weights returns the normalized weights in use.
func (r *Reward) Weights() Weights {
	return r.weights
}

// Compute returns the blended reward of sim against ghost, in [0, 1].
func (r *Reward) Compute(sim, ghost Body) (float64, error) {
	b, err := r.Evaluate(sim, ghost)
	if err != nil {
		return 0, err
	}
	return b.Total, nil
}

// Evaluate scores sim against ghost and reports every term. Collaborator
// errors are returned wrapped.
func (r *Reward) Evaluate(sim, ghost Body) (Breakdown, error) {
	var b Breakdown

	for i := 0; i < r.joints.Len(); i++ {
		spec := r.joints.At(i)
		poseErr, velErr, err := jointError(spec, sim, ghost)
		if err != nil {
			return Breakdown{}, err
		}
		b.PoseErr += spec.Weight * poseErr
		b.VelocityErr += spec.Weight * velErr
	}

	simRoot, err := readRoot(sim)
	if err != nil {
		return Breakdown{}, fmt.Errorf("reward: sim root: %w", err)
	}
	ghostRoot, err := readRoot(ghost)
	if err != nil {
		return Breakdown{}, fmt.Errorf("reward: ghost root: %w", err)
	}

	b.EndEffectorErr, err = r.endEffectorError(sim, ghost, simRoot, ghostRoot)
	if err != nil {
		return Breakdown{}, err
	}
	b.RootErr = rootError(simRoot, ghostRoot)
	b.COMErr = comError(simRoot, ghostRoot)

	s := r.scales
	b.PoseReward = math.Exp(-s.Error * s.Pose * b.PoseErr)
	b.VelocityReward = math.Exp(-s.Error * s.Velocity * b.VelocityErr)
	b.EndEffectorReward = math.Exp(-s.Error * s.EndEffector * b.EndEffectorErr)
	b.RootReward = math.Exp(-s.Error * s.Root * b.RootErr)
	b.COMReward = math.Exp(-s.Error * s.COM * b.COMErr)

	w := r.weights
	b.Total = w.Pose*b.PoseReward +
		w.Velocity*b.VelocityReward +
		w.EndEffector*b.EndEffectorReward +
		w.Root*b.RootReward +
		w.COM*b.COMReward

	return b, nil
}

// jointError returns the squared pose and velocity differences of one joint.
func jointError(spec skeleton.JointSpec, sim, ghost Body) (float64, float64, error) {
	s, err := sim.JointState(spec.Index)
	if err != nil {
		return 0, 0, fmt.Errorf("reward: sim joint %s: %w", spec.Name, err)
	}
	k, err := ghost.JointState(spec.Index)
	if err != nil {
		return 0, 0, fmt.Errorf("reward: ghost joint %s: %w", spec.Name, err)
	}
	if err := checkState(spec, s); err != nil {
		return 0, 0, err
	}
	if err := checkState(spec, k); err != nil {
		return 0, 0, err
	}

	if spec.DoF == skeleton.Ball {
		angle := quat.Angle(
			quat.FromWXYZ(s.Position[0], s.Position[1], s.Position[2], s.Position[3]),
			quat.FromWXYZ(k.Position[0], k.Position[1], k.Position[2], k.Position[3]),
		)
		dv := mgl64.Vec3{s.Velocity[0], s.Velocity[1], s.Velocity[2]}.Sub(mgl64.Vec3{k.Velocity[0], k.Velocity[1], k.Velocity[2]})
		return angle * angle, dv.Dot(dv), nil
	}

	d := s.Position[0] - k.Position[0]
	dv := s.Velocity[0] - k.Velocity[0]
	return d * d, dv * dv, nil
}

func checkState(spec skeleton.JointSpec, js physics.JointState) error {
	if len(js.Position) != spec.DoF.PositionSize() {
		return &pose.DimensionError{What: spec.Name + " position", Want: spec.DoF.PositionSize(), Got: len(js.Position)}
	}
	if len(js.Velocity) != spec.DoF.RateSize() {
		return &pose.DimensionError{What: spec.Name + " velocity", Want: spec.DoF.RateSize(), Got: len(js.Velocity)}
	}
	return nil
}

type rootState struct {
	pos, linVel, angVel mgl64.Vec3
	orn                 mgl64.Quat
}

func readRoot(b Body) (rootState, error) {
	pos, orn, err := b.BasePose()
	if err != nil {
		return rootState{}, err
	}
	lin, ang, err := b.BaseVelocity()
	if err != nil {
		return rootState{}, err
	}
	return rootState{pos: pos, orn: orn, linVel: lin, angVel: ang}, nil
}

// endEffectorError is the mean squared distance between matching end
// effectors, each taken relative to its root in that body's heading frame.
// Heights are measured from a flat ground at y = 0.
func (r *Reward) endEffectorError(sim, ghost Body, simRoot, ghostRoot rootState) (float64, error) {
	if len(r.endEffectors) == 0 {
		return 0, nil
	}
	_, simHeading := quat.OriginFrame(simRoot.pos, simRoot.orn)
	_, ghostHeading := quat.OriginFrame(ghostRoot.pos, ghostRoot.orn)

	var total float64
	for _, link := range r.endEffectors {
		s, err := sim.LinkState(link)
		if err != nil {
			return 0, fmt.Errorf("reward: sim link %d: %w", link, err)
		}
		k, err := ghost.LinkState(link)
		if err != nil {
			return 0, fmt.Errorf("reward: ghost link %d: %w", link, err)
		}

		rel0 := s.Position.Sub(simRoot.pos)
		rel0[1] = s.Position[1]
		rel1 := k.Position.Sub(ghostRoot.pos)
		rel1[1] = k.Position[1]

		d := ghostHeading.Rotate(rel1).Sub(simHeading.Rotate(rel0))
		total += d.Dot(d)
	}
	return total / float64(len(r.endEffectors)), nil
}

// rootError blends root position, rotation and velocity differences.
func rootError(sim, ghost rootState) float64 {
	dp := sim.pos.Sub(ghost.pos)
	rot := quat.Angle(sim.orn, ghost.orn)
	dv := ghost.linVel.Sub(sim.linVel)
	dw := ghost.angVel.Sub(sim.angVel)

	return dp.Dot(dp) + 0.1*rot*rot + 0.01*dv.Dot(dv) + 0.001*dw.Dot(dw)
}

// comError compares center-of-mass velocities, approximated by the root
// linear velocity.
func comError(sim, ghost rootState) float64 {
	d := ghost.linVel.Sub(sim.linVel)
	return 0.1 * d.Dot(d)
}
