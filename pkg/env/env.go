// Package env wraps a character controller as a reinforcement-learning
// environment: actions in, observations and imitation rewards out.
package env

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	mimiclog "github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/character"
	"github.com/teslashibe/go-mimic/pkg/physics"
	"github.com/teslashibe/go-mimic/pkg/pose"
	"github.com/teslashibe/go-mimic/pkg/reward"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

var (
	// ErrEpisodeOver is returned by Step after the last step of an episode.
	ErrEpisodeOver = errors.New("env: episode is over, call Reset")

	// ErrInvalidAction is returned for actions with NaN or infinite values.
	ErrInvalidAction = errors.New("env: action has non-finite values")
)

// Config controls episode timing.
type Config struct {
	// Timestep is the simulator step in seconds.
	Timestep float64

	// Substeps is how many simulator steps run per environment step.
	Substeps int

	// MaxSteps truncates an episode. Zero means no limit.
	MaxSteps int
}

// DefaultConfig returns 240 Hz simulation driven at 30 Hz.
func DefaultConfig() Config {
	return Config{
		Timestep: 1.0 / 240,
		Substeps: 8,
		MaxSteps: 600,
	}
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Env) { e.logger = l }
}

// WithObserver registers a callback run after every Reset and Step.
func WithObserver(fn func(TimeStep)) Option {
	return func(e *Env) { e.observers = append(e.observers, fn) }
}

// Env runs imitation episodes for one controller. It is not safe for
// concurrent use.
type Env struct {
	ctrl    *character.Controller
	reward  *reward.Reward
	stepper physics.Stepper
	cfg     Config
	logger  *slog.Logger

	observers []func(TimeStep)

	episode uuid.UUID
	current TimeStep
}

// New returns an environment and resets it to the first step of an episode.
func New(ctrl *character.Controller, r *reward.Reward, stepper physics.Stepper, cfg Config, opts ...Option) (*Env, TimeStep, error) {
	if !(cfg.Timestep > 0) || math.IsInf(cfg.Timestep, 0) {
		return nil, TimeStep{}, fmt.Errorf("env: invalid timestep %v", cfg.Timestep)
	}
	if cfg.Substeps <= 0 {
		cfg.Substeps = 1
	}

	e := &Env{
		ctrl:    ctrl,
		reward:  r,
		stepper: stepper,
		cfg:     cfg,
		logger:  mimiclog.L(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "env", "clip", ctrl.Clip().Name())

	first, err := e.Reset()
	if err != nil {
		return nil, TimeStep{}, err
	}
	return e, first, nil
}

// ControlStep is the simulated time covered by one Step.
func (e *Env) ControlStep() float64 {
	return e.cfg.Timestep * float64(e.cfg.Substeps)
}

// Episode returns the current episode ID.
func (e *Env) Episode() uuid.UUID {
	return e.episode
}

// CurrentTimeStep returns the last step returned by Reset or Step.
func (e *Env) CurrentTimeStep() TimeStep {
	return e.current
}

// Reset starts a new episode.
func (e *Env) Reset() (TimeStep, error) {
	if err := e.ctrl.Reset(); err != nil {
		return TimeStep{}, fmt.Errorf("env: reset: %w", err)
	}
	e.episode = uuid.New()

	obs, err := e.observe()
	if err != nil {
		return TimeStep{}, err
	}

	e.current = TimeStep{
		EpisodeID:   e.episode,
		StepType:    First,
		Time:        e.ctrl.Time(),
		Phase:       e.ctrl.Phase(),
		Observation: obs,
	}
	e.logger.Info("episode started", "episode", e.episode)
	e.notify(e.current)
	return e.current, nil
}

// Step applies an action, advances the simulation by one control step and
// scores the result. The episode ends when the character touches the ground
// with a disallowed part or MaxSteps is reached. A nil action is a
// DimensionError.
func (e *Env) Step(action *mat.VecDense) (TimeStep, error) {
	if e.current.Last() {
		return TimeStep{}, ErrEpisodeOver
	}
	want := e.ctrl.Codec().ActionSize()
	if action == nil {
		return TimeStep{}, &pose.DimensionError{What: "action", Want: want, Got: 0}
	}
	if action.Len() != want {
		return TimeStep{}, &pose.DimensionError{What: "action", Want: want, Got: action.Len()}
	}

	a := mat.Col(nil, 0, action)
	if floats.HasNaN(a) || math.IsInf(floats.Max(a), 1) || math.IsInf(floats.Min(a), -1) {
		return TimeStep{}, ErrInvalidAction
	}

	if err := e.ctrl.ApplyAction(a); err != nil {
		return TimeStep{}, fmt.Errorf("env: apply action: %w", err)
	}
	for i := 0; i < e.cfg.Substeps; i++ {
		if err := e.stepper.Step(e.cfg.Timestep); err != nil {
			return TimeStep{}, fmt.Errorf("env: step simulation: %w", err)
		}
	}
	e.ctrl.SetTime(e.ctrl.Time() + e.ControlStep())

	b, err := e.ctrl.Reward(e.reward)
	if err != nil {
		return TimeStep{}, fmt.Errorf("env: reward: %w", err)
	}
	terminated, err := e.ctrl.Terminates()
	if err != nil {
		return TimeStep{}, fmt.Errorf("env: terminates: %w", err)
	}
	obs, err := e.observe()
	if err != nil {
		return TimeStep{}, err
	}

	number := e.current.Number + 1
	truncated := e.cfg.MaxSteps > 0 && number >= e.cfg.MaxSteps

	ts := TimeStep{
		EpisodeID:   e.episode,
		StepType:    Mid,
		Number:      number,
		Time:        e.ctrl.Time(),
		Phase:       e.ctrl.Phase(),
		Reward:      b.Total,
		Breakdown:   b,
		Observation: obs,
		Terminated:  terminated,
		Truncated:   truncated && !terminated,
	}
	if terminated || truncated {
		ts.StepType = Last
		e.logger.Info("episode ended",
			"episode", e.episode,
			"steps", number,
			"terminated", terminated)
	}

	e.logger.Debug("step", "n", number, "reward", b.Total, "phase", ts.Phase)
	e.current = ts
	e.notify(ts)
	return ts, nil
}

// ReferenceAction returns the action that drives the motors at the current
// reference pose.
func (e *Env) ReferenceAction() (*mat.VecDense, error) {
	a, err := e.ctrl.ReferenceAction()
	if err != nil {
		return nil, err
	}
	return mat.NewVecDense(len(a), a), nil
}

// ObservationSpec describes the observation vector. It is unbounded.
func (e *Env) ObservationSpec() Spec {
	n := e.ctrl.StateSize()
	low := make([]float64, n)
	high := make([]float64, n)
	for i := range high {
		low[i] = math.Inf(-1)
		high[i] = math.Inf(1)
	}
	return Spec{Kind: Observation, Low: mat.NewVecDense(n, low), High: mat.NewVecDense(n, high)}
}

// ActionSpec describes the action vector: Ball joints take an angle in
// [0, 2π] and an axis in [-1, 1]^3, Hinge joints are unbounded.
func (e *Env) ActionSpec() Spec {
	joints := e.ctrl.Joints()
	n := joints.ActionSize()
	low := make([]float64, 0, n)
	high := make([]float64, 0, n)
	for i := 0; i < joints.Len(); i++ {
		if joints.At(i).DoF == skeleton.Ball {
			low = append(low, 0, -1, -1, -1)
			high = append(high, 2*math.Pi, 1, 1, 1)
			continue
		}
		low = append(low, math.Inf(-1))
		high = append(high, math.Inf(1))
	}
	return Spec{Kind: Action, Low: mat.NewVecDense(n, low), High: mat.NewVecDense(n, high)}
}

func (e *Env) observe() (*mat.VecDense, error) {
	state, err := e.ctrl.State()
	if err != nil {
		return nil, fmt.Errorf("env: observe: %w", err)
	}
	return mat.NewVecDense(len(state), state), nil
}

func (e *Env) notify(ts TimeStep) {
	for _, fn := range e.observers {
		fn(ts)
	}
}
