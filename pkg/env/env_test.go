package env

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-mimic/pkg/character"
	"github.com/teslashibe/go-mimic/pkg/motion"
	"github.com/teslashibe/go-mimic/pkg/physics"
	"github.com/teslashibe/go-mimic/pkg/pose"
	"github.com/teslashibe/go-mimic/pkg/reward"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

const simID = 1

type fixture struct {
	env  *Env
	sim  *physics.KinematicBody
	seen []TimeStep
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	joints, err := skeleton.NewJointSet([]skeleton.JointSpec{
		{Name: "hip", Index: 1, DoF: skeleton.Ball, MaxForce: 200, Weight: 0.5},
		{Name: "knee", Index: 2, DoF: skeleton.Hinge, MaxForce: 150, Weight: 0.25},
	})
	require.NoError(t, err)

	clip, err := motion.NewClip("walk", [][]float64{
		{0.05, 0, 1, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0},
		{0.05, 0.1, 1, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0.2},
		{0.05, 0.2, 1, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0.4},
	})
	require.NoError(t, err)

	sim := physics.NewKinematicBody(simID, 3)
	ctrl, err := character.New(clip, joints, sim, character.Options{
		AllowedContacts: []int{2},
	})
	require.NoError(t, err)

	r, err := reward.New(joints, reward.Config{Weights: reward.DefaultWeights(), Scales: reward.DefaultScales()})
	require.NoError(t, err)

	f := &fixture{sim: sim}
	e, first, err := New(ctrl, r, sim, cfg, WithObserver(func(ts TimeStep) {
		f.seen = append(f.seen, ts)
	}))
	require.NoError(t, err)
	require.True(t, first.First())
	f.env = e
	return f
}

func TestNew_InvalidTimestep(t *testing.T) {
	_, _, err := New(nil, nil, nil, Config{Timestep: 0})
	assert.Error(t, err)
}

func TestReset_FirstStep(t *testing.T) {
	f := newFixture(t, Config{Timestep: 0.01, Substeps: 2, MaxSteps: 10})

	ts := f.env.CurrentTimeStep()
	assert.Equal(t, First, ts.StepType)
	assert.Equal(t, 0, ts.Number)
	assert.Equal(t, f.env.Episode(), ts.EpisodeID)
	assert.Equal(t, f.env.ObservationSpec().Len(), ts.Observation.Len())
	assert.Len(t, f.seen, 1)
}

func TestStep_FollowsReference(t *testing.T) {
	f := newFixture(t, Config{Timestep: 0.01, Substeps: 2, MaxSteps: 10})

	action, err := f.env.ReferenceAction()
	require.NoError(t, err)

	ts, err := f.env.Step(action)
	require.NoError(t, err)
	assert.Equal(t, Mid, ts.StepType)
	assert.Equal(t, 1, ts.Number)
	assert.InDelta(t, 0.02, ts.Time, 1e-12)
	assert.Greater(t, ts.Reward, 0.0)
	assert.LessOrEqual(t, ts.Reward, 1.0)
	assert.InDelta(t, ts.Breakdown.Total, ts.Reward, 1e-15)
	assert.False(t, ts.Terminated)
	assert.Len(t, f.seen, 2)

	// The sim's knee reached the target from t=0 while the reference moved on
	js, err := f.sim.JointState(2)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, js.Position[0], 1e-12)
	assert.Greater(t, ts.Breakdown.PoseErr, 0.0)
}

func TestStep_RejectsBadActions(t *testing.T) {
	f := newFixture(t, Config{Timestep: 0.01, Substeps: 1})

	_, err := f.env.Step(mat.NewVecDense(3, nil))
	assert.True(t, errors.Is(err, pose.ErrDimension), "got %v", err)

	_, err = f.env.Step(nil)
	assert.True(t, errors.Is(err, pose.ErrDimension), "got %v", err)
	assert.Equal(t, 0, f.env.CurrentTimeStep().Number)

	bad := mat.NewVecDense(5, []float64{0, 1, 0, 0, math.NaN()})
	_, err = f.env.Step(bad)
	assert.True(t, errors.Is(err, ErrInvalidAction), "got %v", err)

	inf := mat.NewVecDense(5, []float64{0, 1, 0, 0, math.Inf(-1)})
	_, err = f.env.Step(inf)
	assert.True(t, errors.Is(err, ErrInvalidAction), "got %v", err)
}

func TestStep_TruncatesAtMaxSteps(t *testing.T) {
	f := newFixture(t, Config{Timestep: 0.01, Substeps: 1, MaxSteps: 3})
	first := f.env.Episode()

	var ts TimeStep
	for i := 0; i < 3; i++ {
		action, err := f.env.ReferenceAction()
		require.NoError(t, err)
		ts, err = f.env.Step(action)
		require.NoError(t, err)
	}
	assert.True(t, ts.Last())
	assert.True(t, ts.Truncated)
	assert.False(t, ts.Terminated)

	_, err := f.env.Step(mat.NewVecDense(5, nil))
	assert.True(t, errors.Is(err, ErrEpisodeOver))

	again, err := f.env.Reset()
	require.NoError(t, err)
	assert.True(t, again.First())
	assert.NotEqual(t, first, f.env.Episode())
}

func TestStep_TerminatesOnDisallowedContact(t *testing.T) {
	f := newFixture(t, Config{Timestep: 0.01, Substeps: 1, MaxSteps: 100})

	f.sim.SetContacts([]physics.Contact{{BodyA: simID, BodyB: 0, LinkA: 2, LinkB: -1}})
	action, err := f.env.ReferenceAction()
	require.NoError(t, err)
	ts, err := f.env.Step(action)
	require.NoError(t, err)
	assert.False(t, ts.Last(), "allowed contact ended the episode")

	f.sim.SetContacts([]physics.Contact{{BodyA: 0, BodyB: simID, LinkA: -1, LinkB: 1}})
	ts, err = f.env.Step(action)
	require.NoError(t, err)
	assert.True(t, ts.Last())
	assert.True(t, ts.Terminated)
	assert.False(t, ts.Truncated)
}

func TestActionSpec(t *testing.T) {
	f := newFixture(t, Config{Timestep: 0.01})

	spec := f.env.ActionSpec()
	assert.Equal(t, Action, spec.Kind)
	assert.Equal(t, 5, spec.Len())
	assert.InDelta(t, 2*math.Pi, spec.High.AtVec(0), 1e-12)
	assert.True(t, math.IsInf(spec.High.AtVec(4), 1))
}

func TestStepType_MarshalText(t *testing.T) {
	b, err := Last.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "last", string(b))
}
