package reward

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/physics"
	"github.com/teslashibe/go-mimic/pkg/pose"
	"github.com/teslashibe/go-mimic/pkg/quat"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func testJoints(t *testing.T) *skeleton.JointSet {
	t.Helper()
	joints, err := skeleton.NewJointSet([]skeleton.JointSpec{
		{Name: "hip", Index: 1, DoF: skeleton.Ball, MaxForce: 200, Weight: 0.5},
		{Name: "knee", Index: 2, DoF: skeleton.Hinge, MaxForce: 150, Weight: 0.25},
	})
	if err != nil {
		t.Fatalf("NewJointSet: %v", err)
	}
	return joints
}

// testConfig scores both test joints as end effectors.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.EndEffectors = []int{1, 2}
	return cfg
}

// newBody returns a body posed with the given hip rotation and knee angle.
func newBody(t *testing.T, id int, hip mgl64.Quat, knee float64) *physics.KinematicBody {
	t.Helper()
	b := physics.NewKinematicBody(id, 3)
	if err := b.ResetBasePose(mgl64.Vec3{0, 0.9, 0}, quat.Identity()); err != nil {
		t.Fatal(err)
	}
	if err := b.ResetJointState(1, []float64{hip.W, hip.V[0], hip.V[1], hip.V[2]}, []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatal(err)
	}
	if err := b.ResetJointState(2, []float64{knee}, []float64{1}); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestWeights_Normalized(t *testing.T) {
	w, err := DefaultWeights().Normalized()
	if err != nil {
		t.Fatalf("Normalized: %v", err)
	}
	sum := w.Pose + w.Velocity + w.EndEffector + w.Root + w.COM
	if !floatEquals(sum, 1) {
		t.Errorf("sum = %v, want 1", sum)
	}
	if !floatEquals(w.Pose, 0.5/0.65) {
		t.Errorf("Pose = %v, want %v", w.Pose, 0.5/0.65)
	}

	tests := []struct {
		name string
		w    Weights
	}{
		{"all zero", Weights{}},
		{"negative", Weights{Pose: 1, Velocity: -0.5}},
		{"nan", Weights{Pose: math.NaN()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.w.Normalized(); !errors.Is(err, ErrInvalidWeights) {
				t.Errorf("expected ErrInvalidWeights, got %v", err)
			}
		})
	}
}

func TestCompute_IdenticalBodiesScoreOne(t *testing.T) {
	r, err := New(testJoints(t), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hip := quat.FromAxisAngle(mgl64.Vec3{1, 0, 0}, 0.4)
	sim := newBody(t, 1, hip, 0.3)
	ghost := newBody(t, 2, hip.Scale(-1), 0.3)

	got, err := r.Compute(sim, ghost)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !floatEquals(got, 1) {
		t.Errorf("reward = %v, want 1", got)
	}
}

func TestEvaluate_PoseError(t *testing.T) {
	r, err := New(testJoints(t), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sim := newBody(t, 1, quat.FromAxisAngle(mgl64.Vec3{0, 0, 1}, 0.2), 0.5)
	ghost := newBody(t, 2, quat.Identity(), 0)

	b, err := r.Evaluate(sim, ghost)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	wantPoseErr := 0.5*0.2*0.2 + 0.25*0.5*0.5
	if math.Abs(b.PoseErr-wantPoseErr) > 1e-7 {
		t.Errorf("PoseErr = %v, want %v", b.PoseErr, wantPoseErr)
	}
	if b.VelocityErr != 0 {
		t.Errorf("VelocityErr = %v, want 0", b.VelocityErr)
	}

	w := r.Weights()
	want := w.Pose*math.Exp(-2*b.PoseErr) + w.Velocity + w.COM
	if !floatEquals(b.Total, want) {
		t.Errorf("Total = %v, want %v", b.Total, want)
	}
	if b.Total >= 1 {
		t.Errorf("Total = %v, want < 1", b.Total)
	}
}

// The COM term follows root linear velocity rather than staying at 1.
func TestEvaluate_COMTermTracksRootVelocityMismatch(t *testing.T) {
	r, err := New(testJoints(t), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sim := newBody(t, 1, quat.Identity(), 0)
	ghost := newBody(t, 2, quat.Identity(), 0)
	_ = ghost.ResetJointState(2, []float64{0}, []float64{3})
	_ = ghost.ResetBaseVelocity(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{})

	b, err := r.Evaluate(sim, ghost)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// knee: 0.25 * (1-3)^2
	if !floatEquals(b.VelocityErr, 1) {
		t.Errorf("VelocityErr = %v, want 1", b.VelocityErr)
	}
	if !floatEquals(b.COMErr, 0.4) {
		t.Errorf("COMErr = %v, want 0.4", b.COMErr)
	}
	if !floatEquals(b.COMReward, math.Exp(-4)) {
		t.Errorf("COMReward = %v, want %v", b.COMReward, math.Exp(-4))
	}

	_ = sim.ResetBaseVelocity(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{})
	matched, err := r.Evaluate(sim, ghost)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !floatEquals(matched.COMReward, 1) {
		t.Errorf("COMReward with matching root velocity = %v, want 1", matched.COMReward)
	}
	if matched.Total <= b.Total {
		t.Errorf("Total = %v, want > %v once root velocities match", matched.Total, b.Total)
	}
}

// Only pose, velocity and center of mass feed the total under the default
// weights; end-effector and root errors are reported but ignored.
func TestEvaluate_ZeroWeightedTermsDoNotAffectTotal(t *testing.T) {
	r, err := New(testJoints(t), Config{
		Weights:      DefaultWeights(),
		Scales:       DefaultScales(),
		EndEffectors: []int{2},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sim := newBody(t, 1, quat.Identity(), 0)
	ghost := newBody(t, 2, quat.Identity(), 0)
	_ = ghost.ResetBasePose(mgl64.Vec3{3, 0.5, -1}, quat.FromAxisAngle(mgl64.Vec3{1, 0, 0}, 0.6))
	_ = ghost.SetLinkOffset(2, mgl64.Vec3{0, -0.4, 0.2})

	b, err := r.Evaluate(sim, ghost)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if b.EndEffectorErr <= 0 {
		t.Errorf("EndEffectorErr = %v, want > 0", b.EndEffectorErr)
	}
	if b.RootErr <= 0 {
		t.Errorf("RootErr = %v, want > 0", b.RootErr)
	}
	if b.EndEffectorReward >= 1 || b.RootReward >= 1 {
		t.Errorf("sub-rewards = %v, %v, want < 1", b.EndEffectorReward, b.RootReward)
	}
	if !floatEquals(b.Total, 1) {
		t.Errorf("Total = %v, want 1", b.Total)
	}

	// Turning the root term on makes the same mismatch count
	cfg := testConfig()
	cfg.Weights.Root = 0.2
	weighted, err := New(testJoints(t), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := weighted.Compute(sim, ghost)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got >= 1 {
		t.Errorf("weighted reward = %v, want < 1", got)
	}
}

func TestEvaluate_RootError(t *testing.T) {
	sim := rootState{pos: mgl64.Vec3{0, 1, 0}, orn: quat.Identity()}
	ghost := rootState{
		pos:    mgl64.Vec3{1, 1, 0},
		orn:    quat.FromAxisAngle(mgl64.Vec3{0, 1, 0}, 0.5),
		linVel: mgl64.Vec3{0, 0, 2},
		angVel: mgl64.Vec3{10, 0, 0},
	}
	want := 1 + 0.1*0.25 + 0.01*4 + 0.001*100
	if got := rootError(sim, ghost); math.Abs(got-want) > 1e-7 {
		t.Errorf("rootError = %v, want %v", got, want)
	}
}

func TestEvaluate_DimensionMismatch(t *testing.T) {
	r, err := New(testJoints(t), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sim := physics.NewKinematicBody(1, 3)
	ghost := newBody(t, 2, quat.Identity(), 0)

	if _, err := r.Compute(sim, ghost); !errors.Is(err, pose.ErrDimension) {
		t.Errorf("expected ErrDimension, got %v", err)
	}
}

func TestEvaluate_CollaboratorErrorsPropagate(t *testing.T) {
	joints, err := skeleton.NewJointSet([]skeleton.JointSpec{
		{Name: "far", Index: 9, DoF: skeleton.Hinge, Weight: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(joints, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Compute(physics.NewKinematicBody(1, 3), physics.NewKinematicBody(2, 3))
	if !errors.Is(err, physics.ErrLinkIndex) {
		t.Errorf("expected ErrLinkIndex, got %v", err)
	}
}
