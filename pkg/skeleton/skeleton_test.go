package skeleton

import (
	"errors"
	"testing"
)

func TestHumanoid_Layout(t *testing.T) {
	h := Humanoid()

	if h.Len() != 12 {
		t.Fatalf("Expected 12 joints, got %d", h.Len())
	}
	if h.RecordSize() != HumanoidRecordWidth {
		t.Errorf("RecordSize: got %d, want %d", h.RecordSize(), HumanoidRecordWidth)
	}
	// 8 ball joints * 4 + 4 hinge joints * 1
	if h.ActionSize() != 36 {
		t.Errorf("ActionSize: got %d, want 36", h.ActionSize())
	}

	knee, err := h.Lookup("rightKnee")
	if err != nil {
		t.Fatalf("Lookup(rightKnee) failed: %v", err)
	}
	if knee.DoF != Hinge || knee.Index != 10 || knee.MaxForce != 150 {
		t.Errorf("Unexpected rightKnee spec: %+v", knee)
	}
	if knee.Weight != HumanoidJointWeights[10] {
		t.Errorf("rightKnee weight: got %v, want %v", knee.Weight, HumanoidJointWeights[10])
	}
	if knee.Gain != DefaultGain {
		t.Errorf("rightKnee gain: got %v, want %v", knee.Gain, DefaultGain)
	}
}

func TestJointSet_UnknownJoint(t *testing.T) {
	h := Humanoid()

	_, err := h.Slot("tail")
	if err == nil {
		t.Fatal("Expected error for unknown joint")
	}
	if !errors.Is(err, ErrUnknownJoint) {
		t.Errorf("Expected ErrUnknownJoint, got %v", err)
	}

	var uj *UnknownJointError
	if !errors.As(err, &uj) || uj.Name != "tail" {
		t.Errorf("Expected UnknownJointError for tail, got %v", err)
	}
}

func TestNewJointSet_Validation(t *testing.T) {
	tests := []struct {
		name  string
		specs []JointSpec
	}{
		{"empty", nil},
		{"no name", []JointSpec{{Index: 1, DoF: Hinge}}},
		{"bad dof", []JointSpec{{Name: "a", Index: 1}}},
		{"duplicate name", []JointSpec{{Name: "a", Index: 1, DoF: Hinge}, {Name: "a", Index: 2, DoF: Ball}}},
		{"duplicate index", []JointSpec{{Name: "a", Index: 1, DoF: Hinge}, {Name: "b", Index: 1, DoF: Ball}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewJointSet(tc.specs); err == nil {
				t.Errorf("Expected error for %s", tc.name)
			}
		})
	}
}

func TestJointSet_With(t *testing.T) {
	h := Humanoid()
	zero := 0.0

	tuned, err := h.With(map[string]Override{
		"neck": {MaxForce: 75, Gain: 0.1, Weight: &zero},
	})
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}

	neck, _ := tuned.Lookup("neck")
	if neck.MaxForce != 75 || neck.Gain != 0.1 || neck.Weight != 0 {
		t.Errorf("Override not applied: %+v", neck)
	}

	// Original set is untouched
	orig, _ := h.Lookup("neck")
	if orig.MaxForce != 50 {
		t.Errorf("Original set mutated: %+v", orig)
	}

	if _, err := h.With(map[string]Override{"wing": {MaxForce: 1}}); !errors.Is(err, ErrUnknownJoint) {
		t.Errorf("Expected ErrUnknownJoint for override of unknown joint, got %v", err)
	}
}

func TestJointSet_ByIndex(t *testing.T) {
	h := Humanoid()

	spec, ok := h.ByIndex(HumanoidLeftAnkle)
	if !ok || spec.Name != "leftAnkle" {
		t.Errorf("ByIndex(%d): got %+v, %v", HumanoidLeftAnkle, spec, ok)
	}
	if _, ok := h.ByIndex(HumanoidRightWrist); ok {
		t.Error("Wrist is fixed and should not be in the joint set")
	}
}

func TestDoF_Sizes(t *testing.T) {
	if Hinge.PositionSize() != 1 || Hinge.RateSize() != 1 || Hinge.ActionSize() != 1 {
		t.Error("Hinge sizes should all be 1")
	}
	if Ball.PositionSize() != 4 || Ball.RateSize() != 3 || Ball.ActionSize() != 4 {
		t.Error("Ball sizes should be 4/3/4")
	}
	if Ball.String() != "ball" || Hinge.String() != "hinge" || DoF(0).String() != "unknown" {
		t.Error("Unexpected DoF names")
	}
}
