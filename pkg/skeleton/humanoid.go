package skeleton

// Chain indices of the reference humanoid's links that matter outside the
// actuated joint table.
const (
	HumanoidRoot        = 0
	HumanoidRightWrist  = 5
	HumanoidLeftWrist   = 8
	HumanoidRightAnkle  = 11
	HumanoidLeftAnkle   = 14
	HumanoidLinkCount   = 15
	HumanoidRecordWidth = 44
)

// HumanoidJointWeights is the reward importance of each chain index of the
// reference humanoid. Entries for the root and the fixed wrist links are kept
// so the table lines up with the chain.
var HumanoidJointWeights = [HumanoidLinkCount]float64{
	0.20833, 0.10416, 0.0625, 0.10416,
	0.0625, 0.041666666666666671, 0.0625, 0.0416,
	0.00, 0.10416, 0.0625, 0.0416, 0.0625, 0.0416, 0.0000,
}

// HumanoidObservationOrder maps observation slots to chain indices.
var HumanoidObservationOrder = []int{0, 1, 2, 9, 10, 11, 3, 4, 5, 12, 13, 14, 6, 7, 8}

// HumanoidAllowedContacts lists the links allowed to touch the ground.
var HumanoidAllowedContacts = []int{HumanoidRightAnkle, HumanoidLeftAnkle}

// HumanoidEndEffectors lists the links scored by the end-effector term.
var HumanoidEndEffectors = []int{HumanoidRightWrist, HumanoidLeftWrist, HumanoidRightAnkle, HumanoidLeftAnkle}

// humanoidSpecs is the joint order used by the reference motion files.
var humanoidSpecs = []JointSpec{
	{Name: "chest", Index: 1, DoF: Ball, MaxForce: 200},
	{Name: "neck", Index: 2, DoF: Ball, MaxForce: 50},
	{Name: "rightHip", Index: 9, DoF: Ball, MaxForce: 200},
	{Name: "rightKnee", Index: 10, DoF: Hinge, MaxForce: 150},
	{Name: "rightAnkle", Index: 11, DoF: Ball, MaxForce: 90},
	{Name: "rightShoulder", Index: 3, DoF: Ball, MaxForce: 100},
	{Name: "rightElbow", Index: 4, DoF: Hinge, MaxForce: 60},
	{Name: "leftHip", Index: 12, DoF: Ball, MaxForce: 200},
	{Name: "leftKnee", Index: 13, DoF: Hinge, MaxForce: 150},
	{Name: "leftAnkle", Index: 14, DoF: Ball, MaxForce: 90},
	{Name: "leftShoulder", Index: 6, DoF: Ball, MaxForce: 100},
	{Name: "leftElbow", Index: 7, DoF: Hinge, MaxForce: 60},
}

// Humanoid returns the reference humanoid joint set.
func Humanoid() *JointSet {
	specs := make([]JointSpec, len(humanoidSpecs))
	for i, spec := range humanoidSpecs {
		spec.Gain = DefaultGain
		spec.Weight = HumanoidJointWeights[spec.Index]
		specs[i] = spec
	}

	set, err := NewJointSet(specs)
	if err != nil {
		panic("skeleton: invalid humanoid table: " + err.Error())
	}
	return set
}
