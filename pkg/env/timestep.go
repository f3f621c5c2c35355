package env

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-mimic/pkg/reward"
)

// StepType marks where a TimeStep falls in its episode.
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

// String returns the step type name.
func (s StepType) String() string {
	switch s {
	case First:
		return "first"
	case Mid:
		return "mid"
	case Last:
		return "last"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s StepType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TimeStep is the outcome of Reset or Step.
type TimeStep struct {
	EpisodeID uuid.UUID `json:"episode"`
	StepType  StepType  `json:"type"`
	Number    int       `json:"step"`
	Time      float64   `json:"time"`
	Phase     float64   `json:"phase"`
	Reward    float64   `json:"reward"`

	Breakdown reward.Breakdown `json:"breakdown"`

	Observation *mat.VecDense `json:"-"`

	// Terminated is set when a disallowed body part touched the ground.
	Terminated bool `json:"terminated"`

	// Truncated is set when the step limit ended the episode.
	Truncated bool `json:"truncated"`
}

// First reports whether ts starts an episode.
func (ts TimeStep) First() bool { return ts.StepType == First }

// Last reports whether ts ends an episode.
func (ts TimeStep) Last() bool { return ts.StepType == Last }

// SpecKind says which vector a Spec describes.
type SpecKind int

const (
	Observation SpecKind = iota
	Action
)

// Spec gives the length and bounds of an observation or action vector.
type Spec struct {
	Kind SpecKind
	Low  *mat.VecDense
	High *mat.VecDense
}

// Len returns the vector length.
func (s Spec) Len() int {
	return s.Low.Len()
}
