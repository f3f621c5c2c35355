package web

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	contribws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-mimic/pkg/character"
	"github.com/teslashibe/go-mimic/pkg/hub"
	"github.com/teslashibe/go-mimic/pkg/quat"
)

// ClipInfo describes the served clip.
type ClipInfo struct {
	Name          string  `json:"name"`
	Frames        int     `json:"frames"`
	FrameLen      int     `json:"frame_len"`
	FrameDuration float64 `json:"frame_duration"`
	CycleDuration float64 `json:"cycle_duration"`
}

// JointInfo describes one joint slot.
type JointInfo struct {
	Name     string  `json:"name"`
	Index    int     `json:"index"`
	DoF      string  `json:"dof"`
	MaxForce float64 `json:"max_force"`
	Gain     float64 `json:"gain"`
	Weight   float64 `json:"weight"`
}

// JointSample is one joint's reference value and rate.
type JointSample struct {
	Name  string    `json:"name"`
	Value []float64 `json:"value"`
	Rate  []float64 `json:"rate"`
}

// PoseSample is the reference pose at a point in time.
type PoseSample struct {
	Time     float64 `json:"time"`
	Phase    float64 `json:"phase"`
	Frame    int     `json:"frame"`
	Next     int     `json:"next"`
	Fraction float64 `json:"fraction"`

	RootPos     [3]float64 `json:"root_pos"`
	RootRot     [4]float64 `json:"root_rot"`
	RootLinear  [3]float64 `json:"root_linear"`
	RootAngular [3]float64 `json:"root_angular"`

	Joints []JointSample `json:"joints"`
}

// SampleRequest asks /ws/sample for the pose at T.
type SampleRequest struct {
	T float64 `json:"t"`
}

// sample interpolates the clip at t.
func (s *Server) sample(t float64) (PoseSample, error) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return PoseSample{}, fmt.Errorf("time must be finite, got %v", t)
	}
	cur := s.clip.Locate(t)
	p, v, err := character.Sample(s.clip, s.codec, cur)
	if err != nil {
		return PoseSample{}, err
	}

	out := PoseSample{
		Time:        t,
		Phase:       s.clip.Phase(t),
		Frame:       cur.Frame,
		Next:        cur.Next,
		Fraction:    cur.Fraction,
		RootPos:     p.RootPos,
		RootRot:     quat.WXYZ(p.RootRot),
		RootLinear:  v.RootLinear,
		RootAngular: v.RootAngular,
		Joints:      make([]JointSample, len(p.Joints)),
	}
	joints := s.codec.Joints()
	for i := range p.Joints {
		out.Joints[i] = JointSample{
			Name:  joints.At(i).Name,
			Value: p.Joints[i].Components(),
			Rate:  v.Joints[i].Components(),
		}
	}
	return out, nil
}

func (s *Server) handleClip(c *fiber.Ctx) error {
	return c.JSON(ClipInfo{
		Name:          s.clip.Name(),
		Frames:        s.clip.FrameCount(),
		FrameLen:      s.clip.FrameLen(),
		FrameDuration: s.clip.FrameDuration(),
		CycleDuration: s.clip.CycleDuration(),
	})
}

func (s *Server) handleJoints(c *fiber.Ctx) error {
	joints := s.codec.Joints()
	out := make([]JointInfo, joints.Len())
	for i, spec := range joints.All() {
		out[i] = JointInfo{
			Name:     spec.Name,
			Index:    spec.Index,
			DoF:      spec.DoF.String(),
			MaxForce: spec.MaxForce,
			Gain:     spec.Gain,
			Weight:   spec.Weight,
		}
	}
	return c.JSON(out)
}

// handlePose returns the reference pose at ?t=, default 0.
func (s *Server) handlePose(c *fiber.Ctx) error {
	t := 0.0
	if raw := c.Query("t"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid t: " + raw})
		}
		t = v
	}

	out, err := s.sample(t)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(out)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

func (s *Server) handleHubStats(c *fiber.Ctx) error {
	return c.JSON(s.steps.Stats())
}

// handleStepsWS streams every observed step until the client disconnects.
func (s *Server) handleStepsWS(c *websocket.Conn) {
	client := hub.NewClient(s.steps, c)
	if client == nil {
		return
	}
	client.Run()
}

// sampleHandler answers SampleRequest messages with PoseSample replies.
func (s *Server) sampleHandler() fiber.Handler {
	return contribws.New(func(c *contribws.Conn) {
		defer c.Close()
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}

			var reply any
			var req SampleRequest
			if err := json.Unmarshal(data, &req); err != nil {
				reply = fiber.Map{"error": "invalid request: " + err.Error()}
			} else if out, err := s.sample(req.T); err != nil {
				reply = fiber.Map{"error": err.Error()}
			} else {
				reply = out
			}

			if err := c.WriteJSON(reply); err != nil {
				s.logger.Debug("sample write failed", "error", err)
				return
			}
		}
	})
}
