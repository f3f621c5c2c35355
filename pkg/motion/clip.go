// Package motion holds reference motion-capture clips and resolves
// simulation time into keyframe pairs.
//
// A clip is a list of fixed-length keyframe records. Each record starts with
// the frame duration dt, followed by the root position, the root rotation and
// the joint rotations in the joint set's order. Clips are loaded once and are
// read-only afterwards.
package motion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/teslashibe/go-mimic/internal/httpc"
)

// Clip is an immutable keyframe sequence.
type Clip struct {
	name   string
	frames [][]float64
}

// clipData is the on-disk JSON layout of a motion file.
type clipData struct {
	Frames *[][]float64 `json:"Frames"`
}

// Parse decodes a motion clip from JSON data.
func Parse(name string, data []byte) (*Clip, error) {
	var raw clipData
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Source: name, Reason: "malformed motion JSON", Err: err}
	}
	if raw.Frames == nil {
		return nil, &FormatError{Source: name, Reason: "missing Frames"}
	}
	return NewClip(name, *raw.Frames)
}

// Load decodes a motion clip from r.
func Load(name string, r io.Reader) (*Clip, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("motion: read %s: %w", name, err)
	}
	return Parse(name, data)
}

// LoadFile loads a motion clip from a JSON file on disk. The clip is named
// after the file without its extension.
func LoadFile(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("motion: failed to read clip file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, data)
}

// LoadURL fetches a motion clip over HTTP. The clip is named after the last
// path element without its extension.
func LoadURL(ctx context.Context, rawURL string) (*Clip, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("motion: invalid clip URL: %w", err)
	}
	data, err := httpc.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("motion: failed to fetch clip: %w", err)
	}

	name := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	return Parse(name, data)
}

// Open loads a clip from an http(s) URL or a file path.
func Open(ctx context.Context, location string) (*Clip, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return LoadURL(ctx, location)
	}
	return LoadFile(location)
}

// NewClip validates frames and wraps them in a Clip. The frames are copied.
//
// Every frame must have the same length. Only the first frame's dt is used
// for timing; later frames are not checked (see ValidateTimestep).
func NewClip(name string, frames [][]float64) (*Clip, error) {
	if len(frames) == 0 {
		return nil, &FormatError{Source: name, Reason: "clip has no frames"}
	}

	width := len(frames[0])
	if width == 0 {
		return nil, &FormatError{Source: name, Reason: "frame 0 is empty"}
	}

	copied := make([][]float64, len(frames))
	for i, f := range frames {
		if len(f) != width {
			return nil, &FormatError{
				Source: name,
				Reason: fmt.Sprintf("frame %d has %d values, frame 0 has %d", i, len(f), width),
			}
		}
		copied[i] = append([]float64(nil), f...)
	}

	if dt := copied[0][0]; !(dt > 0) || math.IsInf(dt, 0) {
		return nil, &FormatError{Source: name, Reason: fmt.Sprintf("invalid frame duration %v", dt)}
	}

	return &Clip{name: name, frames: copied}, nil
}

// Name returns the clip's identifier.
func (c *Clip) Name() string {
	return c.name
}

// FrameCount returns the number of keyframes.
func (c *Clip) FrameCount() int {
	return len(c.frames)
}

// FrameLen returns the length of every keyframe record.
func (c *Clip) FrameLen() int {
	return len(c.frames[0])
}

// FrameDuration returns the first frame's dt. The clip assumes dt is constant.
func (c *Clip) FrameDuration() float64 {
	return c.frames[0][0]
}

// CycleDuration returns the time taken to play the clip once.
func (c *Clip) CycleDuration() float64 {
	return c.FrameDuration() * float64(c.FrameCount()-1)
}

// Frame returns a copy of keyframe i. It panics if i is out of range.
func (c *Clip) Frame(i int) []float64 {
	return append([]float64(nil), c.frames[i]...)
}

// frame returns keyframe i without copying; callers must not modify it.
func (c *Clip) frame(i int) []float64 {
	return c.frames[i]
}

// Pair returns the keyframes addressed by a cursor. The slices are shared
// with the clip and must not be modified.
func (c *Clip) Pair(cur Cursor) (a, b []float64) {
	return c.frame(cur.Frame), c.frame(cur.Next)
}

// ValidateTimestep checks that every frame's dt matches the first within tol.
// Loading never calls this; it is for callers that want the stricter check.
func (c *Clip) ValidateTimestep(tol float64) error {
	dt := c.FrameDuration()
	for i, f := range c.frames {
		if math.Abs(f[0]-dt) > tol {
			return &FormatError{
				Source: c.name,
				Reason: fmt.Sprintf("frame %d has dt %v, clip uses %v", i, f[0], dt),
			}
		}
	}
	return nil
}
