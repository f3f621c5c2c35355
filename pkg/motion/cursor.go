package motion

import "math"

// Cursor addresses a point in a clip as a keyframe pair and a blend fraction.
type Cursor struct {
	// Frame is the keyframe at or before the resolved time.
	Frame int

	// Next is the keyframe blended towards. It equals Frame on the last
	// keyframe, which is held rather than wrapped.
	Next int

	// Fraction is the blend position between Frame and Next, in [0, 1).
	Fraction float64
}

// Locate resolves simulation time t into a cursor, looping the clip every
// CycleDuration. Negative times wrap backwards into the clip. Non-finite
// times resolve to the first frame.
func (c *Clip) Locate(t float64) Cursor {
	cycle := c.CycleDuration()
	if !(cycle > 0) || math.IsNaN(t) || math.IsInf(t, 0) {
		return Cursor{}
	}
	frameDuration := c.FrameDuration()

	// math.Mod is exact, so t and t+k*cycle land on the same frame time
	frameTime := math.Mod(t, cycle)
	if frameTime < 0 {
		frameTime += cycle
	}

	last := c.FrameCount() - 1
	frame := int(frameTime / frameDuration)
	if frame < 0 {
		frame = 0
	}
	if frame > last {
		frame = last
	}
	next := frame + 1
	if next > last {
		next = frame
	}

	fraction := (frameTime - float64(frame)*frameDuration) / frameDuration
	if next == frame || fraction < 0 {
		fraction = 0
	}
	if fraction >= 1 {
		fraction = math.Nextafter(1, 0)
	}

	return Cursor{
		Frame:    frame,
		Next:     next,
		Fraction: fraction,
	}
}

// Phase returns how far t is through the current cycle, in [0, 1).
func (c *Clip) Phase(t float64) float64 {
	cycle := c.CycleDuration()
	if !(cycle > 0) || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0
	}

	phase := math.Mod(t/cycle, 1.0)
	if phase < 0 {
		phase++
	}
	// -tiny + 1 rounds to exactly 1.0
	if phase >= 1 {
		phase = 0
	}
	return phase
}
