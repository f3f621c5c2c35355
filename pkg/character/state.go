package character

import (
	"fmt"

	"github.com/teslashibe/go-mimic/pkg/quat"
)

// StateSize returns the length of the vector built by State.
func (c *Controller) StateSize() int {
	return 2 + 7*len(c.opts.ObservationOrder) + 6*len(c.opts.ObservationOrder)
}

// State builds the observation vector of the simulated body:
//
//	phase, root height,
//	per observed link: position relative to the root and orientation (w,x,y,z, w >= 0),
//	    both in the heading-aligned origin frame,
//	per observed link: world linear velocity, world angular velocity.
func (c *Controller) State() ([]float64, error) {
	state := make([]float64, 0, c.StateSize())
	state = append(state, c.Phase())

	originPos, originOrn, err := c.BuildOriginTransform()
	if err != nil {
		return nil, err
	}
	basePos, _, err := c.sim.BasePose()
	if err != nil {
		return nil, fmt.Errorf("character: base pose: %w", err)
	}
	rootRel := quat.Transform(originPos, originOrn, basePos)
	state = append(state, rootRel[1])

	for _, link := range c.opts.ObservationOrder {
		ls, err := c.sim.LinkState(link)
		if err != nil {
			return nil, fmt.Errorf("character: link %d: %w", link, err)
		}
		pos := quat.Transform(originPos, originOrn, ls.Position).Sub(rootRel)
		orn := quat.Canonical(originOrn.Mul(ls.Orientation))
		state = append(state, pos[0], pos[1], pos[2], orn.W, orn.V[0], orn.V[1], orn.V[2])
	}

	for _, link := range c.opts.ObservationOrder {
		ls, err := c.sim.LinkState(link)
		if err != nil {
			return nil, fmt.Errorf("character: link %d: %w", link, err)
		}
		state = append(state,
			ls.LinearVelocity[0], ls.LinearVelocity[1], ls.LinearVelocity[2],
			ls.AngularVelocity[0], ls.AngularVelocity[1], ls.AngularVelocity[2])
	}

	return state, nil
}
