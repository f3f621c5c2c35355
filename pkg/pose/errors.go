package pose

import (
	"errors"
	"fmt"
)

// ErrDimension matches any DimensionError via errors.Is.
var ErrDimension = errors.New("pose: dimension mismatch")

// DimensionError reports a vector or record whose length does not match the
// joint configuration.
type DimensionError struct {
	// What names the vector being checked.
	What string

	Want int
	Got  int
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("pose: %s has %d values, want %d", e.What, e.Got, e.Want)
}

// Is reports whether target is ErrDimension.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimension
}
