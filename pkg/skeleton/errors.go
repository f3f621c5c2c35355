package skeleton

import (
	"errors"
	"fmt"
)

// ErrUnknownJoint matches any UnknownJointError via errors.Is.
var ErrUnknownJoint = errors.New("skeleton: unknown joint")

// UnknownJointError reports a joint name absent from the configuration.
type UnknownJointError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownJointError) Error() string {
	return fmt.Sprintf("skeleton: unknown joint %q", e.Name)
}

// Is reports whether target is ErrUnknownJoint.
func (e *UnknownJointError) Is(target error) bool {
	return target == ErrUnknownJoint
}
