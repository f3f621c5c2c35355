package motion

import (
	"errors"
	"fmt"
)

// ErrFormat matches any FormatError via errors.Is.
var ErrFormat = errors.New("motion: invalid motion data")

// FormatError reports malformed or incomplete motion data.
type FormatError struct {
	// Source names the clip or file being loaded, if known.
	Source string

	// Reason describes what was wrong.
	Reason string

	// Err is the underlying decode error, if any.
	Err error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	msg := "motion: " + e.Reason
	if e.Source != "" {
		msg = fmt.Sprintf("motion [%s]: %s", e.Source, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}
