package loop

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ways a run can end badly.
var (
	// ErrConnect is returned when the startup connection to the car fails.
	ErrConnect = errors.New("loop: could not connect to the car")

	// ErrFrame is returned when a frame cannot be read, segmented or shown.
	ErrFrame = errors.New("loop: frame retrieval failed (check connection/address)")

	// ErrDispatch is returned under the fatal dispatch policy.
	ErrDispatch = errors.New("loop: dispatch failed")
)

// StopError records the state the loop was in when it failed.
type StopError struct {
	State State
	Cause error
}

// Error implements the error interface.
func (e *StopError) Error() string {
	return fmt.Sprintf("loop stopped while %s: %v", e.State, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StopError) Unwrap() error {
	return e.Cause
}
