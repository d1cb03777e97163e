// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	"errors"
	"fmt"
)

var (
	// ErrLaunch is the sentinel matched by LaunchError.
	ErrLaunch = errors.New("launch failed")
	// ErrAlreadyRun is returned when Run is called on a used Launcher.
	ErrAlreadyRun = errors.New("launcher has already been run")
)

// LaunchError is returned when the environment is active but the executable
// cannot be found or started.
type LaunchError struct {
	Executable string
	Err        error
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Executable, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LaunchError) Unwrap() error { return e.Err }

// Is reports ErrLaunch as a match.
func (e *LaunchError) Is(target error) bool { return target == ErrLaunch }
