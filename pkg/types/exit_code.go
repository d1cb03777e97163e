// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// ExitSuccess is the exit status of a clean run.
	ExitSuccess ExitCode = 0
	// ExitFailure is the exit status used when the launcher itself fails
	// (resolution, activation or launch) before a child exit code exists.
	ExitFailure ExitCode = 1
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// Normalize folds an arbitrary platform status into the 0-255 range the
// invoking shell observes. Windows reports 32-bit statuses; POSIX shells
// only ever see the low byte.
func (c ExitCode) Normalize() ExitCode {
	if c.Validate() == nil {
		return c
	}
	return c & 0xff
}

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
