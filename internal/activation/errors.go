// SPDX-License-Identifier: MPL-2.0

package activation

import (
	"errors"
	"fmt"
)

// ErrActivation is the sentinel matched by ActivationError.
var ErrActivation = errors.New("environment activation failed")

// ActivationError is returned when a resolved location exists but the named
// environment cannot be activated from it (missing, corrupted, or partially
// installed environment, or a failing activation hook).
type ActivationError struct {
	Environment string
	Path        string
	Err         error
}

// Error implements the error interface.
func (e *ActivationError) Error() string {
	return fmt.Sprintf("activate environment %q via %s: %v", e.Environment, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ActivationError) Unwrap() error { return e.Err }

// Is reports ErrActivation as a match so callers can test the category
// without losing the cause chain.
func (e *ActivationError) Is(target error) bool { return target == ErrActivation }
