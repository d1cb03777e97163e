// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidBindPort is the sentinel error wrapped by InvalidBindPortError.
var ErrInvalidBindPort = errors.New("invalid bind port")

type (
	// BindPort represents the TCP port a launched server binds to.
	// Unlike an auto-selected listen port, a bind port is always explicit:
	// the zero value is invalid and values must be in the range 1-65535.
	BindPort int

	// InvalidBindPortError is returned when a BindPort is outside 1-65535.
	InvalidBindPortError struct {
		Value BindPort
	}
)

// String returns the decimal string representation of the BindPort.
func (p BindPort) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error if the BindPort is outside the valid range.
func (p BindPort) Validate() error {
	if p < 1 || p > 65535 {
		return &InvalidBindPortError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidBindPortError.
func (e *InvalidBindPortError) Error() string {
	return fmt.Sprintf("invalid bind port %d: must be 1-65535", e.Value)
}

// Unwrap returns ErrInvalidBindPort for errors.Is() compatibility.
func (e *InvalidBindPortError) Unwrap() error { return ErrInvalidBindPort }
