// SPDX-License-Identifier: MPL-2.0

package envresolve

import (
	"errors"
	"fmt"
	"strings"
)

// ErrResolution is the sentinel wrapped by ResolutionError.
var ErrResolution = errors.New("environment resolution failed")

type (
	// Attempt records one probed candidate and the probe outcome.
	Attempt struct {
		Candidate Candidate
		// Err is set when the probe itself failed (e.g. permission denied)
		// rather than reporting a clean "not found".
		Err error
	}

	// ResolutionError is returned when no candidate location exists.
	// Attempts is empty when the candidate list itself was empty.
	ResolutionError struct {
		Environment string
		Attempts    []Attempt
	}
)

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("no activation path found for environment %q: no candidate locations configured", e.Environment)
	}
	paths := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		paths = append(paths, string(a.Candidate.Path))
	}
	return fmt.Sprintf("no activation path found for environment %q: none of %d candidate(s) exist: %s",
		e.Environment, len(e.Attempts), strings.Join(paths, ", "))
}

// Unwrap returns ErrResolution for errors.Is() compatibility.
func (e *ResolutionError) Unwrap() error { return ErrResolution }
