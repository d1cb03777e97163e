// SPDX-License-Identifier: MPL-2.0

package launcher

// State is a launcher lifecycle state.
type State int

const (
	// StateIdle is a launcher that has not been run.
	StateIdle State = iota
	// StateActivating is resolving and activating the environment.
	StateActivating
	// StateLaunching is preparing and starting the executable.
	StateLaunching
	// StateRunning waits for the started executable to exit.
	StateRunning
	// StateTerminated is final; ExitCode holds the result.
	StateTerminated
)

// TransitionFunc observes state changes. It runs synchronously on the
// goroutine calling Run.
type TransitionFunc func(from, to State)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActivating:
		return "activating"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
