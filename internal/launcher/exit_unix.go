// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package launcher

import (
	"os"
	"syscall"

	"github.com/cadstart/cadstart/pkg/types"
)

var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

// exitCodeOf maps a finished process to its exit code. Death by signal is
// reported the way POSIX shells do: 128 plus the signal number.
func exitCodeOf(ps *os.ProcessState) types.ExitCode {
	if ps == nil {
		return types.ExitFailure
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return types.ExitCode(128 + int(ws.Signal()))
	}
	return types.ExitCode(ps.ExitCode())
}
