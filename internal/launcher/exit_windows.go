// SPDX-License-Identifier: MPL-2.0

//go:build windows

package launcher

import (
	"os"

	"github.com/cadstart/cadstart/pkg/types"
)

var interruptSignals = []os.Signal{os.Interrupt}

// exitCodeOf returns the process exit code as reported by Windows, folded
// into 0-255. NTSTATUS codes such as STATUS_CONTROL_C_EXIT keep their low
// byte.
func exitCodeOf(ps *os.ProcessState) types.ExitCode {
	if ps == nil {
		return types.ExitFailure
	}
	return types.ExitCode(ps.ExitCode()).Normalize()
}
