// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// ExecutableName returns name with the host executable suffix applied.
// On Windows a missing ".exe" is appended; elsewhere name is returned as-is.
func ExecutableName(name, goos string) string {
	if goos == Windows && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}
