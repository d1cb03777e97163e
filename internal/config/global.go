// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride allows tests to override the config directory.
// os.UserHomeDir() does not reliably respect HOME on every platform.
var configDirOverride string

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride sets a custom config directory path.
// This is primarily intended for testing.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
