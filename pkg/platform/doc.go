// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities used when
// probing conda installs and naming executables on the host.
package platform
