// SPDX-License-Identifier: MPL-2.0

// Package launcher runs the application server inside an activated conda
// environment and propagates its exit status.
//
// A Launcher is single-shot. Run resolves the descriptor, activates the
// environment, looks the executable up on the activated PATH, and blocks
// until the child exits. The child inherits the launcher's standard streams
// and its process group, so Ctrl+C reaches the server directly; the launcher
// itself never kills the child.
package launcher
