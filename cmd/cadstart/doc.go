// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for cadstart.
//
// The root command (and its explicit alias "launch") resolves and activates
// the conda environment and runs the application server in the foreground.
// The "image" commands build the container image, "env" reports which
// activation candidate resolves on this host, and "config" manages the
// optional configuration file.
package cmd
