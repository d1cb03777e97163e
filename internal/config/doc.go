// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/cadstart/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/cadstart/config.cue on macOS, %APPDATA%\cadstart\config.cue
// on Windows), falling back to ./config.cue and then to compiled-in defaults. Every key
// can be overridden with a CADSTART_ environment variable, e.g. CADSTART_BIND_PORT or
// CADSTART_CONTAINER_ENGINE.
//
// The file is validated against an embedded CUE schema (config_schema.cue) before it
// reaches Viper, so type errors are reported with the offending field path.
package config
