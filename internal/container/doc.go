// SPDX-License-Identifier: MPL-2.0

// Package container drives a local container engine (Docker or Podman) through
// its CLI for image builds.
//
// The Engine interface covers what the image builder needs: Build,
// ImageExists, RemoveImage, Version and Available. DockerEngine and
// PodmanEngine both embed BaseCLIEngine, which owns argument construction and
// command execution.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback to the
// other engine.
package container
