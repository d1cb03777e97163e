// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
)

// PodmanEngine implements the Engine interface using the Podman CLI.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")
	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypePodman))}, opts...)
	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Name returns the engine name.
func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Available checks if Podman is available.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Version}}")
	return cmd.Run() == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	return e.version(ctx, "{{.Version}}")
}

// ImageExists checks if an image exists. "podman image exists" exits 1 when
// the image is missing; any other failure is reported as an error.
func (e *PodmanEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	cmd := e.CreateCommand(ctx, "image", "exists", image)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}
