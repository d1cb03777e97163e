// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"os/exec"
)

// DockerEngine implements the Engine interface using the Docker CLI.
type DockerEngine struct {
	*BaseCLIEngine
}

// NewDockerEngine creates a new Docker engine.
func NewDockerEngine(opts ...BaseCLIEngineOption) *DockerEngine {
	path, _ := exec.LookPath("docker")
	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypeDocker))}, opts...)
	return &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Name returns the engine name.
func (e *DockerEngine) Name() string {
	return string(EngineTypeDocker)
}

// Available checks if the Docker daemon answers.
func (e *DockerEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Server.Version}}")
	return cmd.Run() == nil
}

// Version returns the Docker server version.
func (e *DockerEngine) Version(ctx context.Context) (string, error) {
	return e.version(ctx, "{{.Server.Version}}")
}

// ImageExists checks if an image exists.
func (e *DockerEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "inspect", image)
	return err == nil, nil
}
