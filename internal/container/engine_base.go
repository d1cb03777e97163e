// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cadstart/cadstart/internal/issue"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides the implementation shared by CLI-based engines.
	// Docker and Podman embed it; engine-specific probes (Available,
	// Version, ImageExists) stay on the concrete types.
	BaseCLIEngine struct {
		name        string
		binaryPath  string
		execCommand ExecCommandFunc
	}
)

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:  binaryPath,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// BuildArgs constructs arguments for a container build command.
//
// Generated command: <binary> build [options] <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(opts.ContextDir, dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	}

	if opts.Tag != "" {
		args = append(args, "-t", opts.Tag)
	}

	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	if opts.Pull {
		args = append(args, "--pull")
	}

	return append(args, opts.ContextDir)
}

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// Build builds an image from a Dockerfile. The engine's own output is
// streamed to opts.Stdout and opts.Stderr as produced.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	cmd := e.CreateCommand(ctx, e.BuildArgs(opts)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.name, opts, err)
	}
	return nil
}

// RemoveImage removes an image.
//
// Generated command: <binary> rmi [-f] <image>
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, image string, force bool) error {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	return e.RunCommandStatus(ctx, append(args, image)...)
}

// version runs "<binary> version --format <format>".
func (e *BaseCLIEngine) version(ctx context.Context, format string) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", format)
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", e.name, err)
	}
	return strings.TrimSpace(out), nil
}

// buildContainerError creates an actionable error for container build failures.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image").
		WithIssue(issue.ImageBuildFailedId)

	switch {
	case opts.Tag != "":
		ctx.WithResource(opts.Tag)
	case opts.Dockerfile != "":
		ctx.WithResource(opts.Dockerfile)
	}

	ctx.WithSuggestion("Check the " + engine + " output above for the failing step")
	ctx.WithSuggestion("Ensure the base image is reachable (try: " + engine + " pull <base-image>)")

	return ctx.Wrap(cause).BuildError()
}
