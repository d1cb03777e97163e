// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

var (
	// ErrEngineNotAvailable is the sentinel wrapped by EngineNotAvailableError.
	ErrEngineNotAvailable = errors.New("container engine not available")

	// ErrInvalidEngineType is the sentinel wrapped by InvalidEngineTypeError.
	ErrInvalidEngineType = errors.New("invalid container engine type")

	// ErrInvalidBuildOptions is the sentinel wrapped by BuildOptions.Validate errors.
	ErrInvalidBuildOptions = errors.New("invalid build options")
)

type (
	// Engine defines the container operations used by the image builder.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available reports whether the engine binary exists and answers.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)
		// Build builds an image from a Dockerfile.
		Build(ctx context.Context, opts BuildOptions) error
		// ImageExists checks if an image exists locally.
		ImageExists(ctx context.Context, image string) (bool, error)
		// RemoveImage removes a local image.
		RemoveImage(ctx context.Context, image string, force bool) error
	}

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the path to the Dockerfile, relative to ContextDir.
		Dockerfile string
		// Tag is the image tag.
		Tag string
		// NoCache disables the build cache.
		NoCache bool
		// Pull always attempts to pull a newer base image.
		Pull bool
		// Stdout receives build output.
		Stdout io.Writer
		// Stderr receives build errors.
		Stderr io.Writer
	}

	// EngineType identifies the container engine type.
	EngineType string

	// InvalidEngineTypeError is returned when an EngineType is not recognized.
	InvalidEngineTypeError struct {
		Value EngineType
	}

	// EngineNotAvailableError is returned when no usable engine is found.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidEngineTypeError) Error() string {
	return fmt.Sprintf("invalid container engine type %q (valid: docker, podman)", e.Value)
}

// Unwrap returns ErrInvalidEngineType.
func (e *InvalidEngineTypeError) Unwrap() error { return ErrInvalidEngineType }

// Validate returns nil for docker and podman.
func (t EngineType) Validate() error {
	switch t {
	case EngineTypeDocker, EngineTypePodman:
		return nil
	default:
		return &InvalidEngineTypeError{Value: t}
	}
}

// String returns the engine type name.
func (t EngineType) String() string { return string(t) }

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// Validate checks the options that every build needs.
func (o BuildOptions) Validate() error {
	var errs []error
	if strings.TrimSpace(o.ContextDir) == "" {
		errs = append(errs, errors.New("context directory must not be empty"))
	}
	if o.Tag != "" && strings.ContainsAny(o.Tag, " \t\n") {
		errs = append(errs, fmt.Errorf("tag %q contains whitespace", o.Tag))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidBuildOptions, errors.Join(errs...))
	}
	return nil
}

// NewEngine returns the preferred engine, falling back to the other one when
// the preferred engine is unavailable. Options are applied to both.
func NewEngine(preferredType EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	if err := preferredType.Validate(); err != nil {
		return nil, err
	}

	podman := NewPodmanEngine(opts...)
	docker := NewDockerEngine(opts...)
	first, second := Engine(podman), Engine(docker)
	if preferredType == EngineTypeDocker {
		first, second = docker, podman
	}

	if first.Available() {
		return first, nil
	}
	if second.Available() {
		return second, nil
	}
	return nil, &EngineNotAvailableError{
		Engine: preferredType.String(),
		Reason: fmt.Sprintf("%s is not installed or not accessible, and %s fallback is also not available", first.Name(), second.Name()),
	}
}
