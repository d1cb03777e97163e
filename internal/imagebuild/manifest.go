// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/cadstart/cadstart/internal/launcher"
	"github.com/cadstart/cadstart/pkg/types"
)

const (
	// DefaultBaseImage ships conda on a Debian base.
	DefaultBaseImage = "continuumio/miniconda3:latest"
	// DefaultEnvironmentFile is the conda manifest, relative to the source dir.
	DefaultEnvironmentFile = "environment.yml"
	// DefaultAppDir is where the source lands inside the image.
	DefaultAppDir = "/app"
	// DefaultTag is the image tag when none is configured.
	DefaultTag = "cadgen:latest"
)

// DefaultSystemPackages are the shared libraries the OpenCASCADE and OpenGL
// stack of the application loads at runtime.
var DefaultSystemPackages = []string{
	"libgl1",
	"libglu1-mesa",
	"libsm6",
	"libx11-6",
	"libxext6",
	"libxrender1",
}

// ErrInvalidManifest is the sentinel wrapped by BuildManifest.Validate errors.
var ErrInvalidManifest = errors.New("invalid build manifest")

// debPackagePattern matches Debian package names.
var debPackagePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)

type (
	// BuildManifest declares everything the image is built from.
	BuildManifest struct {
		BaseImage string
		// SystemPackages is a set; order and duplicates are irrelevant.
		SystemPackages []string
		// EnvironmentManifestFile is the conda environment.yml on the host.
		EnvironmentManifestFile string
		ExposedPort             types.BindPort
		DefaultCommand          launcher.LaunchSpec
		// SourceDir is the host directory copied into the image.
		SourceDir string
		// AppDir is the in-image directory the source is copied to.
		AppDir string
		Tag    string
	}

	// PortMismatchError is returned when the default command binds a port
	// other than the one the image exposes.
	PortMismatchError struct {
		Exposed types.BindPort
		Bound   types.BindPort
	}
)

// Error implements the error interface.
func (e *PortMismatchError) Error() string {
	return fmt.Sprintf("default command binds port %s but the image exposes %s", e.Bound, e.Exposed)
}

// Unwrap returns ErrInvalidManifest.
func (e *PortMismatchError) Unwrap() error { return ErrInvalidManifest }

// DefaultBuildManifest returns the manifest for sourceDir with the container
// launch defaults.
func DefaultBuildManifest(sourceDir string) (BuildManifest, error) {
	cmd, err := launcher.NewLaunchSpec(launcher.ContainerParams())
	if err != nil {
		return BuildManifest{}, err
	}
	cmd.WorkingDirectory = DefaultAppDir
	return BuildManifest{
		BaseImage:               DefaultBaseImage,
		SystemPackages:          slices.Clone(DefaultSystemPackages),
		EnvironmentManifestFile: filepath.Join(sourceDir, DefaultEnvironmentFile),
		ExposedPort:             launcher.ContainerBindPort,
		DefaultCommand:          cmd,
		SourceDir:               sourceDir,
		AppDir:                  DefaultAppDir,
		Tag:                     DefaultTag,
	}, nil
}

// Packages returns the system package set sorted and deduplicated.
func (m BuildManifest) Packages() []string {
	pkgs := slices.Clone(m.SystemPackages)
	slices.Sort(pkgs)
	return slices.Compact(pkgs)
}

// Validate checks the manifest. All problems are reported together.
func (m BuildManifest) Validate() error {
	var errs []error

	if strings.TrimSpace(m.BaseImage) == "" {
		errs = append(errs, errors.New("base image must not be empty"))
	}
	if strings.TrimSpace(m.EnvironmentManifestFile) == "" {
		errs = append(errs, errors.New("environment manifest file must not be empty"))
	}
	if strings.TrimSpace(m.SourceDir) == "" {
		errs = append(errs, errors.New("source directory must not be empty"))
	}
	if !path.IsAbs(m.AppDir) {
		errs = append(errs, fmt.Errorf("app directory %q must be an absolute image path", m.AppDir))
	}
	for _, pkg := range m.SystemPackages {
		if !debPackagePattern.MatchString(pkg) {
			errs = append(errs, fmt.Errorf("invalid system package name %q", pkg))
		}
	}
	if err := m.ExposedPort.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := m.DefaultCommand.Validate(); err != nil {
		errs = append(errs, err)
	}
	if m.DefaultCommand.BindPort != m.ExposedPort {
		errs = append(errs, &PortMismatchError{Exposed: m.ExposedPort, Bound: m.DefaultCommand.BindPort})
	}
	if m.DefaultCommand.BindHost != launcher.ContainerBindHost {
		errs = append(errs, fmt.Errorf("default command must bind %s, not %q", launcher.ContainerBindHost, m.DefaultCommand.BindHost))
	}
	if !m.DefaultCommand.Headless {
		errs = append(errs, errors.New("default command must run headless"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, errors.Join(errs...))
	}
	return nil
}
