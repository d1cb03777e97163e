// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/cadstart/cadstart/internal/container"
	"github.com/cadstart/cadstart/internal/envresolve"
	"github.com/cadstart/cadstart/internal/imagebuild"
	"github.com/cadstart/cadstart/internal/launcher"
	"github.com/cadstart/cadstart/pkg/types"
)

// DefaultEnvironmentName is the conda environment the application ships in.
const DefaultEnvironmentName = "cadgen"

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidContainerConfig is the sentinel error wrapped by InvalidContainerConfigError.
	ErrInvalidContainerConfig = errors.New("invalid container config")
)

type (
	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// InvalidContainerConfigError is returned when a ContainerConfig has invalid fields.
	InvalidContainerConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// EnvironmentName is the conda environment to activate.
		EnvironmentName string `json:"environment_name" yaml:"environment_name" toml:"environment_name" mapstructure:"environment_name"`
		// CandidatePaths replaces the built-in candidate list when non-empty.
		CandidatePaths []string `json:"candidate_paths" yaml:"candidate_paths" toml:"candidate_paths" mapstructure:"candidate_paths"`
		// BindHost and BindPort are the native-host server address.
		BindHost string         `json:"bind_host" yaml:"bind_host" toml:"bind_host" mapstructure:"bind_host"`
		BindPort types.BindPort `json:"bind_port" yaml:"bind_port" toml:"bind_port" mapstructure:"bind_port"`
		// Headless disables the browser auto-open.
		Headless bool `json:"headless" yaml:"headless" toml:"headless" mapstructure:"headless"`
		// WorkingDirectory is the child's working directory; empty means the
		// launcher's own.
		WorkingDirectory string `json:"working_directory" yaml:"working_directory" toml:"working_directory" mapstructure:"working_directory"`
		Executable       string `json:"executable" yaml:"executable" toml:"executable" mapstructure:"executable"`
		AppScript        string `json:"app_script" yaml:"app_script" toml:"app_script" mapstructure:"app_script"`
		// Container configures the image build
		Container ContainerConfig `json:"container" yaml:"container" toml:"container" mapstructure:"container"`
		// UI configures the user interface
		UI UIConfig `json:"ui" yaml:"ui" toml:"ui" mapstructure:"ui"`
	}

	// ContainerConfig configures the image build.
	ContainerConfig struct {
		// Engine is the preferred engine; the other one is used as fallback.
		Engine          container.EngineType `json:"engine" yaml:"engine" toml:"engine" mapstructure:"engine"`
		BaseImage       string               `json:"base_image" yaml:"base_image" toml:"base_image" mapstructure:"base_image"`
		SystemPackages  []string             `json:"system_packages" yaml:"system_packages" toml:"system_packages" mapstructure:"system_packages"`
		EnvironmentFile string               `json:"environment_file" yaml:"environment_file" toml:"environment_file" mapstructure:"environment_file"`
		// SourceDir is copied into the image; empty means the current directory.
		SourceDir string         `json:"source_dir" yaml:"source_dir" toml:"source_dir" mapstructure:"source_dir"`
		AppDir    string         `json:"app_dir" yaml:"app_dir" toml:"app_dir" mapstructure:"app_dir"`
		Port      types.BindPort `json:"port" yaml:"port" toml:"port" mapstructure:"port"`
		Tag       string         `json:"tag" yaml:"tag" toml:"tag" mapstructure:"tag"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging and error chains
		Verbose bool `json:"verbose" yaml:"verbose" toml:"verbose" mapstructure:"verbose"`
		// NoPause skips the wait for Enter after a launch failure
		NoPause bool `json:"no_pause" yaml:"no_pause" toml:"no_pause" mapstructure:"no_pause"`
	}
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	native := launcher.NativeParams()
	return &Config{
		EnvironmentName: DefaultEnvironmentName,
		CandidatePaths:  []string{},
		BindHost:        native.BindHost,
		BindPort:        native.BindPort,
		Headless:        native.Headless,
		Executable:      native.Executable,
		AppScript:       native.AppScript,
		Container: ContainerConfig{
			Engine:          container.EngineTypePodman,
			BaseImage:       imagebuild.DefaultBaseImage,
			SystemPackages:  slices.Clone(imagebuild.DefaultSystemPackages),
			EnvironmentFile: imagebuild.DefaultEnvironmentFile,
			SourceDir:       ".",
			AppDir:          imagebuild.DefaultAppDir,
			Port:            launcher.ContainerBindPort,
			Tag:             imagebuild.DefaultTag,
		},
		UI: UIConfig{
			Verbose: false,
			NoPause: false,
		},
	}
}

// Validate returns an InvalidConfigError listing every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.EnvironmentName) == "" {
		errs = append(errs, errors.New("environment_name must not be empty"))
	}
	for i, p := range c.CandidatePaths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("candidate_paths[%d] must not be empty", i))
		}
	}
	if strings.TrimSpace(c.BindHost) == "" {
		errs = append(errs, errors.New("bind_host must not be empty"))
	}
	if err := c.BindPort.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Executable) == "" {
		errs = append(errs, errors.New("executable must not be empty"))
	}
	if strings.TrimSpace(c.AppScript) == "" {
		errs = append(errs, errors.New("app_script must not be empty"))
	}
	if err := c.Container.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Validate returns an InvalidContainerConfigError listing every invalid field.
func (c ContainerConfig) Validate() error {
	var errs []error
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Port.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.AppDir != "" && !path.IsAbs(c.AppDir) {
		errs = append(errs, fmt.Errorf("container.app_dir %q must be absolute", c.AppDir))
	}
	if len(errs) > 0 {
		return &InvalidContainerConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidContainerConfigError.
func (e *InvalidContainerConfigError) Error() string {
	return fmt.Sprintf("invalid container config: %s", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidContainerConfig followed by the field errors.
func (e *InvalidContainerConfigError) Unwrap() []error {
	return append([]error{ErrInvalidContainerConfig}, e.FieldErrors...)
}

// LaunchParams returns the native-host launch parameters.
func (c *Config) LaunchParams() launcher.Params {
	return launcher.Params{
		Executable:       c.Executable,
		AppScript:        c.AppScript,
		WorkingDirectory: c.WorkingDirectory,
		BindHost:         c.BindHost,
		BindPort:         c.BindPort,
		Headless:         c.Headless,
	}
}

// Descriptor returns the environment descriptor for a host. Configured
// candidate paths replace the built-in list and are expanded against home
// and getenv; their kind is inferred from the file name.
func (c *Config) Descriptor(goos, home string, getenv func(string) string) *envresolve.Descriptor {
	if len(c.CandidatePaths) == 0 {
		return envresolve.NewDescriptor(c.EnvironmentName, envresolve.DefaultCandidates(goos, home, getenv))
	}
	candidates := make([]envresolve.Candidate, 0, len(c.CandidatePaths))
	for _, p := range c.CandidatePaths {
		candidates = append(candidates, envresolve.CandidateFromPath(envresolve.ExpandPath(p, home, getenv)))
	}
	return envresolve.NewDescriptor(c.EnvironmentName, candidates)
}

// BuildManifest returns the image manifest. sourceDir overrides
// container.source_dir when non-empty. A relative environment_file is
// resolved against the source directory.
func (c *Config) BuildManifest(sourceDir string) (imagebuild.BuildManifest, error) {
	if sourceDir == "" {
		sourceDir = c.Container.SourceDir
	}
	m, err := imagebuild.DefaultBuildManifest(sourceDir)
	if err != nil {
		return imagebuild.BuildManifest{}, err
	}

	p := launcher.ContainerParams()
	p.Executable = c.Executable
	p.AppScript = c.AppScript
	p.BindPort = c.Container.Port
	p.WorkingDirectory = m.AppDir
	if c.Container.AppDir != "" {
		m.AppDir = c.Container.AppDir
		p.WorkingDirectory = c.Container.AppDir
	}
	cmd, err := launcher.NewLaunchSpec(p)
	if err != nil {
		return imagebuild.BuildManifest{}, err
	}

	m.BaseImage = c.Container.BaseImage
	m.SystemPackages = slices.Clone(c.Container.SystemPackages)
	m.EnvironmentManifestFile = resolveAgainst(sourceDir, c.Container.EnvironmentFile)
	m.ExposedPort = c.Container.Port
	m.DefaultCommand = cmd
	if c.Container.Tag != "" {
		m.Tag = c.Container.Tag
	}
	return m, m.Validate()
}
