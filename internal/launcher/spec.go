// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cadstart/cadstart/pkg/types"
)

const (
	// DefaultExecutable is the server binary installed into the environment.
	DefaultExecutable = "streamlit"
	// DefaultAppScript is the application entry point.
	DefaultAppScript = "streamlit_app.py"

	// NativeBindHost and NativeBindPort are the native-host defaults.
	NativeBindHost                  = "localhost"
	NativeBindPort   types.BindPort = 8501
	// ContainerBindHost and ContainerBindPort are the container defaults.
	ContainerBindHost                = "0.0.0.0"
	ContainerBindPort types.BindPort = 7860
)

// ErrInvalidLaunchSpec is the sentinel wrapped by LaunchSpec.Validate errors.
var ErrInvalidLaunchSpec = errors.New("invalid launch spec")

type (
	// LaunchSpec describes one launch of the server executable.
	// The bind port is fixed for the lifetime of the launch.
	LaunchSpec struct {
		Executable       string
		Arguments        []string
		WorkingDirectory string
		BindHost         string
		BindPort         types.BindPort
		Headless         bool
	}

	// Params are the configurable inputs NewLaunchSpec builds a LaunchSpec from.
	Params struct {
		Executable       string
		AppScript        string
		WorkingDirectory string
		BindHost         string
		BindPort         types.BindPort
		Headless         bool
	}
)

// NativeParams returns the native-host defaults: loopback bind, browser
// auto-open left enabled.
func NativeParams() Params {
	return Params{
		Executable: DefaultExecutable,
		AppScript:  DefaultAppScript,
		BindHost:   NativeBindHost,
		BindPort:   NativeBindPort,
	}
}

// ContainerParams returns the container defaults: all interfaces, headless.
func ContainerParams() Params {
	return Params{
		Executable: DefaultExecutable,
		AppScript:  DefaultAppScript,
		BindHost:   ContainerBindHost,
		BindPort:   ContainerBindPort,
		Headless:   true,
	}
}

// NewLaunchSpec builds and validates a LaunchSpec.
func NewLaunchSpec(p Params) (LaunchSpec, error) {
	spec := LaunchSpec{
		Executable:       p.Executable,
		Arguments:        ServerArgs(p.AppScript, p.BindHost, p.BindPort, p.Headless),
		WorkingDirectory: p.WorkingDirectory,
		BindHost:         p.BindHost,
		BindPort:         p.BindPort,
		Headless:         p.Headless,
	}
	if err := spec.Validate(); err != nil {
		return LaunchSpec{}, err
	}
	return spec, nil
}

// ServerArgs returns the server argument vector. Positional arguments come
// before the value flags.
func ServerArgs(appScript, host string, port types.BindPort, headless bool) []string {
	return []string{
		"run", appScript,
		"--server.address", host,
		"--server.port", port.String(),
		"--server.headless", strconv.FormatBool(headless),
	}
}

// Validate checks that the spec can be launched.
func (s LaunchSpec) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Executable) == "" {
		errs = append(errs, errors.New("executable must not be empty"))
	}
	if strings.TrimSpace(s.BindHost) == "" {
		errs = append(errs, errors.New("bind host must not be empty"))
	}
	if err := s.BindPort.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(s.Arguments) == 0 || s.Arguments[0] != "run" {
		errs = append(errs, errors.New(`arguments must start with the "run" subcommand`))
	} else {
		errs = append(errs, s.checkServerFlags()...)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidLaunchSpec, errors.Join(errs...))
	}
	return nil
}

// checkServerFlags reports server flags in Arguments that disagree with the
// bind fields. A missing flag counts as a disagreement.
func (s LaunchSpec) checkServerFlags() []error {
	var errs []error
	for _, f := range []struct{ flag, want string }{
		{"--server.address", s.BindHost},
		{"--server.port", s.BindPort.String()},
		{"--server.headless", strconv.FormatBool(s.Headless)},
	} {
		got, ok := flagValue(s.Arguments, f.flag)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("arguments are missing %s %s", f.flag, f.want))
		case got != f.want:
			errs = append(errs, fmt.Errorf("arguments pass %s %s, want %s", f.flag, got, f.want))
		}
	}
	return errs
}

// flagValue returns the value following the last occurrence of flag. A flag
// in last position has no value.
func flagValue(args []string, flag string) (string, bool) {
	for i := len(args) - 1; i >= 0; i-- {
		if args[i] != flag {
			continue
		}
		if i+1 == len(args) {
			return "", false
		}
		return args[i+1], true
	}
	return "", false
}

// Command returns the executable followed by its arguments.
func (s LaunchSpec) Command() []string {
	return append([]string{s.Executable}, slices.Clone(s.Arguments)...)
}

// String renders the command line for logs and dry runs.
func (s LaunchSpec) String() string {
	return strings.Join(s.Command(), " ")
}
