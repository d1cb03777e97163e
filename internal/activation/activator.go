// SPDX-License-Identifier: MPL-2.0

package activation

import (
	"context"
	"os"

	"github.com/cadstart/cadstart/internal/envresolve"
)

type (
	// Activator produces the environment for a named conda environment from a
	// resolved location. Implementations must not modify the calling process.
	Activator interface {
		Activate(ctx context.Context, resolvedPath string, envName string) (*Environment, error)
	}

	// ActivatorFunc adapts a function to the Activator interface.
	ActivatorFunc func(ctx context.Context, resolvedPath string, envName string) (*Environment, error)

	// Option configures the activators built by ForCandidate.
	Option func(*options)

	options struct {
		baseEnv     []string
		execCommand ExecCommandFunc
	}
)

// Activate implements Activator.
func (f ActivatorFunc) Activate(ctx context.Context, resolvedPath, envName string) (*Environment, error) {
	return f(ctx, resolvedPath, envName)
}

// WithBaseEnv sets the environment activation starts from.
// Defaults to the current process environment.
func WithBaseEnv(env []string) Option {
	return func(o *options) { o.baseEnv = env }
}

// WithExecCommand overrides process creation for the batch activator.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(o *options) { o.execCommand = fn }
}

// ForCandidate returns the activator that understands locations of kind.
func ForCandidate(kind envresolve.CandidateKind, opts ...Option) Activator {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseEnv == nil {
		o.baseEnv = os.Environ()
	}

	switch kind {
	case envresolve.KindShellHook:
		return &ShellActivator{BaseEnv: o.baseEnv}
	case envresolve.KindBatchHook:
		return &BatchActivator{BaseEnv: o.baseEnv, ExecCommand: o.execCommand}
	default:
		return &PrefixActivator{BaseEnv: o.baseEnv}
	}
}
