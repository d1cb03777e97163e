// SPDX-License-Identifier: MPL-2.0

package activation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// captureCommand is the command that ends the activation script. It never
// reaches the OS: the exec handler intercepts it and snapshots the
// interpreter's exported variables.
const captureCommand = "__cadstart_capture_env"

// activateScript sources the hook and activates the environment. The hook path
// and environment name arrive as positional parameters so no quoting is
// needed.
const activateScript = `__hook=$1
__env=$2
set --
. "$__hook" || exit $?
conda activate "$__env" || exit $?
` + captureCommand + `
`

// ShellActivator activates an environment by sourcing a POSIX conda hook
// (etc/profile.d/conda.sh) in an embedded shell interpreter.
type ShellActivator struct {
	// BaseEnv is the environment the interpreter starts with.
	BaseEnv []string
	// Stderr receives the hook's diagnostic output in addition to the
	// captured copy used for error messages. Nil discards it.
	Stderr io.Writer
}

// Activate implements Activator.
func (a *ShellActivator) Activate(ctx context.Context, hook, envName string) (*Environment, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(activateScript), "activate")
	if err != nil {
		return nil, &ActivationError{Environment: envName, Path: hook, Err: fmt.Errorf("parse activation script: %w", err)}
	}

	var (
		captured []string
		done     bool
	)
	capture := func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) == 0 || args[0] != captureCommand {
				return next(ctx, args)
			}
			done = true
			hc := interp.HandlerCtx(ctx)
			hc.Env.Each(func(name string, vr expand.Variable) bool {
				if vr.Exported && vr.Kind == expand.String {
					captured = append(captured, name+"="+vr.Str)
				}
				return true
			})
			return nil
		}
	}

	var stderr bytes.Buffer
	var errOut io.Writer = &stderr
	if a.Stderr != nil {
		errOut = io.MultiWriter(&stderr, a.Stderr)
	}

	runner, err := interp.New(
		interp.Dir(filepath.Dir(hook)),
		interp.Env(expand.ListEnviron(a.BaseEnv...)),
		interp.StdIO(nil, io.Discard, errOut),
		interp.ExecHandlers(capture),
		interp.Params("--", hook, envName),
	)
	if err != nil {
		return nil, &ActivationError{Environment: envName, Path: hook, Err: fmt.Errorf("create interpreter: %w", err)}
	}

	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			err = fmt.Errorf("activation exited with status %d", uint8(status))
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &ActivationError{Environment: envName, Path: hook, Err: err}
	}
	if !done {
		return nil, &ActivationError{Environment: envName, Path: hook, Err: errors.New("activation script ended before the environment was captured")}
	}

	env := &Environment{Name: envName, Vars: captured}
	env.Prefix, _ = env.Lookup("CONDA_PREFIX")
	slog.DebugContext(ctx, "activated conda hook", "env", envName, "hook", hook, "prefix", env.Prefix)
	return env, nil
}
