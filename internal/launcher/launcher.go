// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"

	"github.com/cadstart/cadstart/internal/activation"
	"github.com/cadstart/cadstart/internal/envresolve"
	"github.com/cadstart/cadstart/pkg/types"
)

type (
	// Launcher runs one server process inside an activated environment.
	// It must not be reused: a second Run returns ErrAlreadyRun.
	Launcher struct {
		mu       sync.Mutex
		state    State
		exitCode types.ExitCode

		prober       envresolve.Prober
		activatorFor func(envresolve.CandidateKind) activation.Activator
		onTransition TransitionFunc
		execCommand  func(name string, args ...string) *exec.Cmd
		stdin        io.Reader
		stdout       io.Writer
		stderr       io.Writer
	}

	// Option configures a Launcher.
	Option func(*Launcher)
)

// WithProber sets the existence check used for candidate resolution.
func WithProber(p envresolve.Prober) Option {
	return func(l *Launcher) { l.prober = p }
}

// WithActivatorFactory sets how an activator is chosen for a resolved
// candidate.
func WithActivatorFactory(fn func(envresolve.CandidateKind) activation.Activator) Option {
	return func(l *Launcher) { l.activatorFor = fn }
}

// WithTransitionHook registers an observer for state changes.
func WithTransitionHook(fn TransitionFunc) Option {
	return func(l *Launcher) { l.onTransition = fn }
}

// WithExecCommand overrides child process creation.
func WithExecCommand(fn func(name string, args ...string) *exec.Cmd) Option {
	return func(l *Launcher) { l.execCommand = fn }
}

// WithStdio sets the child's standard streams. The default is the launcher's
// own stdin, stdout and stderr.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(l *Launcher) {
		l.stdin, l.stdout, l.stderr = stdin, stdout, stderr
	}
}

// New creates an idle Launcher.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		prober: envresolve.FSProber{},
		activatorFor: func(kind envresolve.CandidateKind) activation.Activator {
			return activation.ForCandidate(kind)
		},
		execCommand: exec.Command,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current lifecycle state.
func (l *Launcher) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ExitCode returns the recorded exit code once the launcher has terminated.
func (l *Launcher) ExitCode() types.ExitCode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exitCode
}

// Run resolves and activates the environment described by d, then runs the
// executable in spec to completion.
//
// The child's exit code is returned with a nil error, whatever its value.
// A non-nil error is one of *envresolve.ResolutionError,
// *activation.ActivationError or *LaunchError, and the returned code is
// types.ExitFailure. The executable is never started unless activation
// succeeded.
func (l *Launcher) Run(ctx context.Context, d *envresolve.Descriptor, spec LaunchSpec) (types.ExitCode, error) {
	if err := spec.Validate(); err != nil {
		return types.ExitFailure, err
	}

	if !l.claim() {
		return types.ExitFailure, ErrAlreadyRun
	}
	env, err := l.activate(ctx, d)
	if err != nil {
		return l.fail(err)
	}

	l.transition(StateLaunching)
	cmd, err := l.prepare(env, spec)
	if err != nil {
		return l.fail(err)
	}

	slog.InfoContext(ctx, "starting server",
		"command", spec.String(),
		"env", env.Name,
		"address", spec.BindHost+":"+spec.BindPort.String())

	// Interrupts are meant for the child, which shares our process group.
	// Keep receiving them so the launcher outlives the child and can report
	// its status.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, interruptSignals...)
	defer signal.Stop(sigCh)

	if err := cmd.Start(); err != nil {
		return l.fail(&LaunchError{Executable: spec.Executable, Err: err})
	}

	l.transition(StateRunning)
	waitErr := cmd.Wait()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return l.fail(&LaunchError{Executable: spec.Executable, Err: waitErr})
	}
	code := exitCodeOf(cmd.ProcessState)

	slog.DebugContext(ctx, "server exited", "exit_code", int(code))
	l.terminate(code)
	return code, nil
}

func (l *Launcher) activate(ctx context.Context, d *envresolve.Descriptor) (*activation.Environment, error) {
	candidate, err := envresolve.Resolve(ctx, d, l.prober)
	if err != nil {
		return nil, err
	}

	env, err := l.activatorFor(candidate.Kind).Activate(ctx, candidate.Path.String(), d.Name())
	if err != nil {
		if !errors.Is(err, activation.ErrActivation) {
			err = &activation.ActivationError{Environment: d.Name(), Path: candidate.Path.String(), Err: err}
		}
		return nil, err
	}
	return env, nil
}

func (l *Launcher) prepare(env *activation.Environment, spec LaunchSpec) (*exec.Cmd, error) {
	path, err := env.LookPath(spec.Executable)
	if err != nil {
		return nil, &LaunchError{Executable: spec.Executable, Err: err}
	}

	cmd := l.execCommand(path, spec.Arguments...)
	cmd.Env = env.Vars
	cmd.Dir = spec.WorkingDirectory
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	return cmd, nil
}

func (l *Launcher) fail(err error) (types.ExitCode, error) {
	l.terminate(types.ExitFailure)
	return types.ExitFailure, err
}

func (l *Launcher) terminate(code types.ExitCode) {
	l.mu.Lock()
	l.exitCode = code
	l.mu.Unlock()
	l.transition(StateTerminated)
}

// claim moves an idle launcher to StateActivating. It reports false when
// another Run already left the idle state.
func (l *Launcher) claim() bool {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return false
	}
	l.state = StateActivating
	hook := l.onTransition
	l.mu.Unlock()

	if hook != nil {
		hook(StateIdle, StateActivating)
	}
	return true
}

func (l *Launcher) transition(to State) {
	l.mu.Lock()
	from := l.state
	l.state = to
	hook := l.onTransition
	l.mu.Unlock()

	if hook != nil {
		hook(from, to)
	}
}
