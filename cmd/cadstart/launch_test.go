// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/cadstart/cadstart/internal/activation"
	"github.com/cadstart/cadstart/internal/envresolve"
	"github.com/cadstart/cadstart/internal/launcher"
	"github.com/cadstart/cadstart/pkg/types"
)

// TestHelperProcess stands in for the server executable. It is re-executed
// by the exec hook fakeServer installs and is not a real test.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	code := 0
	fmt.Sscanf(os.Getenv("GO_HELPER_EXIT_CODE"), "%d", &code)
	os.Exit(code)
}

// testEnv is an App wired to buffers, a temp config dir and a fake host
// where only /opt/conda exists.
type testEnv struct {
	app    *App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	execs  []string
}

func newTestEnv(t *testing.T, mutate func(*Dependencies)) *testEnv {
	t.Helper()
	te := &testEnv{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	deps := Dependencies{
		ConfigDir: t.TempDir(),
		Prober: envresolve.ProberFunc(func(p string) (bool, error) {
			return p == "/opt/conda", nil
		}),
		IsTerminal: func() bool { return false },
		Getenv: func(key string) string {
			if key == "CADSTART_CANDIDATE_PATHS" {
				return "/home/u/miniconda3/etc/profile.d/conda.sh,/opt/conda"
			}
			return ""
		},
		GOOS:    runtime.GOOS,
		HomeDir: "/home/u",
		Stdin:   strings.NewReader(""),
		Stdout:  te.stdout,
		Stderr:  te.stderr,
	}
	if mutate != nil {
		mutate(&deps)
	}
	te.app = NewApp(deps)
	return te
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

// out returns stdout with styling removed.
func (te *testEnv) out() string { return ansiEscape.ReplaceAllString(te.stdout.String(), "") }

// errOut returns stderr with styling removed.
func (te *testEnv) errOut() string { return ansiEscape.ReplaceAllString(te.stderr.String(), "") }

func (te *testEnv) run(args ...string) error {
	root := NewRootCommand(te.app)
	root.SetArgs(args)
	root.SetOut(te.stdout)
	root.SetErr(te.stderr)
	return root.ExecuteContext(context.Background())
}

// runCLI runs args through fang the way Execute does.
func (te *testEnv) runCLI(args ...string) error {
	root := NewRootCommand(te.app)
	root.SetArgs(args)
	root.SetOut(te.stdout)
	root.SetErr(te.stderr)
	return execute(context.Background(), root)
}

// fakeServer wires an activator that puts a fake executable on PATH and an
// exec hook that re-runs the test binary with the given exit code.
func (te *testEnv) fakeServer(t *testing.T, exitCode int) func(*Dependencies) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake executables rely on POSIX permission bits")
	}
	bin := t.TempDir()
	if err := os.WriteFile(filepath.Join(bin, launcher.DefaultExecutable), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return func(d *Dependencies) {
		d.LauncherOptions = []launcher.Option{
			launcher.WithActivatorFactory(func(envresolve.CandidateKind) activation.Activator {
				return activation.ActivatorFunc(func(_ context.Context, path, name string) (*activation.Environment, error) {
					return &activation.Environment{Name: name, Vars: []string{
						"PATH=" + bin,
						"GO_WANT_HELPER_PROCESS=1",
						fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", exitCode),
					}}, nil
				})
			}),
			launcher.WithExecCommand(func(name string, args ...string) *exec.Cmd {
				te.execs = append(te.execs, strings.Join(append([]string{filepath.Base(name)}, args...), " "))
				//nolint:gosec // TestHelperProcess is a test-only pattern
				return exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--") //nolint:noctx // test helper
			}),
		}
	}
}

// withFakeServer installs fakeServer's launcher options on te.
func withFakeServer(t *testing.T, te *testEnv, exitCode int) {
	t.Helper()
	var deps Dependencies
	te.fakeServer(t, exitCode)(&deps)
	te.app.launcherOptions = deps.LauncherOptions
}

func TestLaunch_PropagatesChildExitCode(t *testing.T) {
	for _, want := range []int{0, 3, 42} {
		t.Run(fmt.Sprint(want), func(t *testing.T) {
			te := newTestEnv(t, nil)
			withFakeServer(t, te, want)

			err := te.run("--no-pause")

			if len(te.execs) != 1 {
				t.Fatalf("execs = %v, want exactly one", te.execs)
			}
			if want == 0 {
				if err != nil {
					t.Fatalf("run() error = %v", err)
				}
				return
			}
			var exitErr *ExitError
			if !errors.As(err, &exitErr) {
				t.Fatalf("run() error = %v, want *ExitError", err)
			}
			if exitErr.Code != types.ExitCode(want) {
				t.Errorf("exit code = %d, want %d", exitErr.Code, want)
			}
			if exitErr.Err != nil {
				t.Errorf("child exit must not carry a launcher error, got %v", exitErr.Err)
			}
			if strings.Contains(te.errOut(), "Error:") {
				t.Errorf("child exit must not render a diagnostic:\n%s", te.stderr)
			}
		})
	}
}

func TestLaunch_FlagsOverrideConfig(t *testing.T) {
	te := newTestEnv(t, nil)
	withFakeServer(t, te, 0)

	if err := te.run("launch", "--port", "8600", "--headless", "--host", "127.0.0.1"); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(te.execs) != 1 {
		t.Fatalf("execs = %v, want exactly one", te.execs)
	}
	want := "streamlit run streamlit_app.py --server.address 127.0.0.1 --server.port 8600 --server.headless true"
	if te.execs[0] != want {
		t.Errorf("exec = %q, want %q", te.execs[0], want)
	}
}

func TestLaunch_ResolutionFailure(t *testing.T) {
	te := newTestEnv(t, func(d *Dependencies) {
		d.Prober = envresolve.ProberFunc(func(string) (bool, error) { return false, nil })
	})
	withFakeServer(t, te, 0)

	err := te.run("--no-pause")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitFailure {
		t.Fatalf("run() error = %v, want ExitError code 1", err)
	}
	var resErr *envresolve.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error should carry *envresolve.ResolutionError, got %v", err)
	}
	if len(resErr.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(resErr.Attempts))
	}
	if !strings.Contains(te.errOut(), "failed to resolve conda environment: cadgen") {
		t.Errorf("stderr missing diagnostic:\n%s", te.stderr)
	}
	if len(te.execs) != 0 {
		t.Errorf("executable must not run, got %v", te.execs)
	}
}

func TestLaunch_ActivationFailure(t *testing.T) {
	te := newTestEnv(t, nil)
	te.app.launcherOptions = []launcher.Option{
		launcher.WithActivatorFactory(func(envresolve.CandidateKind) activation.Activator {
			return activation.ActivatorFunc(func(_ context.Context, path, name string) (*activation.Environment, error) {
				return nil, &activation.ActivationError{Environment: name, Path: path, Err: errors.New("activation exited with status 1")}
			})
		}),
		launcher.WithExecCommand(func(name string, args ...string) *exec.Cmd {
			te.execs = append(te.execs, name)
			return exec.Command(name, args...) //nolint:noctx // never reached
		}),
	}

	err := te.run("--no-pause")

	if !errors.Is(err, activation.ErrActivation) {
		t.Fatalf("run() error = %v, want ErrActivation", err)
	}
	if !strings.Contains(te.errOut(), "failed to activate conda environment: cadgen") {
		t.Errorf("stderr missing diagnostic:\n%s", te.stderr)
	}
	if len(te.execs) != 0 {
		t.Errorf("executable must not run after failed activation, got %v", te.execs)
	}
}

func TestLaunch_Pause(t *testing.T) {
	tests := []struct {
		name      string
		terminal  bool
		args      []string
		wantPause bool
	}{
		{"terminal", true, nil, true},
		{"terminal with --no-pause", true, []string{"--no-pause"}, false},
		{"not a terminal", false, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(t, func(d *Dependencies) {
				d.IsTerminal = func() bool { return tt.terminal }
				d.Stdin = strings.NewReader("\n")
				d.Prober = envresolve.ProberFunc(func(string) (bool, error) { return false, nil })
			})

			if err := te.run(tt.args...); err == nil {
				t.Fatal("run() should fail")
			}
			if got := strings.Contains(te.errOut(), "Press Enter to exit"); got != tt.wantPause {
				t.Errorf("paused = %v, want %v\n%s", got, tt.wantPause, te.stderr)
			}
		})
	}
}

func TestLaunch_InvalidConfigFile(t *testing.T) {
	te := newTestEnv(t, nil)
	path := filepath.Join(t.TempDir(), "config.cue")
	if err := os.WriteFile(path, []byte("bind_port: \"high\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := te.run("--no-pause", "--config", path)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitFailure {
		t.Fatalf("run() error = %v, want ExitError code 1", err)
	}
	if !strings.Contains(te.errOut(), "failed to load configuration") {
		t.Errorf("stderr missing diagnostic:\n%s", te.stderr)
	}
}

func TestExecute_ReportsEachErrorOnce(t *testing.T) {
	t.Run("child exit code", func(t *testing.T) {
		te := newTestEnv(t, nil)
		withFakeServer(t, te, 3)

		err := te.runCLI("--no-pause")

		var exitErr *ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != 3 {
			t.Fatalf("runCLI() error = %v, want ExitError code 3", err)
		}
		if got := te.errOut(); strings.Contains(got, "exit status") || strings.Contains(got, "ERROR") {
			t.Errorf("child exit must pass through silently, stderr:\n%s", got)
		}
	})

	t.Run("resolution failure", func(t *testing.T) {
		te := newTestEnv(t, func(d *Dependencies) {
			d.Prober = envresolve.ProberFunc(func(string) (bool, error) { return false, nil })
		})

		if err := te.runCLI("--no-pause"); err == nil {
			t.Fatal("runCLI() should fail")
		}
		if n := strings.Count(te.errOut(), "failed to resolve conda environment"); n != 1 {
			t.Errorf("diagnostic printed %d times, want 1:\n%s", n, te.errOut())
		}
	})

	t.Run("unrendered error", func(t *testing.T) {
		te := newTestEnv(t, nil)

		if err := te.runCLI("config", "show", "--format", "ini"); err == nil {
			t.Fatal("runCLI() should fail")
		}
		if n := strings.Count(te.errOut(), `unknown format "ini"`); n != 1 {
			t.Errorf("error printed %d times, want 1:\n%s", n, te.errOut())
		}
	})
}
