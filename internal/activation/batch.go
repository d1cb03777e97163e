// SPDX-License-Identifier: MPL-2.0

package activation

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// envMarker separates activate.bat chatter from the output of "set".
const envMarker = "__CADSTART_ENV__"

// ExecCommandFunc creates commands; exec.CommandContext in production.
type ExecCommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// BatchActivator activates an environment through a Windows activate.bat
// hook run by cmd.exe.
type BatchActivator struct {
	// BaseEnv is the environment cmd.exe starts with.
	BaseEnv []string
	// ExecCommand overrides process creation. Nil uses exec.CommandContext.
	ExecCommand ExecCommandFunc
}

// Activate implements Activator.
func (a *BatchActivator) Activate(ctx context.Context, bat, envName string) (*Environment, error) {
	execCommand := a.ExecCommand
	if execCommand == nil {
		execCommand = exec.CommandContext
	}

	cmd := execCommand(ctx, "cmd.exe", BatchArgs(bat, envName)...)
	cmd.Env = append(cmd.Env, a.BaseEnv...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &ActivationError{Environment: envName, Path: bat, Err: err}
	}

	vars, err := ParseSetOutput(stdout.Bytes())
	if err != nil {
		return nil, &ActivationError{Environment: envName, Path: bat, Err: err}
	}

	env := &Environment{Name: envName, Vars: vars}
	env.Prefix, _ = env.Lookup("CONDA_PREFIX")
	slog.DebugContext(ctx, "activated conda batch hook", "env", envName, "hook", bat, "prefix", env.Prefix)
	return env, nil
}

// BatchArgs returns the cmd.exe arguments that activate envName with bat and
// print the resulting environment.
func BatchArgs(bat, envName string) []string {
	return []string{"/d", "/c", "call", bat, envName, "&&", "echo", envMarker, "&&", "set"}
}

// ParseSetOutput extracts KEY=VALUE lines printed after the marker line.
func ParseSetOutput(out []byte) ([]string, error) {
	var vars []string
	seenMarker := false
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if !seenMarker {
			seenMarker = strings.TrimSpace(line) == envMarker
			continue
		}
		// cmd.exe prints per-drive cwd entries as "=C:=C:\dir"; skip them.
		if line == "" || strings.HasPrefix(line, "=") || !strings.Contains(line, "=") {
			continue
		}
		vars = append(vars, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if !seenMarker {
		return nil, errors.New("activation hook did not complete")
	}
	return vars, nil
}
