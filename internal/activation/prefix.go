// SPDX-License-Identifier: MPL-2.0

package activation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cadstart/cadstart/pkg/platform"
)

// baseEnvName is the environment that lives at the conda root itself.
const baseEnvName = "base"

// PrefixActivator activates an environment directly from a conda root
// directory, without running any conda scripts.
type PrefixActivator struct {
	// BaseEnv is the environment activation starts from.
	BaseEnv []string
}

// Activate implements Activator.
func (a *PrefixActivator) Activate(ctx context.Context, root, envName string) (*Environment, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ActivationError{Environment: envName, Path: root, Err: err}
	}

	prefix := root
	if envName != baseEnvName {
		prefix = filepath.Join(root, "envs", envName)
	}

	info, err := os.Stat(prefix)
	if err != nil {
		return nil, &ActivationError{Environment: envName, Path: root, Err: fmt.Errorf("environment prefix: %w", err)}
	}
	if !info.IsDir() {
		return nil, &ActivationError{Environment: envName, Path: root, Err: fmt.Errorf("environment prefix %s is not a directory", prefix)}
	}

	interpreter := InterpreterPath(prefix, runtime.GOOS)
	if _, err := os.Stat(interpreter); err != nil {
		return nil, &ActivationError{
			Environment: envName,
			Path:        root,
			Err:         fmt.Errorf("environment looks incomplete, interpreter missing: %w", err),
		}
	}

	oldPath := ""
	env := &Environment{Name: envName, Prefix: prefix, Vars: a.BaseEnv}
	if p, ok := env.Lookup("PATH"); ok {
		oldPath = p
	}
	newPath := strings.Join(BinDirs(prefix, runtime.GOOS), string(os.PathListSeparator))
	if oldPath != "" {
		newPath += string(os.PathListSeparator) + oldPath
	}

	env.Vars = withVars(a.BaseEnv, map[string]string{
		"PATH":                  newPath,
		"CONDA_PREFIX":          prefix,
		"CONDA_DEFAULT_ENV":     envName,
		"CONDA_SHLVL":           "1",
		"CONDA_PROMPT_MODIFIER": "(" + envName + ") ",
	})

	slog.DebugContext(ctx, "activated conda prefix", "env", envName, "prefix", prefix)
	return env, nil
}

// InterpreterPath returns the python interpreter path inside an environment
// prefix for goos.
func InterpreterPath(prefix, goos string) string {
	python := platform.ExecutableName("python", goos)
	if goos == platform.Windows {
		return filepath.Join(prefix, python)
	}
	return filepath.Join(prefix, "bin", python)
}

// BinDirs returns the directories conda puts on PATH for an environment
// prefix, in the order conda itself uses.
func BinDirs(prefix, goos string) []string {
	if goos == platform.Windows {
		return []string{
			prefix,
			filepath.Join(prefix, "Library", "mingw-w64", "bin"),
			filepath.Join(prefix, "Library", "usr", "bin"),
			filepath.Join(prefix, "Library", "bin"),
			filepath.Join(prefix, "Scripts"),
			filepath.Join(prefix, "bin"),
		}
	}
	return []string{filepath.Join(prefix, "bin")}
}
