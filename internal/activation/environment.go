// SPDX-License-Identifier: MPL-2.0

package activation

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/cadstart/cadstart/pkg/platform"
)

// ErrExecutableNotFound is returned by Environment.LookPath.
var ErrExecutableNotFound = errors.New("executable not found in activated PATH")

// Environment is the result of a successful activation.
type Environment struct {
	// Name is the conda environment name.
	Name string
	// Prefix is the environment prefix directory, when known.
	Prefix string
	// Vars is the complete KEY=VALUE list the child process runs with.
	Vars []string
}

// Lookup returns the value of key in the activated variables.
// The last assignment wins, matching how exec treats duplicate keys.
func (e *Environment) Lookup(key string) (string, bool) {
	for i := len(e.Vars) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(e.Vars[i], "=")
		if ok && envKeyEqual(k, key) {
			return v, true
		}
	}
	return "", false
}

// LookPath searches the activated PATH for file, the way the shell of the
// activated environment would. Paths containing a separator are checked
// directly.
func (e *Environment) LookPath(file string) (string, error) {
	if strings.ContainsAny(file, `/\`) {
		if isExecutable(file) {
			return file, nil
		}
		return "", &fs.PathError{Op: "lookpath", Path: file, Err: ErrExecutableNotFound}
	}

	pathVar, _ := e.Lookup("PATH")
	names := []string{file}
	if runtime.GOOS == platform.Windows && filepath.Ext(file) == "" {
		names = names[:0]
		pathext, _ := e.Lookup("PATHEXT")
		if pathext == "" {
			pathext = ".COM;.EXE;.BAT;.CMD"
		}
		for _, ext := range strings.Split(pathext, ";") {
			if ext != "" {
				names = append(names, file+strings.ToLower(ext))
			}
		}
	}

	for _, dir := range filepath.SplitList(pathVar) {
		if dir == "" {
			continue
		}
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if isExecutable(candidate) {
				return candidate, nil
			}
		}
	}
	return "", &fs.PathError{Op: "lookpath", Path: file, Err: ErrExecutableNotFound}
}

// withVars returns base with every key in set replaced (or appended).
func withVars(base []string, set map[string]string) []string {
	out := make([]string, 0, len(base)+len(set))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, replaced := lookupFold(set, k); replaced {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, k+"="+set[k])
	}
	return out
}

func lookupFold(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if envKeyEqual(k, key) {
			return v, true
		}
	}
	return "", false
}

// envKeyEqual compares variable names; Windows names are case-insensitive.
func envKeyEqual(a, b string) bool {
	if runtime.GOOS == platform.Windows {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == platform.Windows {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
