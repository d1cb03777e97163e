// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"slices"
	"strings"
	"testing"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	tests := []struct {
		name                     string
		version, commit, builtAt string
		want                     string
	}{
		{"ldflags", "v0.3.0", "abc1234", "2026-03-01T10:00:00Z", "v0.3.0 (commit: abc1234, built: 2026-03-01T10:00:00Z)"},
		{"dev build", "dev", "unknown", "unknown", "dev (built from source)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
			t.Cleanup(func() {
				Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
			})

			Version, Commit, BuildDate = tt.version, tt.commit, tt.builtAt
			if got := getVersionString(); got != tt.want {
				t.Errorf("getVersionString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRootCommand_Tree(t *testing.T) {
	root := NewRootCommand(newTestEnv(t, nil).app)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"launch", "env", "image", "config", "issues"} {
		if !slices.Contains(names, want) {
			t.Errorf("root is missing subcommand %q (have %v)", want, names)
		}
	}

	// Launch flags are accepted on the root so that a bare invocation launches.
	launch, _, err := root.Find([]string{"launch"})
	if err != nil {
		t.Fatal(err)
	}
	for _, flag := range []string{"env", "host", "port", "headless", "workdir", "no-pause"} {
		if root.Flags().Lookup(flag) == nil {
			t.Errorf("root is missing --%s", flag)
		}
		if launch.Flags().Lookup(flag) == nil {
			t.Errorf("launch is missing --%s", flag)
		}
	}
	if root.PersistentFlags().Lookup("verbose") == nil || root.PersistentFlags().Lookup("config") == nil {
		t.Error("--verbose and --config must be persistent")
	}
}

func TestRootCommand_RejectsArgs(t *testing.T) {
	te := newTestEnv(t, nil)

	err := te.run("streamlit_app.py")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("run() error = %v, want unknown command", err)
	}
}

func TestIssuesCommand(t *testing.T) {
	te := newTestEnv(t, nil)

	if err := te.run("issues"); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	out := te.stdout.String()
	if strings.Contains(out, "\x1b[") {
		t.Error("output to a non-terminal contains escape sequences")
	}
	for _, want := range []string{"conda", "manifest", "Podman"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
