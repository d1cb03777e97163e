// SPDX-License-Identifier: MPL-2.0

package activation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cadstart/cadstart/internal/envresolve"
)

func TestEnvironment_Lookup(t *testing.T) {
	t.Parallel()

	env := &Environment{Vars: []string{"A=1", "B=two=parts", "A=3", "EMPTY="}}

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"A", "3", true},
		{"B", "two=parts", true},
		{"EMPTY", "", true},
		{"MISSING", "", false},
	}
	for _, tt := range tests {
		got, ok := env.Lookup(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Lookup(%q) = (%q, %v), want (%q, %v)", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEnvironment_LookPath(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("executable bits are POSIX-only")
	}

	first := t.TempDir()
	second := t.TempDir()
	if err := os.WriteFile(filepath.Join(first, "streamlit"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(second, "streamlit"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	env := &Environment{Vars: []string{"PATH=" + first + string(os.PathListSeparator) + second}}

	got, err := env.LookPath("streamlit")
	if err != nil {
		t.Fatalf("LookPath() error = %v", err)
	}
	if want := filepath.Join(second, "streamlit"); got != want {
		t.Errorf("LookPath() = %q, want %q (non-executable entries are skipped)", got, want)
	}

	if _, err := env.LookPath("python"); !errors.Is(err, ErrExecutableNotFound) {
		t.Errorf("LookPath(python) error = %v, want ErrExecutableNotFound", err)
	}

	direct := filepath.Join(second, "streamlit")
	if got, err := env.LookPath(direct); err != nil || got != direct {
		t.Errorf("LookPath(%q) = (%q, %v)", direct, got, err)
	}
}

func TestForCandidate(t *testing.T) {
	t.Parallel()

	base := WithBaseEnv([]string{"X=1"})
	if _, ok := ForCandidate(envresolve.KindShellHook, base).(*ShellActivator); !ok {
		t.Error("shell-hook candidates should use ShellActivator")
	}
	if _, ok := ForCandidate(envresolve.KindBatchHook, base).(*BatchActivator); !ok {
		t.Error("batch-hook candidates should use BatchActivator")
	}
	a, ok := ForCandidate(envresolve.KindPrefix, base).(*PrefixActivator)
	if !ok {
		t.Fatal("prefix candidates should use PrefixActivator")
	}
	if len(a.BaseEnv) != 1 || a.BaseEnv[0] != "X=1" {
		t.Errorf("BaseEnv = %v, want option applied", a.BaseEnv)
	}
}

func TestActivatorFunc(t *testing.T) {
	t.Parallel()

	var called string
	f := ActivatorFunc(func(_ context.Context, path, name string) (*Environment, error) {
		called = path + ":" + name
		return &Environment{Name: name}, nil
	})
	if _, err := f.Activate(context.Background(), "/opt/conda", "cadgen"); err != nil {
		t.Fatal(err)
	}
	if called != "/opt/conda:cadgen" {
		t.Errorf("called = %q", called)
	}
}
