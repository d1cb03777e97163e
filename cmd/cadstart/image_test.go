// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cadstart/cadstart/internal/container"
	"github.com/cadstart/cadstart/internal/imagebuild"
	"github.com/cadstart/cadstart/pkg/types"
)

const testEnvironmentYAML = `name: cadgen
channels:
  - conda-forge
dependencies:
  - python=3.10
  - pip
  - pip:
      - streamlit==1.38.0
`

// fakeEngine records builds instead of shelling out.
type fakeEngine struct {
	name     string
	builds   []container.BuildOptions
	buildErr error
}

func (e *fakeEngine) Name() string { return e.name }
func (e *fakeEngine) Available() bool { return true }
func (e *fakeEngine) Version(context.Context) (string, error) { return "5.0.0", nil }
func (e *fakeEngine) RemoveImage(context.Context, string, bool) error { return nil }

func (e *fakeEngine) Build(_ context.Context, opts container.BuildOptions) error {
	e.builds = append(e.builds, opts)
	return e.buildErr
}

func (e *fakeEngine) ImageExists(context.Context, string) (bool, error) {
	return len(e.builds) > 0, nil
}

func writeAppSource(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	files := map[string]string{
		"environment.yml":  testEnvironmentYAML,
		"streamlit_app.py": "import streamlit as st\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return src
}

// newImageTestEnv returns a testEnv whose engine factory hands out engine,
// or err when engine is nil. Requested engine types are recorded in asked.
func newImageTestEnv(t *testing.T, engine *fakeEngine, err error, asked *[]container.EngineType) *testEnv {
	t.Helper()
	return newTestEnv(t, func(d *Dependencies) {
		d.NewEngine = func(preferred container.EngineType) (container.Engine, error) {
			if asked != nil {
				*asked = append(*asked, preferred)
			}
			if engine == nil {
				return nil, err
			}
			return engine, nil
		}
	})
}

func TestImageDockerfile(t *testing.T) {
	te := newImageTestEnv(t, &fakeEngine{name: "podman"}, nil, nil)
	src := writeAppSource(t)

	if err := te.run("image", "dockerfile", "--source", src); err != nil {
		t.Fatalf("run() error = %v\n%s", err, te.stderr)
	}

	out := te.out()
	for _, want := range []string{
		"FROM " + imagebuild.DefaultBaseImage,
		"EXPOSE 7860",
		"0.0.0.0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Dockerfile missing %q:\n%s", want, out)
		}
	}
}

func TestImageDockerfile_MissingEnvironmentFile(t *testing.T) {
	te := newImageTestEnv(t, &fakeEngine{name: "podman"}, nil, nil)

	err := te.run("image", "dockerfile", "--source", t.TempDir())

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitFailure {
		t.Fatalf("run() error = %v, want ExitError code 1", err)
	}
	if !errors.Is(err, imagebuild.ErrInvalidEnvironmentManifest) {
		t.Errorf("error should match ErrInvalidEnvironmentManifest, got %v", err)
	}
	if !strings.Contains(te.errOut(), "failed to read environment manifest") {
		t.Errorf("stderr missing diagnostic:\n%s", te.stderr)
	}
}

func TestImageBuild(t *testing.T) {
	engine := &fakeEngine{name: "podman"}
	var asked []container.EngineType
	te := newImageTestEnv(t, engine, nil, &asked)
	src := writeAppSource(t)

	if err := te.run("image", "build", "--source", src, "--tag", "cadgen:test", "--no-cache"); err != nil {
		t.Fatalf("run() error = %v\n%s", err, te.stderr)
	}

	if len(engine.builds) != 1 {
		t.Fatalf("builds = %d, want 1", len(engine.builds))
	}
	got := engine.builds[0]
	if got.Tag != "cadgen:test" {
		t.Errorf("Tag = %q, want cadgen:test", got.Tag)
	}
	if !got.NoCache {
		t.Error("NoCache should be set by --no-cache")
	}
	if got.Pull {
		t.Error("Pull should be unset without --pull")
	}
	if len(asked) != 1 || asked[0] != container.EngineTypePodman {
		t.Errorf("engine requested = %v, want [podman]", asked)
	}
	if !strings.Contains(te.out(), "Built cadgen:test with podman") {
		t.Errorf("stdout missing success line:\n%s", te.stdout)
	}
}

func TestImageBuild_LogsEngineVersion(t *testing.T) {
	te := newImageTestEnv(t, &fakeEngine{name: "podman"}, nil, nil)

	if err := te.run("--verbose", "image", "build", "--source", writeAppSource(t)); err != nil {
		t.Fatalf("run() error = %v\n%s", err, te.stderr)
	}
	got := te.errOut()
	if !strings.Contains(got, "selected container engine") || !strings.Contains(got, "5.0.0") {
		t.Errorf("stderr missing engine version:\n%s", got)
	}
}

func TestImageBuild_EngineFlag(t *testing.T) {
	engine := &fakeEngine{name: "docker"}
	var asked []container.EngineType
	te := newImageTestEnv(t, engine, nil, &asked)

	if err := te.run("image", "build", "--source", writeAppSource(t), "--engine", "docker"); err != nil {
		t.Fatalf("run() error = %v\n%s", err, te.stderr)
	}
	if len(asked) != 1 || asked[0] != container.EngineTypeDocker {
		t.Errorf("engine requested = %v, want [docker]", asked)
	}
	if engine.builds[0].Tag != imagebuild.DefaultTag {
		t.Errorf("Tag = %q, want %q", engine.builds[0].Tag, imagebuild.DefaultTag)
	}
}

func TestImageBuild_InvalidEngineFlag(t *testing.T) {
	var asked []container.EngineType
	te := newImageTestEnv(t, &fakeEngine{name: "podman"}, nil, &asked)

	err := te.run("image", "build", "--source", writeAppSource(t), "--engine", "containerd")

	if !errors.Is(err, container.ErrInvalidEngineType) {
		t.Fatalf("run() error = %v, want ErrInvalidEngineType", err)
	}
	if len(asked) != 0 {
		t.Errorf("no engine should be requested, got %v", asked)
	}
}

func TestImageBuild_EngineNotAvailable(t *testing.T) {
	te := newImageTestEnv(t, nil, &container.EngineNotAvailableError{Engine: "podman", Reason: "not installed"}, nil)

	err := te.run("image", "build", "--source", writeAppSource(t))

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitFailure {
		t.Fatalf("run() error = %v, want ExitError code 1", err)
	}
	if !errors.Is(err, container.ErrEngineNotAvailable) {
		t.Errorf("error should match ErrEngineNotAvailable, got %v", err)
	}
	if !strings.Contains(te.errOut(), "failed to find container engine") {
		t.Errorf("stderr missing diagnostic:\n%s", te.stderr)
	}
}

func TestImageBuild_EngineFailureAborts(t *testing.T) {
	engine := &fakeEngine{name: "podman", buildErr: errors.New("exit status 125")}
	te := newImageTestEnv(t, engine, nil, nil)

	err := te.run("image", "build", "--source", writeAppSource(t))

	var stepErr *imagebuild.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != imagebuild.StepEngineBuild {
		t.Fatalf("run() error = %v, want StepError at %q", err, imagebuild.StepEngineBuild)
	}
	if strings.Contains(te.out(), "Built") {
		t.Errorf("failed build must not report success:\n%s", te.stdout)
	}
}

func TestImageBuild_DryRun(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
	}{
		{"with engine", &fakeEngine{name: "podman"}},
		{"without engine", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newImageTestEnv(t, tt.engine, container.ErrEngineNotAvailable, nil)

			if err := te.run("image", "build", "--dry-run", "--source", writeAppSource(t)); err != nil {
				t.Fatalf("run() error = %v\n%s", err, te.stderr)
			}

			out := te.out()
			for _, want := range []string{"Build plan:", imagebuild.StepEngineBuild, "Dockerfile:", "FROM "} {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			if tt.engine != nil && len(tt.engine.builds) != 0 {
				t.Errorf("dry run must not build, got %d builds", len(tt.engine.builds))
			}
		})
	}
}

func TestImageBuild_StagingDir(t *testing.T) {
	engine := &fakeEngine{name: "podman"}
	te := newImageTestEnv(t, engine, nil, nil)
	staging := t.TempDir()

	if err := te.run("image", "build", "--source", writeAppSource(t), "--staging-dir", staging); err != nil {
		t.Fatalf("run() error = %v\n%s", err, te.stderr)
	}
	if got := filepath.Dir(engine.builds[0].ContextDir); got != staging {
		t.Errorf("context staged under %q, want %q", got, staging)
	}
	entries, err := os.ReadDir(staging)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging directory not cleaned up: %d entries", len(entries))
	}
}
