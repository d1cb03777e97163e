// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"testing"
)

func TestEngineType_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   EngineType
		wantErr bool
	}{
		{EngineTypeDocker, false},
		{EngineTypePodman, false},
		{"", true},
		{"containerd", true},
	}
	for _, tt := range tests {
		err := tt.value.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("EngineType(%q).Validate() error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidEngineType) {
			t.Errorf("error %v does not wrap ErrInvalidEngineType", err)
		}
	}
}

func TestNewEngine_Preference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		preferred  EngineType
		failBinary string
		failOnArg  string
		want       string
	}{
		{"docker preferred and available", EngineTypeDocker, "", "", "docker"},
		{"podman preferred and available", EngineTypePodman, "", "", "podman"},
		{"podman falls back to docker", EngineTypePodman, "", "{{.Version}}", "docker"},
		{"docker falls back to podman", EngineTypeDocker, "", "{{.Server.Version}}", "podman"},
		{"neither engine available", EngineTypePodman, "/fake/bin", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &MockCommandRecorder{FailBinary: tt.failBinary, FailOnArg: tt.failOnArg}
			engine, err := NewEngine(tt.preferred, withBinaryPath("/fake/bin"), WithExecCommand(rec.CommandFunc(t)))
			if tt.want == "" {
				var notAvail *EngineNotAvailableError
				if !errors.As(err, &notAvail) || !errors.Is(err, ErrEngineNotAvailable) {
					t.Fatalf("NewEngine() error = %v, want EngineNotAvailableError", err)
				}
				if notAvail.Engine != "podman" {
					t.Errorf("Engine = %q", notAvail.Engine)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEngine() error = %v", err)
			}
			if engine.Name() != tt.want {
				t.Errorf("NewEngine() = %s, want %s", engine.Name(), tt.want)
			}
		})
	}
}

func TestNewEngine_InvalidType(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine("lxc"); !errors.Is(err, ErrInvalidEngineType) {
		t.Errorf("NewEngine() error = %v, want ErrInvalidEngineType", err)
	}
}

func TestEngines_VersionAndImageExists(t *testing.T) {
	t.Parallel()

	rec := &MockCommandRecorder{Stdout: "27.3.1\n"}
	docker := NewDockerEngine(withBinaryPath("/fake/docker"), WithExecCommand(rec.CommandFunc(t)))

	v, err := docker.Version(context.Background())
	if err != nil || v != "27.3.1" {
		t.Errorf("Version() = (%q, %v)", v, err)
	}
	rec.AssertArgsContain(t, "{{.Server.Version}}")

	ok, err := docker.ImageExists(context.Background(), "cadgen:latest")
	if err != nil || !ok {
		t.Errorf("ImageExists() = (%v, %v), want (true, nil)", ok, err)
	}
	rec.AssertArgsContain(t, "image inspect cadgen:latest")

	missing := &MockCommandRecorder{ExitCode: 1}
	podman := NewPodmanEngine(withBinaryPath("/fake/podman"), WithExecCommand(missing.CommandFunc(t)))
	ok, err = podman.ImageExists(context.Background(), "cadgen:latest")
	if err != nil || ok {
		t.Errorf("podman ImageExists() = (%v, %v), want (false, nil)", ok, err)
	}
	missing.AssertArgsContain(t, "image exists cadgen:latest")

	broken := &MockCommandRecorder{ExitCode: 125}
	podman = NewPodmanEngine(withBinaryPath("/fake/podman"), WithExecCommand(broken.CommandFunc(t)))
	if _, err := podman.ImageExists(context.Background(), "x"); err == nil {
		t.Error("podman ImageExists() should report engine failures")
	}
}

func TestEngines_UnavailableWithoutBinary(t *testing.T) {
	t.Parallel()

	rec := &MockCommandRecorder{}
	if NewDockerEngine(withBinaryPath(""), WithExecCommand(rec.CommandFunc(t))).Available() {
		t.Error("docker without binary should be unavailable")
	}
	if NewPodmanEngine(withBinaryPath(""), WithExecCommand(rec.CommandFunc(t))).Available() {
		t.Error("podman without binary should be unavailable")
	}
	rec.AssertInvocationCount(t, 0)
}
