// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cadstart/cadstart/internal/container"
)

// checkTestcontainersAvailable safely checks if testcontainers can be used.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestImage_Integration builds the real image and checks that a container
// started from it serves the application on the exposed port. It downloads
// the conda base image and packages, so it only runs when
// CADSTART_IMAGE_INTEGRATION=1.
func TestImage_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("CADSTART_IMAGE_INTEGRATION") != "1" {
		t.Skip("set CADSTART_IMAGE_INTEGRATION=1 to build the application image")
	}

	engine, err := container.NewEngine(container.EngineTypePodman)
	if err != nil {
		t.Skipf("skipping image integration test: %v", err)
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping image integration test: testcontainers provider not available")
	}

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "environment.yml"), "name: cadgen\nchannels: [conda-forge]\ndependencies:\n  - python=3.11\n  - streamlit\n")
	writeFile(t, filepath.Join(src, "streamlit_app.py"), "import streamlit as st\nst.title('cadgen')\n")

	m, err := DefaultBuildManifest(src)
	if err != nil {
		t.Fatal(err)
	}
	m.SystemPackages = nil
	m.Tag = "cadstart-integration:test"

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
	defer cancel()

	if _, err := NewBuilder(engine, WithOutput(io.Discard, io.Discard)).Build(ctx, m); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() {
		_ = engine.RemoveImage(context.Background(), m.Tag, true)
	})

	const port = "7860/tcp"
	if m.ExposedPort.String()+"/tcp" != port {
		t.Fatalf("exposed port %s does not match %s", m.ExposedPort, port)
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        m.Tag,
			ExposedPorts: []string{port},
			WaitingFor: wait.ForHTTP("/_stcore/health").
				WithPort(port).
				WithStatusCodeMatcher(func(status int) bool { return status == http.StatusOK }).
				WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(context.Background())
	})

	endpoint, err := c.Endpoint(ctx, "http")
	if err != nil {
		t.Fatalf("Endpoint() error = %v", err)
	}
	resp, err := http.Get(endpoint + "/_stcore/health") //nolint:noctx // test-only request
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
