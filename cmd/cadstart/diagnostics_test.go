// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/cadstart/cadstart/internal/activation"
	"github.com/cadstart/cadstart/internal/container"
	"github.com/cadstart/cadstart/internal/envresolve"
	"github.com/cadstart/cadstart/internal/imagebuild"
	"github.com/cadstart/cadstart/internal/issue"
	"github.com/cadstart/cadstart/internal/launcher"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantID    issue.Id
		wantError string
	}{
		{
			name:      "resolution",
			err:       &envresolve.ResolutionError{Environment: "cadgen"},
			wantID:    issue.EnvironmentNotFoundId,
			wantError: "failed to resolve conda environment: cadgen",
		},
		{
			name:      "activation",
			err:       &activation.ActivationError{Environment: "cadgen", Path: "/opt/conda", Err: errors.New("exit status 1")},
			wantID:    issue.ActivationFailedId,
			wantError: "failed to activate conda environment: cadgen",
		},
		{
			name:      "launch",
			err:       &launcher.LaunchError{Executable: "streamlit", Err: activation.ErrExecutableNotFound},
			wantID:    issue.LaunchFailedId,
			wantError: "failed to start application: streamlit",
		},
		{
			name:      "engine not available",
			err:       &container.EngineNotAvailableError{Engine: "podman", Reason: "not installed"},
			wantID:    issue.ContainerEngineNotFoundId,
			wantError: "failed to find container engine",
		},
		{
			name:      "engine missing at build step",
			err:       &imagebuild.StepError{Step: imagebuild.StepEngineBuild, Err: container.ErrEngineNotAvailable},
			wantID:    issue.ContainerEngineNotFoundId,
			wantError: "failed to find container engine",
		},
		{
			name:      "environment manifest",
			err:       &imagebuild.StepError{Step: imagebuild.StepParseEnvironment, Err: imagebuild.ErrInvalidEnvironmentManifest},
			wantID:    issue.EnvironmentManifestInvalidId,
			wantError: "failed to read environment manifest",
		},
		{
			name:      "other build step",
			err:       &imagebuild.StepError{Step: imagebuild.StepVerify, Err: errors.New("image missing")},
			wantID:    issue.ImageBuildFailedId,
			wantError: "failed to " + imagebuild.StepVerify,
		},
		{
			name:      "unclassified",
			err:       errors.New("boom"),
			wantError: "failed to run cadstart: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ae := classifyError(tt.err)
			if ae.IssueID != tt.wantID {
				t.Errorf("IssueID = %d, want %d", ae.IssueID, tt.wantID)
			}
			if !strings.HasPrefix(ae.Error(), tt.wantError) {
				t.Errorf("Error() = %q, want prefix %q", ae.Error(), tt.wantError)
			}
			if !errors.Is(ae, tt.err) {
				t.Error("classified error must wrap the original")
			}
		})
	}
}

func TestClassifyError_KeepsActionable(t *testing.T) {
	t.Parallel()

	orig := issue.NewErrorContext().
		WithOperation("load configuration").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(errors.New("syntax error")).
		Build()

	if got := classifyError(&ExitError{Code: 1, Err: orig}); got != orig {
		t.Errorf("classifyError() = %v, want the original ActionableError", got)
	}
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such file or directory")
	err := &launcher.LaunchError{Executable: "streamlit", Err: cause}

	var quiet, verbose bytes.Buffer
	renderError(&quiet, err, false)
	renderError(&verbose, err, true)

	if !strings.Contains(quiet.String(), "Check that streamlit is installed in the environment") {
		t.Errorf("suggestions missing:\n%s", quiet.String())
	}
	if strings.Contains(quiet.String(), "Error chain:") {
		t.Errorf("non-verbose output should not include the chain:\n%s", quiet.String())
	}
	if !strings.Contains(verbose.String(), "Error chain:") {
		t.Errorf("verbose output should include the chain:\n%s", verbose.String())
	}
}

func TestRenderError_PlainWhenNotTerminal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderError(&buf, &launcher.LaunchError{Executable: "streamlit", Err: errors.New("exit status 127")}, false)

	// The first line carries the lipgloss-styled prefix; the catalog entry follows.
	_, entry, ok := strings.Cut(buf.String(), "\n")
	if !ok || strings.TrimSpace(entry) == "" {
		t.Fatalf("catalog entry missing:\n%s", buf.String())
	}
	if strings.Contains(entry, "\x1b[") {
		t.Errorf("catalog entry written to a non-terminal contains escape sequences:\n%q", entry)
	}
	if got := issueStyle(&buf); got != "notty" {
		t.Errorf("issueStyle(buffer) = %q, want notty", got)
	}
}
