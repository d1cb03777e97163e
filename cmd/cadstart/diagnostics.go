// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cadstart/cadstart/internal/activation"
	"github.com/cadstart/cadstart/internal/container"
	"github.com/cadstart/cadstart/internal/envresolve"
	"github.com/cadstart/cadstart/internal/imagebuild"
	"github.com/cadstart/cadstart/internal/issue"
	"github.com/cadstart/cadstart/internal/launcher"

	"golang.org/x/term"
)

// classifyError maps a domain error to an ActionableError linked to its
// catalog entry. Errors that already are actionable are returned as-is.
func classifyError(err error) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	var (
		resErr   *envresolve.ResolutionError
		actErr   *activation.ActivationError
		lnchErr  *launcher.LaunchError
		stepErr  *imagebuild.StepError
		engineNA *container.EngineNotAvailableError
	)
	switch {
	case errors.As(err, &resErr):
		return issue.NewErrorContext().
			WithOperation("resolve conda environment").
			WithResource(resErr.Environment).
			WithSuggestion("Install Miniconda, Anaconda or Miniforge").
			WithSuggestion("List the install in candidate_paths in config.cue").
			WithSuggestion("Run 'cadstart env' to see every location that was probed").
			WithIssue(issue.EnvironmentNotFoundId).
			Wrap(err).
			Build()
	case errors.As(err, &actErr):
		return issue.NewErrorContext().
			WithOperation("activate conda environment").
			WithResource(actErr.Environment).
			WithSuggestion("Check the environment with 'conda env list'").
			WithSuggestion("Recreate it with 'conda env create -f environment.yml'").
			WithIssue(issue.ActivationFailedId).
			Wrap(err).
			Build()
	case errors.As(err, &lnchErr):
		return issue.NewErrorContext().
			WithOperation("start application").
			WithResource(lnchErr.Executable).
			WithSuggestion("Check that " + lnchErr.Executable + " is installed in the environment").
			WithSuggestion("Check that the working directory exists").
			WithIssue(issue.LaunchFailedId).
			Wrap(err).
			Build()
	case errors.As(err, &engineNA), errors.Is(err, container.ErrEngineNotAvailable):
		return issue.NewErrorContext().
			WithOperation("find container engine").
			WithSuggestion("Install Podman or Docker").
			WithSuggestion("Select the engine with --engine or container.engine").
			WithIssue(issue.ContainerEngineNotFoundId).
			Wrap(err).
			Build()
	case errors.As(err, &stepErr) && stepErr.Step == imagebuild.StepParseEnvironment:
		return issue.NewErrorContext().
			WithOperation("read environment manifest").
			WithSuggestion("Check the file set in container.environment_file").
			WithIssue(issue.EnvironmentManifestInvalidId).
			Wrap(err).
			Build()
	case errors.As(err, &stepErr):
		return issue.NewErrorContext().
			WithOperation(stepErr.Step).
			WithIssue(issue.ImageBuildFailedId).
			Wrap(err).
			Build()
	default:
		return issue.WrapWithOperation(err, "run cadstart")
	}
}

// renderError prints the error with its suggestions and, when linked, the
// catalog entry.
func renderError(w io.Writer, err error, verbose bool) {
	ae := classifyError(err)
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), ae.Format(verbose))
	renderIssue(w, ae.IssueID)
}

// renderIssue prints a catalog entry. Unknown ids print nothing.
func renderIssue(w io.Writer, id issue.Id) {
	if id == 0 {
		return
	}
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, err := entry.Render(issueStyle(w))
	if err != nil {
		slog.Warn("failed to render issue catalog entry", "issueID", id, "error", err)
		return
	}
	fmt.Fprint(w, rendered)
}

// issueStyle returns the glamour style for w. Output that is not a terminal
// gets plain text.
func issueStyle(w io.Writer) string {
	if f, ok := w.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		return "dark"
	}
	return "notty"
}

// pause waits for Enter so the diagnostic stays visible when the launcher
// runs in a window that closes on exit. It returns immediately when stdin is
// not a terminal.
func (a *App) pause(noPause bool) {
	if noPause || !a.isTerminal() {
		return
	}
	fmt.Fprint(a.stderr, SubtitleStyle.Render("Press Enter to exit..."))
	_, _ = bufio.NewReader(a.stdin).ReadString('\n')
}
