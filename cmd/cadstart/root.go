// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the command tree for app. Running the root command
// without a subcommand launches the application.
func NewRootCommand(app *App) *cobra.Command {
	var verbose bool
	lf := &launchFlags{}

	rootCmd := &cobra.Command{
		Use:   "cadstart",
		Short: "Launch the CAD generator in its conda environment",
		Long: TitleStyle.Render("cadstart") + SubtitleStyle.Render(" - launch the CAD generator in its conda environment") + `

cadstart finds a conda install on this machine, activates the application
environment without touching your shell, and runs the Streamlit server in
the foreground. The server's exit code becomes cadstart's exit code.

` + SubtitleStyle.Render("Examples:") + `
  cadstart                      Launch on localhost:8501
  cadstart --port 8600          Launch on another port
  cadstart env                  Show which conda install would be used
  cadstart image build          Build the container image
  cadstart config init          Write the default configuration file`,
		Args: cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.installLogger(verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd, app, lf, verbose)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $HOME/.config/cadstart/config.cue)")
	lf.register(rootCmd)

	rootCmd.AddCommand(newLaunchCommand(app, &verbose))
	rootCmd.AddCommand(newEnvCommand(app))
	rootCmd.AddCommand(newImageCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))
	rootCmd.AddCommand(newIssuesCommand(app))

	return rootCmd
}

// Execute runs the CLI and exits with the resulting code.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := execute(context.Background(), NewRootCommand(app)); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// execute runs rootCmd through fang.
func execute(ctx context.Context, rootCmd *cobra.Command) error {
	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	return fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	)
}

// handleError prints errors that no command has reported yet. An ExitError
// was already rendered by its command or carries a child's exit code, so it
// prints nothing.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
