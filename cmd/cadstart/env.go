// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/cadstart/cadstart/internal/envresolve"
	"github.com/cadstart/cadstart/pkg/types"

	"github.com/spf13/cobra"
)

func newEnvCommand(app *App) *cobra.Command {
	var envName string
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the activation candidates and which one resolves",
		Long: `Show the conda locations probed for the environment, in priority order,
and the first one that exists. Nothing is activated or executed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnv(cmd, app, envName)
		},
	}
	cmd.Flags().StringVarP(&envName, "env", "n", "", "conda environment name")
	return cmd
}

func runEnv(cmd *cobra.Command, app *App, envName string) error {
	ctx := cmd.Context()
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("env") {
		cfg.EnvironmentName = envName
	}

	d := cfg.Descriptor(app.goos, app.home, app.getenv)
	resolved, resErr := envresolve.Resolve(ctx, d, app.prober)

	w := app.stdout
	fmt.Fprintf(w, "%s %s\n\n", TitleStyle.Render("Environment:"), CmdStyle.Render(d.Name()))
	fmt.Fprintln(w, TitleStyle.Render("Candidates (in priority order):"))
	candidates := d.Candidates()
	if len(candidates) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, c := range candidates {
		mark := SubtitleStyle.Render("-")
		if resErr == nil && c == resolved {
			mark = SuccessStyle.Render("✓")
		}
		fmt.Fprintf(w, "  %s %s %s\n", mark, c.Path, SubtitleStyle.Render("("+c.Kind.String()+")"))
	}
	fmt.Fprintln(w)

	if resErr != nil {
		var rerr *envresolve.ResolutionError
		if errors.As(resErr, &rerr) {
			renderError(app.stderr, resErr, false)
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true
			return &ExitError{Code: types.ExitFailure, Err: resErr}
		}
		return resErr
	}

	fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("Resolved:"), resolved.Path,
		SubtitleStyle.Render("(activated as "+resolved.Kind.String()+")"))
	return nil
}
