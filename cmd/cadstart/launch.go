// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/cadstart/cadstart/internal/config"
	"github.com/cadstart/cadstart/internal/launcher"
	"github.com/cadstart/cadstart/pkg/types"

	"github.com/spf13/cobra"
)

// launchFlags override the launch configuration for one invocation.
type launchFlags struct {
	envName  string
	host     string
	port     int
	headless bool
	workdir  string
	noPause  bool
}

func (f *launchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.envName, "env", "n", "", "conda environment name (default from config: cadgen)")
	cmd.Flags().StringVar(&f.host, "host", "", "server bind address (default localhost)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "server port (default 8501)")
	cmd.Flags().BoolVar(&f.headless, "headless", false, "do not open a browser")
	cmd.Flags().StringVarP(&f.workdir, "workdir", "w", "", "working directory for the server")
	cmd.Flags().BoolVar(&f.noPause, "no-pause", false, "exit immediately on failure instead of waiting for Enter")
}

// apply copies the flags the user set onto cfg.
func (f *launchFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("env") {
		cfg.EnvironmentName = f.envName
	}
	if flags.Changed("host") {
		cfg.BindHost = f.host
	}
	if flags.Changed("port") {
		cfg.BindPort = types.BindPort(f.port)
	}
	if flags.Changed("headless") {
		cfg.Headless = f.headless
	}
	if flags.Changed("workdir") {
		cfg.WorkingDirectory = f.workdir
	}
	if flags.Changed("no-pause") {
		cfg.UI.NoPause = f.noPause
	}
}

func newLaunchCommand(app *App, verbose *bool) *cobra.Command {
	lf := &launchFlags{}
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Activate the environment and run the server (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd, app, lf, *verbose)
		},
	}
	lf.register(cmd)
	return cmd
}

// runLaunch is the native-host path: resolve, activate, launch, propagate.
// Failures before the child exits are rendered, followed by a pause, and
// exit with code 1. A child exit code is returned unchanged.
func runLaunch(cmd *cobra.Command, app *App, lf *launchFlags, verbose bool) error {
	ctx := cmd.Context()

	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return app.launchFailed(cmd, err, lf.noPause, verbose)
	}
	lf.apply(cmd, cfg)
	verbose = verbose || cfg.UI.Verbose

	spec, err := launcher.NewLaunchSpec(cfg.LaunchParams())
	if err != nil {
		return app.launchFailed(cmd, err, cfg.UI.NoPause, verbose)
	}
	d := cfg.Descriptor(app.goos, app.home, app.getenv)

	app.logger.Debug("launching", "env", d.Name(), "command", spec.String())
	code, err := app.newLauncher().Run(ctx, d, spec)
	if err != nil {
		return app.launchFailed(cmd, err, cfg.UI.NoPause, verbose)
	}

	if !code.IsSuccess() {
		app.logger.Debug("server exited", "code", code)
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return &ExitError{Code: code}
	}
	return nil
}

func (a *App) launchFailed(cmd *cobra.Command, err error, noPause, verbose bool) error {
	renderError(a.stderr, err, verbose)
	a.pause(noPause)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: types.ExitFailure, Err: err}
}
