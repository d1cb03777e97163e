// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/cadstart/cadstart/internal/container"
	"github.com/cadstart/cadstart/internal/imagebuild"
	"github.com/cadstart/cadstart/pkg/types"

	"github.com/spf13/cobra"
)

// imageFlags select the build inputs for one invocation.
type imageFlags struct {
	source  string
	tag     string
	engine  string
	staging string
	dryRun  bool
	noCache bool
	pull    bool
}

func newImageCommand(app *App) *cobra.Command {
	imgCmd := &cobra.Command{
		Use:   "image",
		Short: "Build the container image",
		Long: `Build the container image that serves the application on 0.0.0.0:7860.

The image installs the OS shared libraries, materializes the conda
environment from environment.yml, copies the application source, and
runs the server headless.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	bf := &imageFlags{}
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the image with Podman or Docker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImageBuild(cmd, app, bf)
		},
	}
	buildCmd.Flags().StringVarP(&bf.source, "source", "s", "", "application source directory (default from config)")
	buildCmd.Flags().StringVarP(&bf.tag, "tag", "t", "", "image tag (default cadgen:latest)")
	buildCmd.Flags().StringVar(&bf.engine, "engine", "", "container engine: podman or docker (default from config)")
	buildCmd.Flags().BoolVar(&bf.dryRun, "dry-run", false, "print the build plan and Dockerfile without building")
	buildCmd.Flags().BoolVar(&bf.noCache, "no-cache", false, "do not use the engine build cache")
	buildCmd.Flags().BoolVar(&bf.pull, "pull", false, "always pull a newer base image")
	buildCmd.Flags().StringVar(&bf.staging, "staging-dir", "", "parent directory for the temporary build context (default system temp)")

	df := &imageFlags{}
	dockerfileCmd := &cobra.Command{
		Use:   "dockerfile",
		Short: "Print the rendered Dockerfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := buildManifest(cmd, app, df)
			if err != nil {
				return err
			}
			dockerfile, _, err := imagebuild.Render(m)
			if err != nil {
				return imageFailed(cmd, app, err)
			}
			fmt.Fprint(app.stdout, dockerfile)
			return nil
		},
	}
	dockerfileCmd.Flags().StringVarP(&df.source, "source", "s", "", "application source directory (default from config)")

	imgCmd.AddCommand(buildCmd, dockerfileCmd)
	return imgCmd
}

// buildManifest loads the configuration and applies the flags.
func buildManifest(cmd *cobra.Command, app *App, f *imageFlags) (imagebuild.BuildManifest, error) {
	cfg, err := app.loadConfig(cmd.Context())
	if err != nil {
		return imagebuild.BuildManifest{}, err
	}
	if f.engine != "" {
		cfg.Container.Engine = container.EngineType(f.engine)
		if err := cfg.Container.Engine.Validate(); err != nil {
			return imagebuild.BuildManifest{}, err
		}
	}
	if f.tag != "" {
		cfg.Container.Tag = f.tag
	}
	m, err := cfg.BuildManifest(f.source)
	if err != nil {
		return imagebuild.BuildManifest{}, imageFailed(cmd, app, &imagebuild.StepError{Step: imagebuild.StepValidate, Err: err})
	}
	if f.engine == "" {
		f.engine = cfg.Container.Engine.String()
	}
	return m, nil
}

func runImageBuild(cmd *cobra.Command, app *App, f *imageFlags) error {
	ctx := cmd.Context()

	m, err := buildManifest(cmd, app, f)
	if err != nil {
		return err
	}

	engine, engineErr := app.newEngine(container.EngineType(f.engine))
	if f.dryRun {
		return printPlan(app, m, engine)
	}
	if engineErr != nil {
		return imageFailed(cmd, app, engineErr)
	}
	version, err := engine.Version(ctx)
	if err != nil {
		app.logger.Warn("could not read container engine version", "engine", engine.Name(), "error", err)
		version = "unknown"
	}
	app.logger.Debug("selected container engine", "engine", engine.Name(), "version", version)

	b := imagebuild.NewBuilder(engine,
		imagebuild.WithNoCache(f.noCache),
		imagebuild.WithPull(f.pull),
		imagebuild.WithOutput(app.stdout, app.stderr),
		imagebuild.WithStagingRoot(f.staging),
	)
	res, err := b.Build(ctx, m)
	if err != nil {
		return imageFailed(cmd, app, err)
	}

	fmt.Fprintf(app.stdout, "%s Built %s with %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(res.Tag), res.Engine)
	return nil
}

// printPlan prints the build steps and the Dockerfile. A missing engine is
// not an error in a dry run.
func printPlan(app *App, m imagebuild.BuildManifest, engine container.Engine) error {
	w := app.stdout
	fmt.Fprintln(w, TitleStyle.Render("Build plan:"))
	for i, step := range imagebuild.NewBuilder(engine).Plan(m) {
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, step.Name, SubtitleStyle.Render("("+step.Detail+")"))
	}
	fmt.Fprintln(w)

	dockerfile, _, err := imagebuild.Render(m)
	if err != nil {
		renderError(app.stderr, err, false)
		return &ExitError{Code: types.ExitFailure, Err: err}
	}
	fmt.Fprintln(w, TitleStyle.Render("Dockerfile:"))
	fmt.Fprint(w, dockerfile)
	return nil
}

func imageFailed(cmd *cobra.Command, app *App, err error) error {
	renderError(app.stderr, err, false)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: types.ExitFailure, Err: err}
}
