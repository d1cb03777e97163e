// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/cadstart/cadstart/internal/config"
	"github.com/cadstart/cadstart/internal/container"
	"github.com/cadstart/cadstart/internal/envresolve"
	"github.com/cadstart/cadstart/internal/launcher"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/term"
)

type (
	// App wires CLI services and shared dependencies. All Cobra handlers
	// receive an App and reach the host only through it.
	App struct {
		Config ConfigProvider

		configDir       string
		configPath      string
		prober          envresolve.Prober
		newEngine       func(preferred container.EngineType) (container.Engine, error)
		launcherOptions []launcher.Option
		isTerminal      func() bool
		getenv          func(string) string
		goos            string
		home            string
		stdin           io.Reader
		stdout          io.Writer
		stderr          io.Writer
		logger          *log.Logger
		invocationID    string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		// ConfigDir overrides the platform config directory.
		ConfigDir string
		Prober    envresolve.Prober
		NewEngine func(preferred container.EngineType) (container.Engine, error)
		// LauncherOptions are appended after the App's own launcher options.
		LauncherOptions []launcher.Option
		// IsTerminal reports whether stdin is interactive.
		IsTerminal func() bool
		Getenv     func(string) string
		GOOS       string
		HomeDir    string
		Stdin      io.Reader
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Prober == nil {
		deps.Prober = envresolve.FSProber{}
	}
	if deps.NewEngine == nil {
		deps.NewEngine = func(preferred container.EngineType) (container.Engine, error) {
			return container.NewEngine(preferred)
		}
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.IsTerminal == nil {
		deps.IsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	if deps.GOOS == "" {
		deps.GOOS = runtime.GOOS
	}
	if deps.HomeDir == "" {
		deps.HomeDir, _ = os.UserHomeDir()
	}

	app := &App{
		Config:          deps.Config,
		configDir:       deps.ConfigDir,
		prober:          deps.Prober,
		newEngine:       deps.NewEngine,
		launcherOptions: deps.LauncherOptions,
		isTerminal:      deps.IsTerminal,
		getenv:          deps.Getenv,
		goos:            deps.GOOS,
		home:            deps.HomeDir,
		stdin:           deps.Stdin,
		stdout:          deps.Stdout,
		stderr:          deps.Stderr,
		invocationID:    uuid.NewString(),
	}
	app.logger = newLogger(app.stderr, app.invocationID)
	return app
}

// newLogger returns the stderr logger every invocation writes through.
func newLogger(w io.Writer, invocationID string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:  log.WarnLevel,
		Prefix: "cadstart",
	}).With("invocation", invocationID)
}

// installLogger makes the App logger the slog default so internal packages
// log through it.
func (a *App) installLogger(verbose bool) {
	if verbose {
		a.logger.SetLevel(log.DebugLevel)
	}
	slog.SetDefault(slog.New(a.logger))
}

// loadOptions returns the config loading inputs for this invocation.
func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		ConfigFilePath: a.configPath,
		ConfigDirPath:  a.configDir,
		Getenv:         a.getenv,
	}
}

// loadConfig loads the configuration and applies ui.verbose.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return nil, err
	}
	if cfg.UI.Verbose {
		a.installLogger(true)
	}
	return cfg, nil
}

// newLauncher returns a single-shot launcher bound to the App's streams.
func (a *App) newLauncher() *launcher.Launcher {
	opts := []launcher.Option{
		launcher.WithProber(a.prober),
		launcher.WithStdio(a.stdin, a.stdout, a.stderr),
		launcher.WithTransitionHook(func(from, to launcher.State) {
			a.logger.Debug("launcher state", "from", from, "to", to)
		}),
	}
	return launcher.New(append(opts, a.launcherOptions...)...)
}
