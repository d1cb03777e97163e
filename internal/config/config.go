// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cadstart/cadstart/internal/issue"
	"github.com/cadstart/cadstart/pkg/platform"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "cadstart"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variable overrides (CADSTART_BIND_PORT).
	EnvPrefix = "CADSTART"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the cadstart configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// newViper returns a Viper instance carrying the defaults.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("environment_name", defaults.EnvironmentName)
	v.SetDefault("candidate_paths", defaults.CandidatePaths)
	v.SetDefault("bind_host", defaults.BindHost)
	v.SetDefault("bind_port", defaults.BindPort)
	v.SetDefault("headless", defaults.Headless)
	v.SetDefault("working_directory", defaults.WorkingDirectory)
	v.SetDefault("executable", defaults.Executable)
	v.SetDefault("app_script", defaults.AppScript)
	v.SetDefault("container.engine", defaults.Container.Engine)
	v.SetDefault("container.base_image", defaults.Container.BaseImage)
	v.SetDefault("container.system_packages", defaults.Container.SystemPackages)
	v.SetDefault("container.environment_file", defaults.Container.EnvironmentFile)
	v.SetDefault("container.source_dir", defaults.Container.SourceDir)
	v.SetDefault("container.app_dir", defaults.Container.AppDir)
	v.SetDefault("container.port", defaults.Container.Port)
	v.SetDefault("container.tag", defaults.Container.Tag)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.no_pause", defaults.UI.NoPause)

	return v
}

// envValue splits comma-separated list overrides.
func envValue(key, val string) any {
	switch key {
	case "candidate_paths", "container.system_packages":
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	default:
		return val
	}
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the loaded config and the file it came
// from ("" when only defaults and environment overrides apply).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	resolvedPath, err := locateConfigFile(opts)
	if err != nil {
		return nil, "", err
	}

	v := newViper()
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'cadstart config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}
	applyEnvOverrides(v, getenv)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check the CADSTART_* environment variables").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// locateConfigFile picks the config file: the explicit path when set (it
// must exist), else config.cue in the config directory, else ./config.cue.
func locateConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'cadstart config init' to write the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(cuePath) {
		return cuePath, nil
	}
	if localCuePath := ConfigFileName + "." + ConfigFileExt; fileExists(localCuePath) {
		return localCuePath, nil
	}
	return "", nil
}

// applyEnvOverrides sets every key that has a non-empty CADSTART_* variable.
// Overrides are read through getenv rather than AutomaticEnv so loading can
// be driven by an explicit environment.
func applyEnvOverrides(v *viper.Viper, getenv func(string) string) {
	replacer := strings.NewReplacer(".", "_")
	for _, key := range v.AllKeys() {
		if val := getenv(EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))); val != "" {
			v.Set(key, envValue(key, val))
		}
	}
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Config decodes to map[string]any rather than a struct so that Viper keeps
// ownership of defaults and overrides. Concrete(false) because every field
// is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, maxConfigFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// resolveAgainst joins a relative path onto base.
func resolveAgainst(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file into dir (the config
// directory when empty) unless one exists. It returns the file path and
// whether it was written.
func CreateDefaultConfig(dir string) (string, bool, error) {
	cfgDir, err := configDirWithOverride(dir)
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// cadstart configuration file\n")
	sb.WriteString("// Any field may be removed to fall back to its default.\n\n")

	fmt.Fprintf(&sb, "environment_name: %q\n", cfg.EnvironmentName)
	if len(cfg.CandidatePaths) > 0 {
		sb.WriteString("candidate_paths: [\n")
		for _, p := range cfg.CandidatePaths {
			fmt.Fprintf(&sb, "\t%q,\n", p)
		}
		sb.WriteString("]\n")
	}
	fmt.Fprintf(&sb, "bind_host: %q\n", cfg.BindHost)
	fmt.Fprintf(&sb, "bind_port: %d\n", cfg.BindPort)
	fmt.Fprintf(&sb, "headless: %v\n", cfg.Headless)
	if cfg.WorkingDirectory != "" {
		fmt.Fprintf(&sb, "working_directory: %q\n", cfg.WorkingDirectory)
	}
	fmt.Fprintf(&sb, "executable: %q\n", cfg.Executable)
	fmt.Fprintf(&sb, "app_script: %q\n", cfg.AppScript)

	sb.WriteString("\ncontainer: {\n")
	fmt.Fprintf(&sb, "\tengine: %q\n", cfg.Container.Engine)
	fmt.Fprintf(&sb, "\tbase_image: %q\n", cfg.Container.BaseImage)
	sb.WriteString("\tsystem_packages: [\n")
	for _, pkg := range cfg.Container.SystemPackages {
		fmt.Fprintf(&sb, "\t\t%q,\n", pkg)
	}
	sb.WriteString("\t]\n")
	fmt.Fprintf(&sb, "\tenvironment_file: %q\n", cfg.Container.EnvironmentFile)
	fmt.Fprintf(&sb, "\tsource_dir: %q\n", cfg.Container.SourceDir)
	fmt.Fprintf(&sb, "\tapp_dir: %q\n", cfg.Container.AppDir)
	fmt.Fprintf(&sb, "\tport: %d\n", cfg.Container.Port)
	fmt.Fprintf(&sb, "\ttag: %q\n", cfg.Container.Tag)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tno_pause: %v\n", cfg.UI.NoPause)
	sb.WriteString("}\n")

	return sb.String()
}
