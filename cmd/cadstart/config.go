// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/cadstart/cadstart/internal/config"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCommand creates the `cadstart config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cadstart configuration",
		Long: `Manage cadstart configuration.

Configuration is stored in:
  - Linux: ~/.config/cadstart/config.cue
  - macOS: ~/Library/Application Support/cadstart/config.cue
  - Windows: %APPDATA%\cadstart\config.cue

Every key can be overridden with a CADSTART_ environment variable, for
example CADSTART_BIND_PORT=8600 or CADSTART_CONTAINER_ENGINE=docker.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			out, err := formatConfig(cfg, format)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}
	showCmd.Flags().StringVarP(&format, "format", "f", "cue", "output format: cue, yaml or toml")

	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.CreateDefaultConfig(app.configDir)
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show which configuration file is in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := app.configDir
			if dir == "" {
				var err error
				if dir, err = config.ConfigDir(); err != nil {
					return err
				}
			}
			loaded, err := config.LoadWithSource(cmd.Context(), app.loadOptions())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render("Config directory"), dir)
			if loaded.Path == "" {
				fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
			} else {
				fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render("Config file"), loaded.Path)
			}
			return nil
		},
	})

	return cfgCmd
}

// formatConfig renders cfg as CUE, YAML or TOML.
func formatConfig(cfg *config.Config, format string) (string, error) {
	switch format {
	case "cue":
		return config.GenerateCUE(cfg), nil
	case "yaml":
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("failed to encode config as yaml: %w", err)
		}
		return string(out), nil
	case "toml":
		out, err := toml.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("failed to encode config as toml: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: cue, yaml, toml)", format)
	}
}
