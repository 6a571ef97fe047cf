// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/slnpack/slnpack/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `slnpack config` command tree.
// Subcommands that read configuration use the App's ConfigProvider.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage slnpack configuration",
		Long: `Manage slnpack configuration.

The first existing file wins:
  1. the file given with --config
  2. slnpack.cue in the project directory
  3. the user config:
     - Linux: ~/.config/slnpack/config.cue
     - macOS: ~/Library/Application Support/slnpack/config.cue
     - Windows: %APPDATA%\slnpack\config.cue

Any setting can be overridden with an environment variable, for example
SLNPACK_PACK_OUTPUT_DIR or SLNPACK_REGISTRY_KIND.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	var projectScope bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app, projectScope)
		},
	}
	initCmd.Flags().BoolVar(&projectScope, "project", false, "create slnpack.cue in the project directory instead of the user config")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return err
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	path, err := app.Config.Locate(app.loadOptions())
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("project"))
	fmt.Fprintf(w, "  artifact_id: %s\n", orPlaceholder(cfg.Project.ArtifactID, "(project directory name)"))
	fmt.Fprintf(w, "  version: %s\n", valueStyle.Render(cfg.Project.Version))
	fmt.Fprintf(w, "  base_dir: %s\n", valueStyle.Render(cfg.Project.BaseDir))
	fmt.Fprintf(w, "  properties:\n")
	if len(cfg.Project.Properties) == 0 {
		fmt.Fprintf(w, "    %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.Project.Properties)) {
		fmt.Fprintf(w, "    %s: %s\n", name, valueStyle.Render(cfg.Project.Properties[name]))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("pack"))
	fmt.Fprintf(w, "  output_dir: %s\n", valueStyle.Render(cfg.Pack.OutputDir))
	fmt.Fprintf(w, "  extension: %s\n", valueStyle.Render(cfg.Pack.Extension))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("registry"))
	fmt.Fprintf(w, "  kind: %s\n", valueStyle.Render(cfg.Registry.Kind.String()))
	switch cfg.Registry.Kind {
	case config.RegistryFile:
		fmt.Fprintf(w, "  record_file: %s\n", valueStyle.Render(cfg.Registry.RecordFile))
	case config.RegistryS3:
		fmt.Fprintf(w, "  s3.endpoint: %s\n", valueStyle.Render(cfg.Registry.S3.Endpoint))
		fmt.Fprintf(w, "  s3.bucket: %s\n", valueStyle.Render(cfg.Registry.S3.Bucket))
		fmt.Fprintf(w, "  s3.prefix: %s\n", orPlaceholder(cfg.Registry.S3.Prefix, "(none)"))
		fmt.Fprintf(w, "  s3.use_ssl: %s\n", valueStyle.Render(strconv.FormatBool(cfg.Registry.S3.UseSSL)))
		fmt.Fprintf(w, "  s3.credentials: %s\n", valueStyle.Render(credentialState(cfg.Registry.S3)))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(strconv.FormatBool(cfg.UI.Verbose)))
	fmt.Fprintf(w, "  color_scheme: %s\n", valueStyle.Render(cfg.UI.ColorScheme.String()))
	fmt.Fprintf(w, "  log_level: %s\n", orPlaceholder(cfg.UI.LogLevel.String(), "(from verbose)"))

	return nil
}

func initConfig(app *App, projectScope bool) error {
	var path string
	if projectScope {
		dir := app.workDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			dir = wd
		}
		path = config.ProjectConfigPath(dir)
	} else {
		userPath, err := config.UserConfigPath("")
		if err != nil {
			return err
		}
		path = userPath
	}

	created, err := config.CreateDefaultConfig(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}

	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	userPath, err := config.UserConfigPath("")
	if err != nil {
		return err
	}
	active, err := app.Config.Locate(app.loadOptions())
	if err != nil {
		return err
	}

	projectDir := app.workDir
	if projectDir == "" {
		projectDir = "."
	}

	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "User config file: %s\n", userPath)
	fmt.Fprintf(app.stdout, "Project config file: %s\n", config.ProjectConfigPath(projectDir))
	if active == "" {
		fmt.Fprintf(app.stdout, "Active: %s\n", SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(app.stdout, "Active: %s\n", active)
	}

	return nil
}

func orPlaceholder(value, placeholder string) string {
	if value == "" {
		return SubtitleStyle.Render(placeholder)
	}
	return SuccessStyle.Render(value)
}

func credentialState(s3 config.S3Config) string {
	if s3.AccessKey != "" && s3.SecretKey != "" {
		return "set"
	}
	return "anonymous"
}
