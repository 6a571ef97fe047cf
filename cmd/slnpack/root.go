// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for slnpack.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/slnpack/slnpack/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
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

// NewRootCommand builds the slnpack command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "slnpack",
		Short: "Package project files into a solution archive",
		Long: TitleStyle.Render("slnpack") + SubtitleStyle.Render(" - Package project files into a solution archive") + `

slnpack selects files from a project directory with pack rules and writes
them into a zip archive named <artifact-id>-<version>.sln.

Rules are read from the 'dotnet.pack.files' project property:

  files=<pattern> to-dir=<archive dir> [files=... to-dir=...]

A '*' in the pattern matches any path below the directory that precedes it.

` + SubtitleStyle.Render("Examples:") + `
  slnpack pack                          Pack the current directory
  slnpack pack --artifact-version 1.2.0 Pack with a version override
  slnpack rules --resolve               Show what each rule selects
  slnpack pack --watch                  Re-pack whenever sources change
  slnpack config show                   Show the effective configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is ./slnpack.cue, then the user config)")
	rootCmd.PersistentFlags().StringVarP(&app.workDir, "dir", "C", "", "run as if slnpack was started in `dir`")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if app.verbose {
			app.logger.SetLevel(log.DebugLevel)
		}
	}

	rootCmd.AddCommand(newPackCommand(app))
	rootCmd.AddCommand(newRulesCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code matching the failure class.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	// fang overrides rootCmd.Version, so the version is passed as an option.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		os.Exit(exitCode(err))
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
