// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/slnpack/slnpack/internal/packager"
	"github.com/slnpack/slnpack/internal/watch"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type packFlagValues struct {
	projectFlags
	watch bool
}

// newPackCommand creates the `slnpack pack` command.
func newPackCommand(app *App) *cobra.Command {
	flags := &packFlagValues{}

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Build the solution archive",
		Long: `Build the solution archive.

The output directory is emptied, every pack rule is applied in order and the
archive is written to <output-dir>/<artifact-id>-<version>.<extension>.
The finished archive is then handed to the configured registry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.watch {
				return runWatchMode(cmd.Context(), app, flags.projectFlags)
			}
			_, err := packOnce(cmd.Context(), app, flags.projectFlags)
			return err
		},
	}

	addProjectFlags(cmd, &flags.projectFlags)
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "output directory, relative to the project base dir")
	cmd.Flags().StringVar(&flags.registry, "registry", "", "registry kind (file, s3, none)")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "re-pack when project files change")

	return cmd
}

// addProjectFlags registers the flags shared by commands that load a project.
func addProjectFlags(cmd *cobra.Command, flags *projectFlags) {
	cmd.Flags().StringArrayVarP(&flags.defines, "define", "D", nil, "set a project property (name=value)")
	cmd.Flags().StringVar(&flags.artifactID, "artifact-id", "", "artifact id (default: project directory name)")
	cmd.Flags().StringVar(&flags.version, "artifact-version", "", "artifact version")
}

// packOnce runs a single pack and reports the result.
func packOnce(ctx context.Context, app *App, flags projectFlags) (*packager.Result, error) {
	sess, err := app.newSession(ctx, flags)
	if err != nil {
		return nil, err
	}

	result, err := sess.packager.Execute(ctx)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(app.stdout, "%s Created %s (%d entries, %s)\n",
		SuccessStyle.Render("✓"),
		CmdStyle.Render(filepath.Base(result.ArchivePath)),
		len(result.Entries),
		humanize.Bytes(uint64(result.Size)))
	fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("path:"), result.ArchivePath)
	if result.Registration != nil && result.Registration.Location != result.ArchivePath {
		fmt.Fprintf(app.stdout, "  %s %s\n", SubtitleStyle.Render("registered:"), result.Registration.Location)
	}
	if app.verbose {
		for _, entry := range result.Entries {
			fmt.Fprintf(app.stdout, "    %s\n", entry.Name)
		}
	}

	return result, nil
}

// runWatchMode packs once, then re-packs on every batch of changes until the
// context is canceled. Pack failures are reported and watching continues.
func runWatchMode(ctx context.Context, app *App, flags projectFlags) error {
	sess, err := app.newSession(ctx, flags)
	if err != nil {
		return err
	}
	baseDir := sess.project.ProjectBaseDir()

	fmt.Fprintf(app.stdout, "%s Watch mode: initial pack of %s\n", CmdStyle.Render("→"), baseDir)
	if _, packErr := packOnce(ctx, app, flags); packErr != nil {
		fmt.Fprintf(app.stderr, "%s Initial pack failed: %s\n", WarningStyle.Render("!"), formatErrorForDisplay(packErr, app.verbose))
	}
	fmt.Fprintf(app.stdout, "\n%s Watching for changes (Ctrl+C to stop)...\n\n", CmdStyle.Render("→"))

	var ignore []string
	if rel, relErr := filepath.Rel(baseDir, sess.packager.OutputDir()); relErr == nil {
		ignore = append(ignore, watch.IgnoreDir(rel)...)
	}

	w, err := watch.New(watch.Config{
		BaseDir: baseDir,
		Ignore:  ignore,
		Logger:  app.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "%s Detected %d change(s): %s\n",
				CmdStyle.Render("→"), len(changed), summarizeChanges(changed))
			if _, packErr := packOnce(ctx, app, flags); packErr != nil {
				fmt.Fprintf(app.stderr, "%s Pack failed: %s\n", WarningStyle.Render("!"), formatErrorForDisplay(packErr, app.verbose))
			}
			fmt.Fprintf(app.stdout, "\n%s Watching for changes...\n\n", CmdStyle.Render("→"))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	return w.Run(ctx)
}

// summarizeChanges lists up to three changed paths.
func summarizeChanges(changed []string) string {
	const maxShown = 3
	if len(changed) <= maxShown {
		return strings.Join(changed, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(changed[:maxShown], ", "), len(changed)-maxShown)
}
