// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/slnpack/slnpack/internal/project"
	"github.com/slnpack/slnpack/pkg/packengine"
	"github.com/slnpack/slnpack/pkg/packrule"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
)

type (
	rulesFlagValues struct {
		projectFlags
		format  string
		resolve bool
	}

	// rulesView is the machine readable form of `slnpack rules`.
	rulesView struct {
		Property string     `yaml:"property"`
		BaseDir  string     `yaml:"base_dir"`
		Archive  string     `yaml:"archive"`
		Rules    []ruleView `yaml:"rules"`
		// Entries is the final archive content, set with --resolve.
		Entries []entryView `yaml:"entries,omitempty"`
	}

	ruleView struct {
		Files   string `yaml:"files"`
		ToDir   string `yaml:"to_dir"`
		BaseDir string `yaml:"base_dir"`
		Include string `yaml:"include"`
		Matches *int   `yaml:"matches,omitempty"`
		Error   string `yaml:"error,omitempty"`
	}

	entryView struct {
		Name   string `yaml:"name"`
		Source string `yaml:"source"`
	}
)

// newRulesCommand creates the `slnpack rules` command.
func newRulesCommand(app *App) *cobra.Command {
	flags := &rulesFlagValues{}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the pack rules of the project",
		Long: `Show the pack rules of the project.

Each rule is split into the directory that is walked and the glob that selects
files below it. With --resolve every rule is evaluated against the project
without writing an archive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRules(cmd, app, flags)
		},
	}

	addProjectFlags(cmd, &flags.projectFlags)
	cmd.Flags().StringVarP(&flags.format, "format", "o", formatTable, "output format (table, yaml)")
	cmd.Flags().BoolVar(&flags.resolve, "resolve", false, "evaluate each rule and count the files it selects")

	return cmd
}

func showRules(cmd *cobra.Command, app *App, flags *rulesFlagValues) error {
	if flags.format != formatTable && flags.format != formatYAML {
		return fmt.Errorf("invalid argument %q for \"--format\" flag: must be %s or %s", flags.format, formatTable, formatYAML)
	}

	sess, err := app.newSession(cmd.Context(), flags.projectFlags)
	if err != nil {
		return err
	}
	rules, err := sess.packager.Rules()
	if err != nil {
		return err
	}

	view := buildRulesView(sess.project.ProjectBaseDir(), sess.packager.ArchivePath(), rules, flags.resolve)

	if flags.format == formatYAML {
		out, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}
		_, err = app.stdout.Write(out)
		return err
	}

	renderRulesTable(app, view, flags.resolve)
	return nil
}

// buildRulesView splits every rule and, when resolve is set, evaluates it.
// Each rule is evaluated on its own so one failing rule does not hide the rest.
func buildRulesView(baseDir, archivePath string, rules []packrule.Rule, resolve bool) rulesView {
	view := rulesView{
		Property: project.RulesProperty,
		BaseDir:  baseDir,
		Archive:  archivePath,
	}

	engine := packengine.New(packengine.WithRoot(baseDir))
	for _, rule := range rules {
		sel := packengine.Split(rule.Source)
		rv := ruleView{
			Files:   rule.Source,
			ToDir:   rule.TargetDir,
			BaseDir: sel.Dir(baseDir),
			Include: sel.Glob(),
		}
		if resolve {
			manifest := packengine.NewManifest()
			if err := engine.Pack([]packrule.Rule{rule}, manifest); err != nil {
				rv.Error = err.Error()
			}
			matches := manifest.Len()
			rv.Matches = &matches
		}
		view.Rules = append(view.Rules, rv)
	}

	if resolve {
		combined := packengine.NewManifest()
		// Failures are already reported per rule; later rules still contribute.
		for _, rule := range rules {
			_ = engine.Pack([]packrule.Rule{rule}, combined)
		}
		for _, entry := range combined.Entries() {
			view.Entries = append(view.Entries, entryView{Name: entry.Name, Source: entry.Source})
		}
	}

	return view
}

func renderRulesTable(app *App, view rulesView, resolve bool) {
	fmt.Fprintf(app.stdout, "%s %s\n", TitleStyle.Render("Pack rules"), SubtitleStyle.Render("("+view.Property+")"))
	fmt.Fprintf(app.stdout, "%s %s\n\n", SubtitleStyle.Render("archive:"), CmdStyle.Render(view.Archive))

	headers := []string{"#", "files", "to-dir", "base dir", "include"}
	if resolve {
		headers = append(headers, "matches")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtitleStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})

	for i, rv := range view.Rules {
		baseDir := rv.BaseDir
		if rel, err := filepath.Rel(view.BaseDir, rv.BaseDir); err == nil {
			baseDir = rel
		}
		row := []string{strconv.Itoa(i + 1), rv.Files, rv.ToDir, baseDir, rv.Include}
		if resolve {
			switch {
			case rv.Error != "":
				row = append(row, ErrorStyle.Render("error"))
			case rv.Matches != nil:
				row = append(row, strconv.Itoa(*rv.Matches))
			}
		}
		t.Row(row...)
	}

	fmt.Fprintln(app.stdout, t.Render())

	if !resolve {
		return
	}
	for i, rv := range view.Rules {
		if rv.Error != "" {
			fmt.Fprintf(app.stdout, "%s rule %d: %s\n", WarningStyle.Render("!"), i+1, rv.Error)
		}
	}
	fmt.Fprintf(app.stdout, "\n%s %d entries\n", SuccessStyle.Render("→"), len(view.Entries))
	if app.verbose {
		for _, entry := range view.Entries {
			fmt.Fprintf(app.stdout, "    %s %s %s\n", entry.Name, SubtitleStyle.Render("<-"), entry.Source)
		}
	}
}
