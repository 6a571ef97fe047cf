// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/slnpack/slnpack/internal/config"
	"github.com/slnpack/slnpack/internal/issue"
	"github.com/slnpack/slnpack/internal/project"
	"github.com/slnpack/slnpack/internal/registry"
	"github.com/slnpack/slnpack/pkg/packengine"
	"github.com/slnpack/slnpack/pkg/packrule"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// classifyError maps a command failure to its issue catalog entry and exit code.
// A zero issue.Id means no guide applies.
func classifyError(err error) (issue.Id, int) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		id, _ := classifyError(exitErr.Err)
		return id, exitErr.Code
	}

	switch {
	case errors.Is(err, packrule.ErrParse):
		return issue.RuleParseErrorId, ExitUsage
	case isConfigError(err):
		return issue.ConfigLoadFailedId, ExitUsage
	case errors.Is(err, project.ErrInvalidDescriptor), errors.Is(err, project.ErrInvalidDefine):
		return issue.InvalidProjectId, ExitUsage
	case errors.Is(err, packengine.ErrSetup):
		return issue.OutputDirSetupFailedId, ExitPack
	case errors.Is(err, packengine.ErrResolution):
		return issue.BaseDirUnreadableId, ExitPack
	case errors.Is(err, packengine.ErrEntry):
		return issue.EntryWriteFailedId, ExitPack
	case errors.Is(err, packengine.ErrArchive):
		return issue.ArchiveWriteFailedId, ExitPack
	case errors.Is(err, registry.ErrRegistration):
		return issue.ArtifactRegistrationFailedId, ExitRegistration
	case err != nil && isUsageError(err):
		return 0, ExitUsage
	default:
		return 0, ExitGeneric
	}
}

func isConfigError(err error) bool {
	for _, sentinel := range []error{
		config.ErrInvalidConfig,
		config.ErrInvalidRegistryKind,
		config.ErrInvalidColorScheme,
		config.ErrInvalidLogLevel,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Operation == "load configuration" || ae.Operation == "validate configuration"
	}
	return false
}

// exitCode returns the process exit code for err.
func exitCode(err error) int {
	_, code := classifyError(err)
	return code
}

// handleError renders a command failure: the error itself, a usage hint for
// flag and argument mistakes, and the matching troubleshooting guide.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	verbose := a.verbose || a.logger.GetLevel() <= log.DebugLevel

	fmt.Fprintln(w, styles.ErrorHeader.String())
	fmt.Fprintln(w, lipgloss.NewStyle().MarginLeft(2).Render(formatErrorForDisplay(err, verbose)))
	fmt.Fprintln(w)

	if isUsageError(err) {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(
			lipgloss.Left,
			styles.ErrorText.UnsetWidth().Render("Try"),
			styles.Program.Flag.Render("--help"),
			styles.ErrorText.UnsetWidth().UnsetMargins().UnsetTransform().PaddingLeft(1).Render("for usage."),
		))
		fmt.Fprintln(w)
		return
	}

	id, _ := classifyError(err)
	if id == 0 {
		return
	}
	rendered, renderErr := issue.Get(id).Render(a.issueStyle)
	if renderErr != nil {
		a.logger.Debug("could not render troubleshooting guide", "issue", id, "error", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}

// isUsageError detects cobra flag and argument errors, which carry no type.
func isUsageError(err error) bool {
	s := err.Error()
	for _, prefix := range []string{
		"flag needs an argument:",
		"unknown flag:",
		"unknown shorthand flag:",
		"unknown command",
		"invalid argument",
		"accepts ",
		"requires at least",
	} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
