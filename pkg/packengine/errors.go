// SPDX-License-Identifier: MPL-2.0

package packengine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSetup is the sentinel wrapped by SetupError.
	ErrSetup = errors.New("output directory setup failed")
	// ErrResolution is the sentinel wrapped by ResolutionError.
	ErrResolution = errors.New("cannot resolve pack rule")
	// ErrEntry is the sentinel wrapped by EntryError.
	ErrEntry = errors.New("cannot add archive entry")
	// ErrArchive is the sentinel wrapped by ArchiveError.
	ErrArchive = errors.New("cannot write archive")
)

type (
	// SetupError is returned when the output directory cannot be cleaned or created.
	SetupError struct {
		Dir string
		Err error
	}

	// ResolutionError is returned when a rule's base directory cannot be walked
	// or its include glob is malformed.
	ResolutionError struct {
		// Pattern is the rule's raw source pattern.
		Pattern string
		// BaseDir is the directory the pattern resolved to.
		BaseDir string
		Err     error
	}

	// EntryError records a single file that could not be added to the archive.
	EntryError struct {
		Pattern     string
		Source      string
		ArchivePath string
		Err         error
	}

	// RuleError collects the entry failures of one rule. It is returned once the
	// rule's walk has finished.
	RuleError struct {
		Pattern string
		Entries []*EntryError
	}

	// ArchiveError is returned when the archive file cannot be written or finalized.
	ArchiveError struct {
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("prepare output directory %s: %v", e.Dir, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *SetupError) Unwrap() []error {
	return []error{ErrSetup, e.Err}
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("rule files=%s: base directory %s: %v", e.Pattern, e.BaseDir, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *ResolutionError) Unwrap() []error {
	return []error{ErrResolution, e.Err}
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	if e.ArchivePath == "" {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s -> %s: %v", e.Source, e.ArchivePath, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *EntryError) Unwrap() []error {
	return []error{ErrEntry, e.Err}
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "rule files=%s: %d file(s) could not be archived", e.Pattern, len(e.Entries))
	for _, entry := range e.Entries {
		sb.WriteString("\n  ")
		sb.WriteString(entry.Error())
	}
	return sb.String()
}

// Unwrap exposes every entry failure to errors.Is/As.
func (e *RuleError) Unwrap() []error {
	errs := make([]error, len(e.Entries))
	for i, entry := range e.Entries {
		errs[i] = entry
	}
	return errs
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *ArchiveError) Unwrap() []error {
	return []error{ErrArchive, e.Err}
}
