// SPDX-License-Identifier: MPL-2.0

package packrule

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// DefaultRules is the rule text used when a project does not configure any.
	DefaultRules = `files=.\*.* to-dir=.`

	filesMarker = " files="
	toDirMarker = " to-dir="

	windowsSeparator = `\`
	unixSeparator    = "/"
)

// ErrParse is the sentinel wrapped by every ParseError.
var ErrParse = errors.New("invalid pack rule")

type (
	// Rule maps a source selection pattern to a directory inside the archive.
	// Both fields are non-empty and use the host path separator.
	Rule struct {
		// Source is the file selection pattern, possibly containing "*".
		Source string
		// TargetDir is the archive directory prefix, without a trailing separator.
		TargetDir string
	}

	// ParseError reports malformed rule text.
	ParseError struct {
		// Line is the 1-based input line number.
		Line int
		// Text is the normalized line being parsed.
		Text string
		// Reason describes what is wrong.
		Reason string
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, strings.TrimSpace(e.Text))
}

// Unwrap returns ErrParse for errors.Is() compatibility.
func (e *ParseError) Unwrap() error {
	return ErrParse
}

// String renders the rule back into rule text.
func (r Rule) String() string {
	return "files=" + r.Source + " to-dir=" + r.TargetDir
}

// Parse converts rule text into rules, in the order they appear: left to right
// within a line, top to bottom across lines. Blank lines are skipped.
func Parse(text string) ([]Rule, error) {
	var rules []Rule

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		lineRules, err := parseLine(lineNo, NormalizeLine(scanner.Text()))
		if err != nil {
			return nil, err
		}
		rules = append(rules, lineRules...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pack rules: %w", err)
	}

	return rules, nil
}

// NormalizeLine trims a line, turns tabs into spaces and converts both
// separator conventions to the host separator.
func NormalizeLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.ReplaceAll(line, "\t", " ")
	sep := string(os.PathSeparator)
	line = strings.ReplaceAll(line, windowsSeparator, sep)
	return strings.ReplaceAll(line, unixSeparator, sep)
}

// parseLine extracts every files=/to-dir= pair of one normalized line.
func parseLine(lineNo int, line string) ([]Rule, error) {
	var rules []Rule
	rest := line
	for rest != "" {
		// Pad so markers at either end are still space delimited and every
		// value is followed by a space.
		padded := " " + rest + " "

		filesPos := strings.Index(padded, filesMarker)
		if filesPos < 0 {
			break
		}
		toDirPos := strings.Index(padded[filesPos:], toDirMarker)
		if toDirPos < 0 {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "could not find" + toDirMarker + " marker"}
		}
		toDirPos += filesPos

		source, _ := valueAt(padded, filesPos+len(filesMarker))
		if source == "" {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "empty" + filesMarker + " value"}
		}
		target, end := valueAt(padded, toDirPos+len(toDirMarker))
		if target == "" {
			return nil, &ParseError{Line: lineNo, Text: line, Reason: "empty" + toDirMarker + " value"}
		}

		rules = append(rules, Rule{Source: source, TargetDir: trimTrailingSeparator(target)})
		rest = strings.TrimSpace(padded[end:])
	}
	return rules, nil
}

// valueAt returns the run of non-space characters starting at start, and the
// index of the space terminating it.
func valueAt(s string, start int) (string, int) {
	end := strings.IndexByte(s[start:], ' ')
	if end < 0 {
		return s[start:], len(s)
	}
	return s[start : start+end], start + end
}

// trimTrailingSeparator strips every trailing separator; a target made only
// of separators becomes the bare root.
func trimTrailingSeparator(dir string) string {
	trimmed := strings.TrimRight(dir, string(os.PathSeparator))
	if trimmed == "" {
		return string(os.PathSeparator)
	}
	return trimmed
}
