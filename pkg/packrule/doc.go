// SPDX-License-Identifier: MPL-2.0

// Package packrule parses pack rule text into an ordered list of rules.
//
// Rule text is line oriented. Each line holds zero or more pairs of the form
//
//	files=<pattern> to-dir=<target>
//
// where <pattern> selects files on disk (optionally with a "*" wildcard) and
// <target> is the directory prefix those files receive inside the archive.
// Values end at the next space; there is no escaping. Both '\' and '/' are
// accepted as directory separators and are converted to the host separator.
//
// Parsing never touches the filesystem.
package packrule
