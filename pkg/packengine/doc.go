// SPDX-License-Identifier: MPL-2.0

// Package packengine executes pack rules against the filesystem and writes the
// selected files into a zip archive.
//
// For every rule the source pattern is split into a literal base directory and
// an include glob. The base directory is walked recursively; each regular file
// whose path relative to the base matches the glob is added to the archive
// under the rule's target directory, keeping its sub-path below the base.
//
// Rules run strictly in order and entries with the same archive path are
// replaced by later rules (last rule wins). The archive is written to a
// temporary file and only renamed into place once every rule succeeded.
package packengine
