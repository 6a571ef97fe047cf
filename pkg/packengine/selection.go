// SPDX-License-Identifier: MPL-2.0

package packengine

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// matchEverything is used when a pattern ends in a separator and leaves no glob.
const matchEverything = "**"

// globEscaper quotes every doublestar metacharacter except "*", the only
// wildcard rule text knows.
var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	"?", `\?`,
	"[", `\[`,
	"]", `\]`,
	"{", `\{`,
	"}", `\}`,
	",", `\,`,
)

type (
	// Selection is a source pattern split into the literal directory to walk and
	// the glob that filters paths below it.
	Selection struct {
		// Pattern is the rule's source pattern.
		Pattern string
		// BaseDir is the wildcard-free directory prefix of Pattern.
		BaseDir string
		// Include is the remainder of Pattern, matched against paths relative to BaseDir.
		Include string
	}

	// File is a regular file selected by a walk.
	File struct {
		// Path is the file path on disk, rooted at the walked directory.
		Path string
		// Rel is Path relative to the walked directory.
		Rel string
	}
)

// Split divides a source pattern at the last separator before its first "*".
// Without a wildcard the split happens at the last separator, so the base is the
// pattern's parent directory. A pattern without any separator before the
// wildcard resolves against the current directory.
func Split(pattern string) Selection {
	sep := string(os.PathSeparator)

	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		star = len(pattern) - 1
	}
	lastSep := strings.LastIndex(pattern[:star+1], sep)

	sel := Selection{Pattern: pattern}
	switch {
	case lastSep > 0:
		sel.BaseDir = pattern[:lastSep]
		sel.Include = pattern[lastSep+1:]
	case lastSep == 0:
		sel.BaseDir = sep
		sel.Include = pattern[1:]
	default:
		sel.BaseDir = "."
		sel.Include = pattern
	}
	return sel
}

// Dir returns the directory to walk. Relative base directories are resolved
// against root; an empty root leaves them relative to the working directory.
func (s Selection) Dir(root string) string {
	if root == "" || filepath.IsAbs(s.BaseDir) {
		return s.BaseDir
	}
	return filepath.Join(root, s.BaseDir)
}

// Glob returns the include pattern in slash form with every character but "*"
// matched literally; an empty include selects everything.
func (s Selection) Glob() string {
	if s.Include == "" {
		return matchEverything
	}
	return globEscaper.Replace(filepath.ToSlash(s.Include))
}

// Match reports whether rel, a path relative to BaseDir, is selected. The glob
// is also tried below any number of leading directories, so "*.cs" selects
// C# files at every depth.
func (s Selection) Match(rel string) bool {
	name := filepath.ToSlash(rel)
	glob := s.Glob()
	if ok, _ := doublestar.Match(glob, name); ok {
		return true
	}
	ok, _ := doublestar.Match("**/"+glob, name)
	return ok
}

// Files walks the selection's directory below root and yields every matched
// regular file in lexical order. The sequence is single pass.
//
// A missing or unreadable base directory is yielded once as a *ResolutionError
// and ends the sequence. Failures below the base directory are yielded with the offending path and the walk continues.
func (s Selection) Files(root string) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		dir := s.Dir(root)

		info, err := os.Stat(dir)
		if err != nil {
			yield(File{}, &ResolutionError{Pattern: s.Pattern, BaseDir: dir, Err: err})
			return
		}
		if !info.IsDir() {
			yield(File{}, &ResolutionError{Pattern: s.Pattern, BaseDir: dir, Err: errors.New("not a directory")})
			return
		}

		walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == dir {
					yield(File{}, &ResolutionError{Pattern: s.Pattern, BaseDir: dir, Err: err})
					return filepath.SkipAll
				}
				if !yield(File{Path: p}, err) {
					return filepath.SkipAll
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			rel, relErr := filepath.Rel(dir, p)
			if relErr != nil {
				if !yield(File{Path: p}, fmt.Errorf("path outside base directory: %w", relErr)) {
					return filepath.SkipAll
				}
				return nil
			}
			if !s.Match(rel) {
				return nil
			}
			if !yield(File{Path: p, Rel: rel}, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil {
			yield(File{}, &ResolutionError{Pattern: s.Pattern, BaseDir: dir, Err: walkErr})
		}
	}
}

// EntryName builds the archive path for a file: the target directory joined
// with the file's path relative to the base directory, in slash form and
// without a leading separator.
func EntryName(targetDir, rel string) string {
	name := path.Join(filepath.ToSlash(targetDir), filepath.ToSlash(rel))
	return strings.TrimLeft(name, "/")
}
