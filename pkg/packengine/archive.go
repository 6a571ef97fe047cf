// SPDX-License-Identifier: MPL-2.0

package packengine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// DefaultFileMode is the permission set stored for every archive entry.
const DefaultFileMode os.FileMode = 0o644

var errFinalized = errors.New("archive already finalized")

type (
	// Sink receives the files selected by a pack. Add is called sequentially,
	// once per matched file, in rule order.
	Sink interface {
		Add(source, name string) error
	}

	// Entry is one file placed in the archive.
	Entry struct {
		// Name is the slash-separated path inside the archive.
		Name string
		// Source is the file on disk.
		Source string
	}

	// Manifest is an in-memory Sink that records entries without reading them.
	// Adding a name twice replaces the source but keeps the first position.
	Manifest struct {
		entries []Entry
		index   map[string]int
	}

	// Archive is a Sink backed by a zip file. Entries are validated when added
	// and streamed into the zip by Finalize, so a later rule can still replace
	// an earlier entry of the same name.
	Archive struct {
		path     string
		manifest Manifest
		done     bool
	}

	// ArchiveInfo describes a finalized archive.
	ArchiveInfo struct {
		Path    string
		Entries []Entry
		Size    int64
	}
)

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{index: make(map[string]int)}
}

// Add records name -> source, replacing any earlier source for name.
func (m *Manifest) Add(source, name string) error {
	if err := validateEntryName(name); err != nil {
		return err
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[name]; ok {
		m.entries[i].Source = source
		return nil
	}
	m.index[name] = len(m.entries)
	m.entries = append(m.entries, Entry{Name: name, Source: source})
	return nil
}

// Entries returns a copy of the recorded entries in insertion order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of distinct entry names.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// NewArchive prepares an archive that will be written to path. Nothing is
// created on disk until Finalize.
func NewArchive(path string) *Archive {
	return &Archive{path: path, manifest: Manifest{index: make(map[string]int)}}
}

// Path returns the destination file path.
func (a *Archive) Path() string {
	return a.path
}

// Add checks that source is a readable regular file and records it under name.
func (a *Archive) Add(source, name string) error {
	if a.done {
		return errFinalized
	}

	info, err := os.Stat(source)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", source)
	}
	f, err := os.Open(source)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return a.manifest.Add(source, name)
}

// Discard abandons the archive. It is safe to call after Finalize.
func (a *Archive) Discard() {
	a.done = true
}

// Finalize writes every recorded entry into the zip file. It may be called
// only once. On failure no file is left at the destination path.
func (a *Archive) Finalize() (*ArchiveInfo, error) {
	if a.done {
		return nil, &ArchiveError{Path: a.path, Err: errFinalized}
	}
	a.done = true

	tmp, err := os.CreateTemp(filepath.Dir(a.path), "."+filepath.Base(a.path)+".*.tmp")
	if err != nil {
		return nil, &ArchiveError{Path: a.path, Err: err}
	}
	tmpPath := tmp.Name()

	size, writeErr := a.writeZip(tmp)
	if writeErr == nil {
		writeErr = tmp.Chmod(DefaultFileMode)
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = os.Rename(tmpPath, a.path)
	}
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return nil, &ArchiveError{Path: a.path, Err: writeErr}
	}

	return &ArchiveInfo{
		Path:    a.path,
		Entries: a.manifest.Entries(),
		Size:    size,
	}, nil
}

func (a *Archive) writeZip(f *os.File) (int64, error) {
	zw := zip.NewWriter(f)
	for _, entry := range a.manifest.entries {
		if err := writeEntry(zw, entry); err != nil {
			_ = zw.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close zip writer: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func writeEntry(zw *zip.Writer, entry Entry) error {
	src, err := os.Open(entry.Source)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Source, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", entry.Source, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create header for %s: %w", entry.Source, err)
	}
	header.Name = entry.Name
	header.Method = zip.Deflate
	header.SetMode(DefaultFileMode)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write entry %s: %w", entry.Name, err)
	}
	return nil
}

// validateEntryName rejects names that would be unsafe to extract.
func validateEntryName(name string) error {
	switch {
	case name == "" || name == ".":
		return errors.New("empty archive path")
	case strings.HasPrefix(name, "/"):
		return fmt.Errorf("archive path %q is absolute", name)
	case name == ".." || strings.HasPrefix(path.Clean(name), "../"):
		return fmt.Errorf("archive path %q escapes the archive root", name)
	}
	return nil
}
