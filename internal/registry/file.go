// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/slnpack/slnpack/internal/config"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
)

type (
	// BuildRecord is the YAML document written by FileRegistry.
	BuildRecord struct {
		Artifacts []Record `yaml:"artifacts"`
	}

	// Record describes one registered archive.
	Record struct {
		ID         string `yaml:"id"`
		ArtifactID string `yaml:"artifact_id"`
		Version    string `yaml:"version"`
		Archive    string `yaml:"archive"`
		SHA256     string `yaml:"sha256"`
		Size       int64  `yaml:"size"`
		Entries    int    `yaml:"entries"`
		CreatedAt  string `yaml:"created_at"`
	}

	// FileRegistry records archives in a YAML build record. A record for the
	// same archive path replaces the previous one.
	FileRegistry struct {
		path   string
		logger *log.Logger
		now    func() time.Time
		newID  func() string
	}
)

// NewFileRegistry returns a registry writing the build record at path.
func NewFileRegistry(path string, logger *log.Logger) *FileRegistry {
	return &FileRegistry{
		path:   path,
		logger: orDiscard(logger),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Path returns the build record location.
func (r *FileRegistry) Path() string { return r.path }

// Register digests the archive and writes its record.
func (r *FileRegistry) Register(ctx context.Context, a Artifact) (*Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, r.fail(a, err)
	}

	digest, size, err := digestFile(a.Path)
	if err != nil {
		return nil, r.fail(a, err)
	}

	rec, err := ReadBuildRecord(r.path)
	if err != nil {
		return nil, r.fail(a, err)
	}

	archive, err := filepath.Abs(a.Path)
	if err != nil {
		return nil, r.fail(a, err)
	}
	entry := Record{
		ID:         r.newID(),
		ArtifactID: a.ArtifactID,
		Version:    a.Version,
		Archive:    archive,
		SHA256:     digest,
		Size:       size,
		Entries:    a.Entries,
		CreatedAt:  r.now().UTC().Format(time.RFC3339),
	}
	rec.put(entry)

	if err := writeBuildRecord(r.path, rec); err != nil {
		return nil, r.fail(a, err)
	}

	r.logger.Info("recorded artifact", "record", r.path, "sha256", digest)
	return &Registration{ID: entry.ID, Location: r.path, SHA256: digest}, nil
}

func (r *FileRegistry) fail(a Artifact, err error) error {
	return &RegistrationError{Kind: config.RegistryFile, Path: a.Path, Err: err}
}

func (b *BuildRecord) put(rec Record) {
	for i := range b.Artifacts {
		if b.Artifacts[i].Archive == rec.Archive {
			b.Artifacts[i] = rec
			return
		}
	}
	b.Artifacts = append(b.Artifacts, rec)
}

// ReadBuildRecord loads the build record at path. A missing file yields an
// empty record.
func ReadBuildRecord(path string) (*BuildRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &BuildRecord{}, nil
	}
	if err != nil {
		return nil, err
	}

	var rec BuildRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse build record %s: %w", path, err)
	}
	return &rec, nil
}

func writeBuildRecord(path string, rec *BuildRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode build record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
