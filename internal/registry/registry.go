// SPDX-License-Identifier: MPL-2.0

// Package registry hands finished archives to the build: a YAML build record
// next to the archive, an S3 compatible object store, or nothing at all.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/slnpack/slnpack/internal/config"

	"github.com/charmbracelet/log"
)

// ErrRegistration is the sentinel wrapped by every RegistrationError.
var ErrRegistration = errors.New("artifact registration failed")

type (
	// Artifact is a finished archive ready to be registered.
	Artifact struct {
		ArtifactID string
		Version    string
		// Path is the archive file on disk.
		Path    string
		Entries int
		Size    int64
	}

	// Registration describes where an artifact was recorded.
	Registration struct {
		// ID uniquely identifies this registration.
		ID string
		// Location is a file path or an s3:// URL.
		Location string
		// SHA256 is the hex digest of the archive.
		SHA256 string
	}

	// Registry receives finished archives.
	Registry interface {
		Register(ctx context.Context, a Artifact) (*Registration, error)
	}

	// RegistrationError reports a failed registration.
	RegistrationError struct {
		Kind config.RegistryKind
		Path string
		Err  error
	}
)

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s with %s registry: %v", e.Path, e.Kind, e.Err)
}

// Unwrap returns ErrRegistration and the cause.
func (e *RegistrationError) Unwrap() []error {
	return []error{ErrRegistration, e.Err}
}

// New returns the registry selected by cfg. Relative record files are placed
// in outputDir.
func New(cfg config.RegistryConfig, outputDir string, logger *log.Logger) (Registry, error) {
	switch cfg.Kind {
	case config.RegistryFile, "":
		recordFile := cfg.RecordFile
		if recordFile == "" {
			recordFile = config.DefaultRecordFile
		}
		if !filepath.IsAbs(recordFile) {
			recordFile = filepath.Join(outputDir, recordFile)
		}
		return NewFileRegistry(recordFile, logger), nil
	case config.RegistryS3:
		return NewObjectStoreRegistry(cfg.S3, logger)
	case config.RegistryNone:
		return Nop{}, nil
	default:
		return nil, cfg.Kind.Validate()
	}
}

// Nop discards registrations.
type Nop struct{}

// Register returns a registration pointing at the archive itself.
func (Nop) Register(_ context.Context, a Artifact) (*Registration, error) {
	return &Registration{Location: a.Path}, nil
}

// digestFile returns the hex SHA-256 digest and size of the file at path.
func digestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func orDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.New(io.Discard)
	}
	return logger
}
