// SPDX-License-Identifier: MPL-2.0

// Package project describes the project being packed: its artifact identity,
// base directory and properties.
package project

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"github.com/slnpack/slnpack/internal/config"
)

// RulesProperty is the property holding the pack rules.
const RulesProperty = "dotnet.pack.files"

var (
	// ErrInvalidDescriptor is the sentinel wrapped by InvalidDescriptorError.
	ErrInvalidDescriptor = errors.New("invalid project descriptor")
	// ErrInvalidDefine is returned for a -D definition without a name.
	ErrInvalidDefine = errors.New("invalid property definition")
)

type (
	// Descriptor is the project collaborator consumed by the packager.
	Descriptor struct {
		artifactID string
		version    string
		baseDir    string
		properties map[string]string
	}

	// Overrides are command line values taking precedence over configuration.
	Overrides struct {
		ArtifactID string
		Version    string
		// Defines are -D name=value property definitions.
		Defines map[string]string
	}

	// InvalidDescriptorError collects every invalid descriptor field.
	InvalidDescriptorError struct {
		FieldErrors []error
	}
)

// New builds a descriptor from configuration and overrides. A relative base
// dir is resolved against workDir; an unset artifact id defaults to the base
// name of the base dir.
func New(workDir string, cfg config.ProjectConfig, ov Overrides) (*Descriptor, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		baseDir = "."
	}
	if !filepath.IsAbs(baseDir) {
		baseDir = filepath.Join(workDir, baseDir)
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project base dir: %w", err)
	}

	d := &Descriptor{
		artifactID: firstNonEmpty(ov.ArtifactID, cfg.ArtifactID, filepath.Base(baseDir)),
		version:    firstNonEmpty(ov.Version, cfg.Version, config.DefaultVersion),
		baseDir:    baseDir,
		properties: make(map[string]string, len(cfg.Properties)+len(ov.Defines)),
	}
	maps.Copy(d.properties, cfg.Properties)
	maps.Copy(d.properties, ov.Defines)

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseDefines converts name=value strings into a property map. A definition
// without "=" sets the property to the empty string.
func ParseDefines(defs []string) (map[string]string, error) {
	props := make(map[string]string, len(defs))
	for _, def := range defs {
		name, value, _ := strings.Cut(def, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDefine, def)
		}
		props[name] = value
	}
	return props, nil
}

// Property returns the named property and whether it is set.
func (d *Descriptor) Property(name string) (string, bool) {
	v, ok := d.properties[name]
	return v, ok
}

// Properties returns a copy of all properties.
func (d *Descriptor) Properties() map[string]string {
	return maps.Clone(d.properties)
}

// ProjectBaseDir returns the absolute project base directory.
func (d *Descriptor) ProjectBaseDir() string { return d.baseDir }

// ArtifactID returns the artifact identifier.
func (d *Descriptor) ArtifactID() string { return d.artifactID }

// Version returns the artifact version.
func (d *Descriptor) Version() string { return d.version }

// Validate rejects descriptors that cannot name an archive file.
func (d *Descriptor) Validate() error {
	var errs []error
	errs = append(errs, validateName("artifact id", d.artifactID)...)
	errs = append(errs, validateName("version", d.version)...)
	if !filepath.IsAbs(d.baseDir) {
		errs = append(errs, fmt.Errorf("base dir %q is not absolute", d.baseDir))
	}
	if len(errs) > 0 {
		return &InvalidDescriptorError{FieldErrors: errs}
	}
	return nil
}

func validateName(field, value string) []error {
	switch {
	case strings.TrimSpace(value) == "":
		return []error{fmt.Errorf("%s must not be empty", field)}
	case strings.ContainsAny(value, `/\`):
		return []error{fmt.Errorf("%s %q must not contain a path separator", field, value)}
	case value == "." || value == "..":
		return []error{fmt.Errorf("%s %q is not a valid file name", field, value)}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidDescriptorError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid project: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidDescriptor for errors.Is() compatibility.
func (e *InvalidDescriptorError) Unwrap() error { return ErrInvalidDescriptor }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
