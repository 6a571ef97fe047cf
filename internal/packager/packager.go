// SPDX-License-Identifier: MPL-2.0

// Package packager runs one complete pack of a project: parse the rules,
// prepare the output directory, write the archive and register it.
package packager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/slnpack/slnpack/internal/config"
	"github.com/slnpack/slnpack/internal/issue"
	"github.com/slnpack/slnpack/internal/project"
	"github.com/slnpack/slnpack/internal/registry"
	"github.com/slnpack/slnpack/pkg/packengine"
	"github.com/slnpack/slnpack/pkg/packrule"

	"github.com/charmbracelet/log"
)

type (
	// Project supplies the values a pack needs from the build.
	Project interface {
		Property(name string) (string, bool)
		ProjectBaseDir() string
		ArtifactID() string
		Version() string
	}

	// Packager packs a single project. Execute may be called repeatedly but
	// not concurrently.
	Packager struct {
		project   Project
		registry  registry.Registry
		outputDir string
		extension string
		logger    *log.Logger
	}

	// Option configures a Packager.
	Option func(*Packager)

	// Result describes a successful pack.
	Result struct {
		ArchivePath  string
		Entries      []packengine.Entry
		Size         int64
		Rules        []packrule.Rule
		Registration *registry.Registration
	}
)

// WithOutputDir sets the output directory. Relative paths are resolved
// against the project base dir.
func WithOutputDir(dir string) Option {
	return func(p *Packager) {
		if dir != "" {
			p.outputDir = dir
		}
	}
}

// WithExtension sets the archive file extension, without the dot.
func WithExtension(ext string) Option {
	return func(p *Packager) {
		if ext != "" {
			p.extension = ext
		}
	}
}

// WithLogger sets the logger used for progress output.
func WithLogger(logger *log.Logger) Option {
	return func(p *Packager) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Packager. A nil registry disables registration.
func New(proj Project, reg registry.Registry, opts ...Option) *Packager {
	if reg == nil {
		reg = registry.Nop{}
	}
	p := &Packager{
		project:   proj,
		registry:  reg,
		outputDir: config.DefaultOutputDir,
		extension: config.DefaultExtension,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResolveOutputDir returns dir resolved against baseDir.
func ResolveOutputDir(baseDir, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(baseDir, dir)
}

// OutputDir returns the absolute output directory.
func (p *Packager) OutputDir() string {
	return ResolveOutputDir(p.project.ProjectBaseDir(), p.outputDir)
}

// ArchivePath returns <output dir>/<artifactId>-<version>.<extension>.
func (p *Packager) ArchivePath() string {
	name := fmt.Sprintf("%s-%s.%s", p.project.ArtifactID(), p.project.Version(), p.extension)
	return filepath.Join(p.OutputDir(), name)
}

// RawRules returns the configured rule text, or the default rules when the
// property is absent. An empty value is kept and selects nothing.
func (p *Packager) RawRules() string {
	if raw, ok := p.project.Property(project.RulesProperty); ok {
		return raw
	}
	return packrule.DefaultRules
}

// Rules parses the configured rule text.
func (p *Packager) Rules() ([]packrule.Rule, error) {
	rules, err := packrule.Parse(p.RawRules())
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse pack rules").
			WithResource(project.RulesProperty).
			WithSuggestion("Every rule needs a files= value followed by a to-dir= value on the same line").
			WithSuggestion("Values end at the next space; spaces cannot be escaped").
			Wrap(err).
			BuildError()
	}
	return rules, nil
}

// Engine returns the pack engine rooted at the project base dir.
func (p *Packager) Engine() *packengine.Packer {
	return packengine.New(
		packengine.WithRoot(p.project.ProjectBaseDir()),
		packengine.WithLogger(p.logger),
	)
}

// Execute parses the rules, cleans the output directory, writes the archive
// and registers it. Nothing touches the filesystem before the rules parse.
func (p *Packager) Execute(ctx context.Context) (*Result, error) {
	rules, err := p.Rules()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputDir := p.OutputDir()
	if err := packengine.PrepareOutputDir(outputDir, p.logger); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("prepare output directory").
			WithResource(outputDir).
			WithSuggestion("Check that the directory is writable and no file in it is locked").
			WithSuggestion("Choose another location with --output-dir").
			Wrap(err).
			BuildError()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	archivePath := p.ArchivePath()
	info, err := p.Engine().WriteArchive(archivePath, rules)
	if err != nil {
		return nil, wrapPackError(err, archivePath)
	}

	p.logger.Info("archive created", "path", info.Path, "entries", len(info.Entries), "size", info.Size)

	reg, err := p.registry.Register(ctx, registry.Artifact{
		ArtifactID: p.project.ArtifactID(),
		Version:    p.project.Version(),
		Path:       info.Path,
		Entries:    len(info.Entries),
		Size:       info.Size,
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("register artifact").
			WithResource(info.Path).
			WithSuggestion("The archive was written; registration can be skipped with --registry none").
			Wrap(err).
			BuildError()
	}

	return &Result{
		ArchivePath:  info.Path,
		Entries:      info.Entries,
		Size:         info.Size,
		Rules:        rules,
		Registration: reg,
	}, nil
}

func wrapPackError(err error, archivePath string) error {
	var (
		resErr  *packengine.ResolutionError
		ruleErr *packengine.RuleError
	)
	switch {
	case errors.As(err, &resErr):
		return issue.NewErrorContext().
			WithOperation("resolve pack rule").
			WithResource(resErr.Pattern).
			WithSuggestion("Check that the directory before the first * exists").
			WithSuggestion("Preview rule resolution with 'slnpack rules --resolve'").
			Wrap(err).
			BuildError()
	case errors.As(err, &ruleErr):
		return issue.NewErrorContext().
			WithOperation("add files to archive").
			WithResource(ruleErr.Pattern).
			WithSuggestion("Check the permissions of the files listed above").
			WithSuggestion("Make sure to-dir does not escape the archive root").
			Wrap(err).
			BuildError()
	default:
		return issue.NewErrorContext().
			WithOperation("write archive").
			WithResource(archivePath).
			WithSuggestion("Check free disk space in the output directory").
			Wrap(err).
			BuildError()
	}
}
