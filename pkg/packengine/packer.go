// SPDX-License-Identifier: MPL-2.0

package packengine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/slnpack/slnpack/pkg/packrule"
)

type (
	// Packer runs pack rules. It holds no per-pack state, but a single pack
	// must not be shared between goroutines.
	Packer struct {
		root   string
		logger *log.Logger
	}

	// Option configures a Packer.
	Option func(*Packer)
)

// WithRoot sets the directory relative source patterns are resolved against.
// The default is the process working directory.
func WithRoot(dir string) Option {
	return func(p *Packer) {
		p.root = dir
	}
}

// WithLogger sets the logger used for progress output.
func WithLogger(logger *log.Logger) Option {
	return func(p *Packer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Packer.
func New(opts ...Option) *Packer {
	p := &Packer{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pack sends the files selected by each rule to sink, rule by rule.
//
// A *ResolutionError stops the pack immediately. Files that cannot be added
// are recorded and the rule's walk continues; once the walk ends the pack stops
// with a *RuleError and later rules are not run.
func (p *Packer) Pack(rules []packrule.Rule, sink Sink) error {
	for _, rule := range rules {
		if err := p.packRule(rule, sink); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packer) packRule(rule packrule.Rule, sink Sink) error {
	sel := Split(rule.Source)
	p.logger.Info("parsing rule", "files", rule.Source, "to-dir", rule.TargetDir)
	p.logger.Debug("resolved rule", "base", sel.Dir(p.root), "include", sel.Include)

	var failed []*EntryError
	for file, err := range sel.Files(p.root) {
		if err != nil {
			var resErr *ResolutionError
			if errors.As(err, &resErr) {
				return err
			}
			p.logger.Warn("cannot read file", "src", file.Path, "err", err)
			failed = append(failed, &EntryError{Pattern: rule.Source, Source: file.Path, Err: err})
			continue
		}

		name := EntryName(rule.TargetDir, file.Rel)
		p.logger.Debug("adding file", "src", file.Path, "dst", name)
		if err := sink.Add(file.Path, name); err != nil {
			p.logger.Warn("cannot add file", "src", file.Path, "dst", name, "err", err)
			failed = append(failed, &EntryError{Pattern: rule.Source, Source: file.Path, ArchivePath: name, Err: err})
		}
	}

	if len(failed) > 0 {
		return &RuleError{Pattern: rule.Source, Entries: failed}
	}
	return nil
}

// WriteArchive packs rules into a new zip file at path and finalizes it. The
// archive is discarded if any rule fails.
func (p *Packer) WriteArchive(path string, rules []packrule.Rule) (*ArchiveInfo, error) {
	p.logger.Info("creating archive", "path", path)

	archive := NewArchive(path)
	if err := p.Pack(rules, archive); err != nil {
		archive.Discard()
		return nil, err
	}
	return archive.Finalize()
}

// PrepareOutputDir empties dir if it exists and creates it otherwise.
func PrepareOutputDir(dir string, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &SetupError{Dir: dir, Err: err}
		}
		return nil
	case err != nil:
		return &SetupError{Dir: dir, Err: err}
	case !info.IsDir():
		return &SetupError{Dir: dir, Err: fmt.Errorf("%s exists and is not a directory", dir)}
	}

	logger.Info("cleaning", "dir", dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &SetupError{Dir: dir, Err: err}
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return &SetupError{Dir: dir, Err: err}
		}
	}
	return nil
}
