// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a pack when files under the project change.
//
// Filesystem events are debounced: a burst of changes produces one callback
// with every changed path. Callbacks never overlap; changes that arrive while
// a callback runs are collected and delivered by the next one.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are always excluded: VCS metadata, IDE state and editor
// swap files.
var defaultIgnores = []string{
	"**/.git",
	"**/.git/**",
	"**/.svn/**",
	"**/.hg/**",
	"**/.vs/**",
	"**/.idea/**",
	"**/*.swp",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// BaseDir is the directory tree to watch. Empty means the working directory.
		BaseDir string

		// Ignore are extra doublestar patterns, relative to BaseDir, for paths
		// that never trigger a callback. See IgnoreDir.
		Ignore []string

		// Debounce is the quiet period after the last event before the callback
		// fires. Zero or negative values mean 500ms.
		Debounce time.Duration

		// OnChange receives the sorted changed paths, relative to BaseDir.
		// An error is logged and watching continues.
		OnChange func(ctx context.Context, changed []string) error

		Logger *log.Logger
	}

	// Watcher watches a directory tree. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		logger   *log.Logger
		debounce time.Duration
		baseDir  string
		started  atomic.Bool
	}
)

// IgnoreDir returns the patterns ignoring dir and everything below it. dir is
// relative to the watched base dir; an empty or escaping dir yields nil.
func IgnoreDir(dir string) []string {
	rel := filepath.ToSlash(filepath.Clean(dir))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(dir) {
		return nil
	}
	escaped := doublestar.EscapeMeta(rel)
	return []string{escaped, escaped + "/**"}
}

// New creates a Watcher and registers every non-ignored directory under BaseDir.
func New(cfg Config) (*Watcher, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	for _, pat := range cfg.Ignore {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		logger:   logger,
		debounce: debounce,
		baseDir:  absBase,
	}

	if err := w.addTree(absBase); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is cancelled. It returns nil on
// cancellation and an error if the underlying watcher breaks. A callback in
// progress is waited for before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		trigger = make(chan struct{}, 1)
		stop    = make(chan struct{})
		wg      sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-trigger:
			}

			mu.Lock()
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			mu.Unlock()

			if len(changed) == 0 || w.cfg.OnChange == nil {
				continue
			}
			w.logger.Debug("change detected", "files", len(changed))
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("re-run failed", "err", err)
			}
		}
	}()

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", "err", err)
		}
		close(stop)
		wg.Wait()
	}()

	fire := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed unexpectedly")
			}
			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil || w.isIgnored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.addNewDir(evt.Name)
			}

			mu.Lock()
			pending[filepath.ToSlash(rel)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed unexpectedly")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// addTree registers root and its non-ignored subdirectories. Unreadable
// directories are logged and skipped.
func (w *Watcher) addTree(root string) error {
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("not watching", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return filepath.SkipDir
		}
		if w.isIgnored(rel) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// addNewDir extends the watch to a directory created after startup.
func (w *Watcher) addNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(path); err != nil {
		w.logger.Warn("not watching new directory", "path", path, "err", err)
	}
}

// isIgnored reports whether rel, relative to the base dir, matches an ignore pattern.
func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	if normalized == "." {
		return false
	}
	return slices.ContainsFunc(w.ignores, func(pat string) bool {
		matched, err := doublestar.Match(pat, normalized)
		return err == nil && matched
	})
}

// isFatal reports fsnotify errors after which the watcher cannot recover.
func isFatal(err error) bool {
	return slices.ContainsFunc(fatalErrnos, func(errno syscall.Errno) bool {
		return errors.Is(err, errno)
	})
}
