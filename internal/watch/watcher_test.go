// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func startWatcher(t *testing.T, cfg Config) (cancel func() error) {
	t.Helper()

	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	return func() error {
		stop()
		return <-errCh
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// TestWatcherDebounce verifies that rapid events are coalesced into a single
// callback carrying every changed path.
func TestWatcherDebounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var (
		mu        sync.Mutex
		calls     int
		collected []string
	)
	done := make(chan struct{})

	stop := startWatcher(t, Config{
		BaseDir:  dir,
		Debounce: 100 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			collected = append(collected, changed...)
			if calls == 1 {
				close(done)
			}
			return nil
		},
	})

	for _, name := range []string{"a.cs", "b.cs", "c.cs"} {
		writeFile(t, filepath.Join(dir, name))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(200 * time.Millisecond)

	if err := stop(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected 1 debounced callback, got %d", calls)
	}
	for _, want := range []string{"a.cs", "b.cs", "c.cs"} {
		if !slices.Contains(collected, want) {
			t.Errorf("expected %q in changed files, got %v", want, collected)
		}
	}
}

// TestWatcherIgnoresOutputDir checks that writes to the output dir, such as
// the archive produced by the callback itself, do not trigger a re-run.
func TestWatcherIgnoresOutputDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "target")
	if err := os.Mkdir(out, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	fired := make(chan []string, 10)
	stop := startWatcher(t, Config{
		BaseDir:  dir,
		Ignore:   IgnoreDir("target"),
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})

	writeFile(t, filepath.Join(out, "App-1.0.sln"))
	writeFile(t, filepath.Join(dir, ".git", "index"))

	select {
	case changed := <-fired:
		t.Fatalf("callback fired for ignored paths: %v", changed)
	case <-time.After(500 * time.Millisecond):
	}

	writeFile(t, filepath.Join(dir, "Program.cs"))
	select {
	case changed := <-fired:
		if !slices.Equal(changed, []string{"Program.cs"}) {
			t.Errorf("changed = %v, want [Program.cs]", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}

	if err := stop(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

// TestWatcherSequentialCallbacks checks that a slow callback is never
// overlapped and that changes made meanwhile are delivered afterwards.
func TestWatcherSequentialCallbacks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var (
		active    atomic.Int32
		overlap   atomic.Bool
		callCount atomic.Int32
	)
	release := make(chan struct{})
	second := make(chan []string, 1)

	stop := startWatcher(t, Config{
		BaseDir:  dir,
		Debounce: 30 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			defer active.Add(-1)

			switch callCount.Add(1) {
			case 1:
				<-release
			case 2:
				second <- changed
			}
			return nil
		},
	})

	writeFile(t, filepath.Join(dir, "first.cs"))
	time.Sleep(300 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "second.cs"))
	time.Sleep(300 * time.Millisecond)
	close(release)

	select {
	case changed := <-second:
		if !slices.Contains(changed, "second.cs") {
			t.Errorf("second run changed = %v, want second.cs", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("changes made during a run were lost")
	}

	if err := stop(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if overlap.Load() {
		t.Error("callbacks overlapped")
	}
}

func TestWatcherNewSubdirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fired := make(chan []string, 10)

	stop := startWatcher(t, Config{
		BaseDir:  dir,
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			fired <- changed
			return nil
		},
	})

	sub := filepath.Join(dir, "src")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	<-fired // the directory creation itself

	writeFile(t, filepath.Join(sub, "New.cs"))
	select {
	case changed := <-fired:
		if !slices.Contains(changed, "src/New.cs") {
			t.Errorf("changed = %v, want src/New.cs", changed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("new subdirectory is not watched")
	}

	if err := stop(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestWatcherCallbackErrorKeepsWatching(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var calls atomic.Int32
	done := make(chan struct{})

	stop := startWatcher(t, Config{
		BaseDir:  dir,
		Debounce: 30 * time.Millisecond,
		OnChange: func(context.Context, []string) error {
			if calls.Add(1) == 2 {
				close(done)
			}
			return errors.New("pack failed")
		},
	})

	writeFile(t, filepath.Join(dir, "a.cs"))
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "b.cs"))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher stopped after a callback error")
	}
	if err := stop(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func TestWatcherDoubleRunError(t *testing.T) {
	t.Parallel()

	w, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := w.Run(ctx); err == nil {
		t.Error("second Run() should fail")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("first Run() error: %v", err)
	}
}

func TestWatcherInvalidIgnorePattern(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{BaseDir: t.TempDir(), Ignore: []string{"[unclosed"}}); err == nil {
		t.Error("New() should reject an invalid ignore pattern")
	}
}

func TestIgnoreDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir  string
		want []string
	}{
		{"target", []string{"target", "target/**"}},
		{filepath.Join("build", "out"), []string{"build/out", "build/out/**"}},
		{"out[1]", []string{`out\[1\]`, `out\[1\]/**`}},
		{".", nil},
		{"..", nil},
		{filepath.Join("..", "elsewhere"), nil},
	}
	for _, tt := range tests {
		if got := IgnoreDir(tt.dir); !slices.Equal(got, tt.want) {
			t.Errorf("IgnoreDir(%q) = %v, want %v", tt.dir, got, tt.want)
		}
	}
}

func TestIsIgnored(t *testing.T) {
	t.Parallel()

	w := &Watcher{ignores: slices.Concat(defaultIgnores, IgnoreDir("target"))}

	tests := []struct {
		rel  string
		want bool
	}{
		{".", false},
		{"Program.cs", false},
		{"src/App.csproj", false},
		{".git", true},
		{".git/objects/ab", true},
		{"sub/.git/HEAD", true},
		{".vs/config", true},
		{"Program.cs.swp", true},
		{"target", true},
		{"target/App-1.0.sln", true},
		{"targets/file", false},
	}
	for _, tt := range tests {
		if got := w.isIgnored(filepath.FromSlash(tt.rel)); got != tt.want {
			t.Errorf("isIgnored(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	for _, errno := range fatalErrnos {
		if !isFatal(fmt.Errorf("fsnotify: %w", errno)) {
			t.Errorf("wrapped %v should be fatal", errno)
		}
	}
	if isFatal(syscall.EACCES) {
		t.Error("EACCES should not be fatal")
	}
	if isFatal(errors.New("something went wrong")) {
		t.Error("generic error should not be fatal")
	}
}
