// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/slnpack/slnpack/internal/issue"
	"github.com/slnpack/slnpack/internal/project"
	"github.com/slnpack/slnpack/internal/registry"
	"github.com/slnpack/slnpack/internal/testutil"
	"github.com/slnpack/slnpack/pkg/packengine"
	"github.com/slnpack/slnpack/pkg/packrule"
)

type fakeProject struct {
	baseDir    string
	properties map[string]string
}

func (f *fakeProject) Property(name string) (string, bool) {
	v, ok := f.properties[name]
	return v, ok
}
func (f *fakeProject) ProjectBaseDir() string { return f.baseDir }
func (f *fakeProject) ArtifactID() string     { return "App" }
func (f *fakeProject) Version() string        { return "1.0" }

type fakeRegistry struct {
	got []registry.Artifact
	err error
}

func (f *fakeRegistry) Register(_ context.Context, a registry.Artifact) (*registry.Registration, error) {
	f.got = append(f.got, a)
	if f.err != nil {
		return nil, f.err
	}
	return &registry.Registration{ID: "r1", Location: a.Path}, nil
}

func TestExecute(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	testutil.WriteTree(t, base, map[string]string{
		"bin/App.dll":         "dll",
		"bin/sub/App.pdb":     "pdb",
		"docs/README.md":      "readme",
		"target/stale.sln":    "old",
		"target/keep/me.txt":  "old",
		"notes/ignored.txt":   "x",
		"docs/deep/guide.md":  "guide",
		"docs/deep/image.png": "png",
	})

	proj := &fakeProject{baseDir: base, properties: map[string]string{
		project.RulesProperty: "files=bin/* to-dir=lib\nfiles=docs/*.md to-dir=docs",
	}}
	reg := &fakeRegistry{}

	res, err := New(proj, reg).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	wantPath := filepath.Join(base, "target", "App-1.0.sln")
	if res.ArchivePath != wantPath {
		t.Errorf("ArchivePath = %q, want %q", res.ArchivePath, wantPath)
	}
	if len(res.Rules) != 2 {
		t.Errorf("Rules = %v, want 2 rules", res.Rules)
	}

	want := []string{"docs/README.md", "docs/deep/guide.md", "lib/App.dll", "lib/sub/App.pdb"}
	if got := testutil.ZipNames(t, wantPath); !slices.Equal(got, want) {
		t.Errorf("archive entries = %v, want %v", got, want)
	}
	if len(res.Entries) != len(want) {
		t.Errorf("Result.Entries = %d, want %d", len(res.Entries), len(want))
	}

	// The output dir was cleaned before packing.
	entries, _ := os.ReadDir(filepath.Join(base, "target"))
	if len(entries) != 1 || entries[0].Name() != "App-1.0.sln" {
		t.Errorf("output dir not cleaned: %v", entries)
	}

	if len(reg.got) != 1 {
		t.Fatalf("registry called %d times, want 1", len(reg.got))
	}
	a := reg.got[0]
	if a.ArtifactID != "App" || a.Version != "1.0" || a.Path != wantPath || a.Entries != 4 || a.Size != res.Size {
		t.Errorf("registered artifact = %+v", a)
	}
	if res.Registration == nil || res.Registration.ID != "r1" {
		t.Errorf("Registration = %+v", res.Registration)
	}
}

func TestExecute_DefaultRulesAndOptions(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	testutil.WriteTree(t, base, map[string]string{
		"App.sln":         "sln",
		"App/App.csproj":  "proj",
		"LICENSE":         "no extension",
		"out/previous.sl": "old",
	})
	proj := &fakeProject{baseDir: base}

	p := New(proj, nil, WithOutputDir("out"), WithExtension("zip"))
	if p.RawRules() != packrule.DefaultRules {
		t.Errorf("RawRules() = %q, want default", p.RawRules())
	}

	res, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if want := filepath.Join(base, "out", "App-1.0.zip"); res.ArchivePath != want {
		t.Errorf("ArchivePath = %q, want %q", res.ArchivePath, want)
	}
	want := []string{"App.sln", "App/App.csproj"}
	if got := testutil.ZipNames(t, res.ArchivePath); !slices.Equal(got, want) {
		t.Errorf("archive entries = %v, want %v", got, want)
	}
}

func TestExecute_EmptyRulesGiveEmptyArchive(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	testutil.WriteTree(t, base, map[string]string{"App.sln": "sln", "bin/App.dll": "dll"})
	proj := &fakeProject{baseDir: base, properties: map[string]string{project.RulesProperty: ""}}
	reg := &fakeRegistry{}

	p := New(proj, reg)
	if p.RawRules() != "" {
		t.Errorf("RawRules() = %q, want the empty property value", p.RawRules())
	}

	res, err := p.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if len(res.Rules) != 0 || len(res.Entries) != 0 {
		t.Errorf("Rules = %v, Entries = %v, want none", res.Rules, res.Entries)
	}
	if got := testutil.ZipNames(t, res.ArchivePath); len(got) != 0 {
		t.Errorf("archive entries = %v, want none", got)
	}
	if len(reg.got) != 1 || reg.got[0].Entries != 0 {
		t.Errorf("registered artifacts = %+v, want one empty archive", reg.got)
	}
}

func TestExecute_ParseErrorTouchesNothing(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	testutil.WriteTree(t, base, map[string]string{"target/keep.txt": "keep"})
	proj := &fakeProject{baseDir: base, properties: map[string]string{
		project.RulesProperty: "files=bin/*",
	}}
	reg := &fakeRegistry{}

	_, err := New(proj, reg).Execute(context.Background())
	if !errors.Is(err, packrule.ErrParse) {
		t.Fatalf("expected packrule.ErrParse, got %v", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Operation != "parse pack rules" {
		t.Errorf("expected an actionable parse error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(base, "target", "keep.txt")); statErr != nil {
		t.Error("output dir must not be touched when rules do not parse")
	}
	if len(reg.got) != 0 {
		t.Error("nothing should be registered")
	}
}

func TestExecute_ResolutionError(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	proj := &fakeProject{baseDir: base, properties: map[string]string{
		project.RulesProperty: "files=missing/*.dll to-dir=lib",
	}}
	reg := &fakeRegistry{}

	_, err := New(proj, reg).Execute(context.Background())
	if !errors.Is(err, packengine.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Operation != "resolve pack rule" {
		t.Errorf("expected an actionable resolution error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(base, "target", "App-1.0.sln")); !os.IsNotExist(statErr) {
		t.Error("no archive should be written")
	}
	if len(reg.got) != 0 {
		t.Error("nothing should be registered")
	}
}

func TestExecute_EntryError(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	testutil.WriteTree(t, base, map[string]string{"bin/App.dll": "dll"})
	proj := &fakeProject{baseDir: base, properties: map[string]string{
		project.RulesProperty: "files=bin/* to-dir=..",
	}}

	_, err := New(proj, nil).Execute(context.Background())
	if !errors.Is(err, packengine.ErrEntry) {
		t.Fatalf("expected ErrEntry, got %v", err)
	}
	var ruleErr *packengine.RuleError
	if !errors.As(err, &ruleErr) || len(ruleErr.Entries) != 1 {
		t.Errorf("expected one failed entry, got %v", err)
	}
}

func TestExecute_SetupError(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	testutil.WriteTree(t, base, map[string]string{"target": "a file, not a dir"})
	proj := &fakeProject{baseDir: base}

	_, err := New(proj, nil).Execute(context.Background())
	if !errors.Is(err, packengine.ErrSetup) {
		t.Fatalf("expected ErrSetup, got %v", err)
	}
}

func TestExecute_RegistrationError(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	testutil.WriteTree(t, base, map[string]string{"a.txt": "a"})
	cause := &registry.RegistrationError{Kind: "s3", Path: "x", Err: errors.New("bucket unreachable")}
	reg := &fakeRegistry{err: cause}

	_, err := New(&fakeProject{baseDir: base}, reg).Execute(context.Background())
	if !errors.Is(err, registry.ErrRegistration) {
		t.Fatalf("expected ErrRegistration, got %v", err)
	}
	// The archive itself is kept.
	if _, statErr := os.Stat(filepath.Join(base, "target", "App-1.0.sln")); statErr != nil {
		t.Errorf("archive should exist: %v", statErr)
	}
}

func TestExecute_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeProject{baseDir: t.TempDir()}, nil).Execute(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestResolveOutputDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(string(filepath.Separator), "work")
	abs := filepath.Join(string(filepath.Separator), "abs", "out")

	if got := ResolveOutputDir(base, "target"); got != filepath.Join(base, "target") {
		t.Errorf("relative: got %q", got)
	}
	if got := ResolveOutputDir(base, abs); got != abs {
		t.Errorf("absolute: got %q", got)
	}
}
