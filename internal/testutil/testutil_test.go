// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestWriteTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	WriteTree(t, root, map[string]string{
		"a.txt":         "a",
		"sub/deep/b.cs": "b",
	})

	data, err := os.ReadFile(filepath.Join(root, "sub", "deep", "b.cs"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "b" {
		t.Errorf("content = %q, want %q", data, "b")
	}
}

func TestZipHelpers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "x.sln")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, name := range []string{"lib/b.dll", "lib/a.dll"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(name)); err != nil {
			t.Fatal(err)
		}
	}
	MustClose(t, zw)
	MustClose(t, f)

	if got, want := ZipNames(t, path), []string{"lib/b.dll", "lib/a.dll"}; !slices.Equal(got, want) {
		t.Errorf("ZipNames() = %v, want %v", got, want)
	}
	if got := ReadZip(t, path); got["lib/a.dll"] != "lib/a.dll" || len(got) != 2 {
		t.Errorf("ReadZip() = %v", got)
	}
}
