package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"setlist/internal/fileutil"
)

func TestNormalizePath(t *testing.T) {
	dir := t.TempDir()
	messy := filepath.Join(dir, "sub", "..", "Project.als")

	got, err := fileutil.NormalizePath(messy)
	if err != nil {
		t.Fatalf("NormalizePath: %v", err)
	}
	want := filepath.Join(dir, "Project.als")
	if got != want {
		t.Fatalf("NormalizePath = %q, want %q", got, want)
	}

	if _, err := fileutil.NormalizePath("   "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHashBytesIsStable(t *testing.T) {
	data := []byte("not really a live set")
	first := fileutil.HashBytes(data)
	if len(first) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(first))
	}
	if second := fileutil.HashBytes(data); second != first {
		t.Fatalf("hash not deterministic: %s vs %s", first, second)
	}
	if other := fileutil.HashBytes([]byte("different content")); other == first {
		t.Fatal("different content produced the same digest")
	}
}

func TestExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "set.als")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if !fileutil.Exists(path) {
		t.Error("expected file to exist")
	}
	if fileutil.Exists(filepath.Join(dir, "absent.als")) {
		t.Error("expected missing file to not exist")
	}
	if !fileutil.IsDir(dir) {
		t.Error("expected directory to be a directory")
	}
	if fileutil.IsDir(path) {
		t.Error("expected file to not be a directory")
	}
}

func TestIsHidden(t *testing.T) {
	if !fileutil.IsHidden("/some/dir/.DS_Store") {
		t.Error("expected dotfile to be hidden")
	}
	if fileutil.IsHidden("/some/dir/Project.als") {
		t.Error("expected regular file to not be hidden")
	}
	if fileutil.IsHidden(".") {
		t.Error("expected bare dot to not be hidden")
	}
}
