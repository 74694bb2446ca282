package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"upapasta/internal/fileutil"
)

func TestDirStats(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), make([]byte, 100), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.bin"), make([]byte, 50), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	total, count, err := fileutil.DirStats(dir)
	if err != nil {
		t.Fatalf("DirStats returned error: %v", err)
	}
	if total != 150 || count != 2 {
		t.Fatalf("unexpected stats: total=%d count=%d", total, count)
	}
}

func TestSanitizeFileName(t *testing.T) {
	got := fileutil.SanitizeFileName(` My/Show: Part*2? `)
	if got != "My-Show- Part-2" {
		t.Fatalf("unexpected sanitized name: %q", got)
	}
	if fileutil.SanitizeFileName("   ") != "" {
		t.Fatal("expected empty result for blank input")
	}
}

func TestBaseName(t *testing.T) {
	dir := t.TempDir()
	if got := fileutil.BaseName(dir); got != filepath.Base(dir) {
		t.Fatalf("unexpected dir base name: %q", got)
	}

	file := filepath.Join(dir, "video.mkv")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if got := fileutil.BaseName(file); got != "video" {
		t.Fatalf("unexpected file base name: %q", got)
	}
}

func TestExistsAndSizeOf(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x.bin")
	if fileutil.Exists(file) {
		t.Fatal("expected file to be absent")
	}
	if err := os.WriteFile(file, make([]byte, 42), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if !fileutil.Exists(file) {
		t.Fatal("expected file to exist")
	}
	if fileutil.SizeOf(file) != 42 {
		t.Fatalf("unexpected size: %d", fileutil.SizeOf(file))
	}
}
