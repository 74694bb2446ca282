package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// SourceFolder creates a folder with one payload file under a temp dir and
// returns its path.
func SourceFolder(t testing.TB, name string) string {
	t.Helper()
	source := filepath.Join(t.TempDir(), name)
	if err := os.Mkdir(source, 0o755); err != nil {
		t.Fatalf("create source folder: %v", err)
	}
	WriteFile(t, filepath.Join(source, "payload.bin"), make([]byte, 1024))
	return source
}

// WriteFile writes a file, failing the test on error.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
