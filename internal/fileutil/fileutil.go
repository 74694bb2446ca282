package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Exists reports whether the path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether the path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SizeOf returns the file size in bytes, or 0 when the path is missing.
func SizeOf(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// DirStats walks a directory and returns the total byte size and file count.
func DirStats(root string) (int64, int, error) {
	var total int64
	var count int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		count++
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return total, count, nil
}

// SanitizeFileName strips characters that are unsafe in file names.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "")
	return strings.TrimSpace(replacer.Replace(name))
}

// BaseName returns the path's base name without its extension. Directories
// keep their full base name.
func BaseName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if IsDir(path) {
		return base
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
