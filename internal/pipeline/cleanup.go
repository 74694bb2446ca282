package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"upapasta/internal/logging"
)

// parentDir returns the directory containing the path.
func parentDir(path string) string {
	return filepath.Dir(filepath.Clean(path))
}

// cleanupRegistry owns the intermediate artifacts created during one run.
// Paths are registered as stages produce them and released exactly once when
// the run leaves the controller, on every exit path. Release is idempotent:
// paths already gone are not an error.
type cleanupRegistry struct {
	mu       sync.Mutex
	paths    []string
	seen     map[string]bool
	kept     bool
	released bool
	logger   *slog.Logger
}

func newCleanupRegistry(logger *slog.Logger) *cleanupRegistry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &cleanupRegistry{
		seen:   map[string]bool{},
		logger: logger,
	}
}

// register adds artifact paths this run created. Duplicate registrations
// collapse to one entry.
func (r *cleanupRegistry) register(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, path := range paths {
		if path == "" || r.seen[path] {
			continue
		}
		r.seen[path] = true
		r.paths = append(r.paths, path)
	}
}

// keep marks every registered artifact as a deliberate product. Release
// still runs but deletes nothing.
func (r *cleanupRegistry) keep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kept = true
}

// release deletes the registered artifacts. Only the first call does
// anything.
func (r *cleanupRegistry) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	if r.kept {
		if len(r.paths) > 0 {
			r.logger.Info("keeping intermediate artifacts", logging.Int("count", len(r.paths)))
		}
		return
	}
	deleted := 0
	for _, path := range r.paths {
		err := os.Remove(path)
		switch {
		case err == nil:
			deleted++
		case os.IsNotExist(err):
			// Already gone, fine.
		default:
			r.logger.Warn("cleanup failed", logging.String("path", path), logging.Error(err))
		}
	}
	if deleted > 0 {
		r.logger.Info("intermediate artifacts removed", logging.Int("count", deleted))
	}
}
