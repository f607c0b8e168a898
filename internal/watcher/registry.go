package watcher

import (
	"os"
	"path/filepath"
)

// Registry is the deduplicated set of directories registered with the
// backend. Paths are canonicalised (absolute, symlinks resolved) before
// membership testing so two spellings of the same directory register only
// once. Only the watch loop goroutine mutates a Registry, so it needs no
// locking.
type Registry struct {
	dirs map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{dirs: make(map[string]struct{})}
}

// Add canonicalises dir and records it. It returns the canonical path and
// whether the directory was newly added and should be registered with the
// backend. Directories that vanished between discovery and registration
// report false; that race is tolerated, not an error.
func (r *Registry) Add(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(canonical)
	if err != nil || !info.IsDir() {
		return "", false
	}
	if _, ok := r.dirs[canonical]; ok {
		return canonical, false
	}
	r.dirs[canonical] = struct{}{}
	return canonical, true
}

// Contains reports whether the canonical form of dir is registered.
func (r *Registry) Contains(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return false
	}
	_, ok := r.dirs[canonical]
	return ok
}

// Len returns the number of registered directories.
func (r *Registry) Len() int {
	return len(r.dirs)
}
