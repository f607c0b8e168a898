package watcher

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// alwaysIgnored covers paths the watcher itself churns. Every status
// refresh rewrites files under .git; watching them would retrigger the
// watcher on its own broadcasts.
var alwaysIgnored = []string{".git"}

// Filter checks worktree-relative paths against a set of ignore patterns.
// Plain names like ".git" match a whole path component at any depth; glob
// patterns (doublestar syntax, e.g. "**/*.tmp") are matched against the
// full relative path.
type Filter struct {
	patterns []string
}

// NewFilter merges the built-in patterns with any user-supplied extras,
// dropping duplicates.
func NewFilter(extra []string) *Filter {
	seen := make(map[string]struct{}, len(alwaysIgnored)+len(extra))
	var merged []string
	for _, p := range append(append([]string{}, alwaysIgnored...), extra...) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			merged = append(merged, p)
		}
	}
	return &Filter{patterns: merged}
}

// Ignored reports whether rel matches any ignore pattern.
func (f *Filter) Ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	components := strings.Split(rel, "/")
	for _, pattern := range f.patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		for _, component := range components {
			if ok, _ := doublestar.Match(pattern, component); ok {
				return true
			}
		}
	}
	return false
}
