// Package gitrepo wraps a go-git repository behind the narrow queries the
// watcher and daemon need: worktree root discovery, tracked-file
// enumeration, and worktree status summaries.
package gitrepo

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
)

// sampleLimit bounds how many changed paths a Summary carries. The daemon
// only needs a taste for display; counts tell the full story.
const sampleLimit = 20

// Repo is a handle on the git repository enclosing the watched worktree.
type Repo struct {
	repo *git.Repository
	root string
}

// Open locates the repository enclosing path (walking up to find .git) and
// returns a handle on its worktree.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository at %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("resolve worktree: %w", err)
	}
	root, err := filepath.Abs(wt.Filesystem.Root())
	if err != nil {
		return nil, fmt.Errorf("resolve worktree root: %w", err)
	}
	return &Repo{repo: repo, root: root}, nil
}

// Root returns the absolute path of the worktree root.
func (r *Repo) Root() string {
	return r.root
}

// TrackedFiles returns the worktree-relative paths of every index entry,
// the equivalent of `git ls-files`.
func (r *Repo) TrackedFiles() ([]string, error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	files := make([]string, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		files = append(files, filepath.FromSlash(e.Name))
	}
	return files, nil
}

// Summary is a point-in-time snapshot of the worktree's change state.
type Summary struct {
	Timestamp time.Time `json:"timestamp"`
	Staged    int       `json:"staged"`
	Modified  int       `json:"modified"`
	Deleted   int       `json:"deleted"`
	Untracked int       `json:"untracked"`
	Sample    []string  `json:"sample,omitempty"`
}

// Clean reports whether the snapshot shows no changes at all.
func (s *Summary) Clean() bool {
	return s.Staged == 0 && s.Modified == 0 && s.Deleted == 0 && s.Untracked == 0
}

// Status computes a fresh Summary from the worktree.
func (r *Repo) Status() (*Summary, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("resolve worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("compute status: %w", err)
	}

	paths := make([]string, 0, len(st))
	for path := range st {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	sum := &Summary{Timestamp: time.Now().UTC()}
	for _, path := range paths {
		fs := st[path]
		if fs.Staging == git.Untracked {
			sum.Untracked++
		} else if fs.Staging != git.Unmodified {
			sum.Staged++
		}
		switch fs.Worktree {
		case git.Modified:
			sum.Modified++
		case git.Deleted:
			sum.Deleted++
		}
		if len(sum.Sample) < sampleLimit {
			sum.Sample = append(sum.Sample, path)
		}
	}
	return sum, nil
}
